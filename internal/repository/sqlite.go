package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/camfleet/camfleet/internal/database"
	"github.com/camfleet/camfleet/internal/motion"
)

// SQL is the SQLite-backed repository.
type SQL struct {
	db     *database.DB
	logger *slog.Logger
}

// NewSQL creates a repository over an open database.
func NewSQL(db *database.DB) *SQL {
	return &SQL{
		db:     db,
		logger: slog.Default().With("component", "repository"),
	}
}

const cameraColumns = `id, name, url, enabled, motion_enabled, save_screenshot,
	send_email, send_chat, send_chat_video, created_at, updated_at`

func scanCamera(row interface{ Scan(...any) error }) (*Camera, error) {
	var cam Camera
	var createdAt, updatedAt int64
	err := row.Scan(
		&cam.ID, &cam.Name, &cam.URL, &cam.Enabled, &cam.MotionEnabled,
		&cam.SaveScreenshot, &cam.SendEmail, &cam.SendChat, &cam.SendChatVideo,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	cam.CreatedAt = time.Unix(createdAt, 0)
	cam.UpdatedAt = time.Unix(updatedAt, 0)
	return &cam, nil
}

func (r *SQL) listCameras(ctx context.Context, query string, args ...any) ([]Camera, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var cams []Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cams = append(cams, *cam)
	}
	return cams, rows.Err()
}

// ListCameras returns enabled cameras only.
func (r *SQL) ListCameras(ctx context.Context) ([]Camera, error) {
	return r.listCameras(ctx,
		"SELECT "+cameraColumns+" FROM cameras WHERE enabled = 1 ORDER BY id")
}

// ListAllCameras returns every camera.
func (r *SQL) ListAllCameras(ctx context.Context) ([]Camera, error) {
	return r.listCameras(ctx,
		"SELECT "+cameraColumns+" FROM cameras ORDER BY id")
}

// GetCamera returns one camera or ErrNotFound.
func (r *SQL) GetCamera(ctx context.Context, id string) (*Camera, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+cameraColumns+" FROM cameras WHERE id = ?", id)
	cam, err := scanCamera(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("camera %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return cam, nil
}

// AddCamera inserts a new camera.
func (r *SQL) AddCamera(ctx context.Context, cam *Camera) error {
	if err := cam.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cameras (id, name, url, enabled, motion_enabled,
			save_screenshot, send_email, send_chat, send_chat_video)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cam.ID, cam.Name, cam.URL, cam.Enabled, cam.MotionEnabled,
		cam.SaveScreenshot, cam.SendEmail, cam.SendChat, cam.SendChatVideo,
	)
	if err != nil {
		return fmt.Errorf("failed to add camera: %w", err)
	}
	r.logger.Info("Camera added", "camera", cam.ID)
	return nil
}

// UpdateCamera rewrites an existing camera's settings.
func (r *SQL) UpdateCamera(ctx context.Context, cam *Camera) error {
	if err := cam.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE cameras SET name = ?, url = ?, enabled = ?, motion_enabled = ?,
			save_screenshot = ?, send_email = ?, send_chat = ?,
			send_chat_video = ?, updated_at = unixepoch()
		WHERE id = ?`,
		cam.Name, cam.URL, cam.Enabled, cam.MotionEnabled,
		cam.SaveScreenshot, cam.SendEmail, cam.SendChat, cam.SendChatVideo,
		cam.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update camera: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("camera %s: %w", cam.ID, ErrNotFound)
	}
	return nil
}

// DeleteCamera removes a camera and, via cascade, its zone.
func (r *SQL) DeleteCamera(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cameras WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("camera %s: %w", id, ErrNotFound)
	}
	r.logger.Info("Camera deleted", "camera", id)
	return nil
}

// GetZone returns the camera's four zone points, or an empty slice
// when no zone is configured.
func (r *SQL) GetZone(ctx context.Context, cameraID string) ([]motion.Point, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT x1, y1, x2, y2, x3, y3, x4, y4 FROM zones WHERE camera_id = ?",
		cameraID)

	var p [4]motion.Point
	err := row.Scan(&p[0].X, &p[0].Y, &p[1].X, &p[1].Y, &p[2].X, &p[2].Y, &p[3].X, &p[3].Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return p[:], nil
}

// UpdateZone upserts the camera's alarm rectangle.
func (r *SQL) UpdateZone(ctx context.Context, cameraID string, pts [4]motion.Point) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO zones (camera_id, x1, y1, x2, y2, x3, y3, x4, y4)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(camera_id) DO UPDATE SET
			x1 = excluded.x1, y1 = excluded.y1,
			x2 = excluded.x2, y2 = excluded.y2,
			x3 = excluded.x3, y3 = excluded.y3,
			x4 = excluded.x4, y4 = excluded.y4,
			updated_at = unixepoch()`,
		cameraID,
		pts[0].X, pts[0].Y, pts[1].X, pts[1].Y,
		pts[2].X, pts[2].Y, pts[3].X, pts[3].Y,
	)
	if err != nil {
		return fmt.Errorf("failed to update zone: %w", err)
	}
	r.logger.Info("Zone updated", "camera", cameraID)
	return nil
}

// ListNotificationSubscribers returns all subscriber IDs.
func (r *SQL) ListNotificationSubscribers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM subscribers ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSubscriber registers a notification subscriber.
func (r *SQL) AddSubscriber(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO subscribers (id) VALUES (?)", id)
	if err != nil {
		return fmt.Errorf("failed to add subscriber: %w", err)
	}
	return nil
}
