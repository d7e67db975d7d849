// Package repository provides typed reads and writes over camera
// configs, alarm zones, and notification subscribers.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/camfleet/camfleet/internal/motion"
)

var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig means a camera payload failed validation.
	ErrInvalidConfig = errors.New("invalid camera config")

	// ErrInvalidZone means the zone payload is not exactly four
	// integer points.
	ErrInvalidZone = errors.New("zone must be exactly four points")
)

// Camera is one camera's identity, stream settings, and feature flags.
type Camera struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	URL            string    `json:"url"`
	Enabled        bool      `json:"enabled"`
	MotionEnabled  bool      `json:"motion_enabled"`
	SaveScreenshot bool      `json:"save_screenshot"`
	SendEmail      bool      `json:"send_email"`
	SendChat       bool      `json:"send_chat"`
	SendChatVideo  bool      `json:"send_chat_video"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Validate checks the fields the engine depends on.
func (c *Camera) Validate() error {
	if c.ID == "" {
		return errors.New("camera id is required")
	}
	if !strings.HasPrefix(c.URL, "rtsp://") {
		return errors.New("camera url must start with rtsp://")
	}
	return nil
}

// Repository is the durable-store interface the fleet consumes.
type Repository interface {
	// ListCameras returns enabled cameras only.
	ListCameras(ctx context.Context) ([]Camera, error)
	// ListAllCameras returns every camera regardless of enabled state.
	ListAllCameras(ctx context.Context) ([]Camera, error)
	GetCamera(ctx context.Context, id string) (*Camera, error)
	AddCamera(ctx context.Context, cam *Camera) error
	UpdateCamera(ctx context.Context, cam *Camera) error
	DeleteCamera(ctx context.Context, id string) error

	// GetZone returns 0 or 4 points.
	GetZone(ctx context.Context, cameraID string) ([]motion.Point, error)
	// UpdateZone persists the alarm rectangle as exactly four points.
	UpdateZone(ctx context.Context, cameraID string, pts [4]motion.Point) error

	// ListNotificationSubscribers returns opaque subscriber IDs used
	// by the event dispatcher.
	ListNotificationSubscribers(ctx context.Context) ([]string, error)
}
