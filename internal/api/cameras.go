// Package api provides the HTTP surface over the camera fleet: camera
// CRUD, alarm zones, MJPEG streaming, snapshots, recording control,
// and the websocket event feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camfleet/camfleet/internal/fleet"
	"github.com/camfleet/camfleet/internal/frame"
	"github.com/camfleet/camfleet/internal/repository"
)

// FleetService defines the fleet operations the handlers consume.
type FleetService interface {
	GetFrame(ctx context.Context, id string, opts fleet.FrameOptions) (*frame.Frame, error)
	Snapshot(ctx context.Context, id string) (*frame.Frame, error)
	SaveSnapshot(ctx context.Context, id string) (string, error)
	StartContinuousRecording(id string) error
	StopContinuousRecording(id string) error
	IsRecording(id string) (bool, error)
	Counter(id string) (int, time.Time, error)
	ResetCounter(id string) error
	Reinitialize(ctx context.Context, id string) error
	Running(id string) bool
	IDs() []string
}

// CameraHandler handles camera configuration requests.
type CameraHandler struct {
	repo  repository.Repository
	fleet FleetService
}

// NewCameraHandler creates a new camera handler
func NewCameraHandler(repo repository.Repository, fleet FleetService) *CameraHandler {
	return &CameraHandler{repo: repo, fleet: fleet}
}

// Routes returns the camera routes
func (h *CameraHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/reinitialize", h.Reinitialize)

	return r
}

// cameraView is a camera row plus its live pipeline state.
type cameraView struct {
	repository.Camera
	Running bool `json:"running"`
}

// List lists all cameras
func (h *CameraHandler) List(w http.ResponseWriter, r *http.Request) {
	cams, err := h.repo.ListAllCameras(r.Context())
	if err != nil {
		InternalError(w, err.Error())
		return
	}

	views := make([]cameraView, 0, len(cams))
	for _, cam := range cams {
		views = append(views, cameraView{Camera: cam, Running: h.fleet.Running(cam.ID)})
	}
	OK(w, views)
}

// Get retrieves a camera by ID
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cam, err := h.repo.GetCamera(r.Context(), id)
	if err != nil {
		NotFound(w, "Camera not found")
		return
	}
	OK(w, cameraView{Camera: *cam, Running: h.fleet.Running(cam.ID)})
}

// Create adds a new camera and starts it when enabled.
func (h *CameraHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cam repository.Camera
	if err := json.NewDecoder(r.Body).Decode(&cam); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}

	if errs := ValidateCamera(&cam); errs.HasErrors() {
		ValidationErrorResponse(w, errs)
		return
	}

	if err := h.repo.AddCamera(r.Context(), &cam); err != nil {
		if errors.Is(err, repository.ErrInvalidConfig) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, err.Error())
		return
	}

	if cam.Enabled {
		if err := h.fleet.Reinitialize(r.Context(), cam.ID); err != nil {
			// Camera row persists even when the stream is unreachable.
			Created(w, cameraView{Camera: cam, Running: false})
			return
		}
	}
	Created(w, cameraView{Camera: cam, Running: h.fleet.Running(cam.ID)})
}

// Update replaces a camera's settings and rebuilds its pipeline.
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var cam repository.Camera
	if err := json.NewDecoder(r.Body).Decode(&cam); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	cam.ID = id

	if errs := ValidateCamera(&cam); errs.HasErrors() {
		ValidationErrorResponse(w, errs)
		return
	}

	if err := h.repo.UpdateCamera(r.Context(), &cam); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(w, "Camera not found")
			return
		}
		InternalError(w, err.Error())
		return
	}

	if err := h.fleet.Reinitialize(r.Context(), id); err != nil && !errors.Is(err, fleet.ErrNotFound) {
		InternalError(w, err.Error())
		return
	}
	OK(w, cameraView{Camera: cam, Running: h.fleet.Running(id)})
}

// Delete removes a camera and stops its pipeline.
func (h *CameraHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteCamera(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(w, "Camera not found")
			return
		}
		InternalError(w, err.Error())
		return
	}

	// Row is gone; Reinitialize tears the pipeline down.
	_ = h.fleet.Reinitialize(r.Context(), id)
	NoContent(w)
}

// Reinitialize rebuilds the camera's pipeline from its current row.
func (h *CameraHandler) Reinitialize(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.fleet.Reinitialize(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, fleet.ErrNotFound):
			NotFound(w, "Camera not found")
		case errors.Is(err, fleet.ErrOpenFailed):
			ServiceUnavailable(w, err.Error())
		default:
			InternalError(w, err.Error())
		}
		return
	}
	OK(w, map[string]interface{}{
		"id":      id,
		"running": h.fleet.Running(id),
	})
}
