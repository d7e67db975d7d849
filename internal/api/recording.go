package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camfleet/camfleet/internal/fleet"
	"github.com/camfleet/camfleet/internal/recording"
)

// RecordingHandler controls per-camera continuous recording.
type RecordingHandler struct {
	fleet FleetService
}

// NewRecordingHandler creates a new recording handler
func NewRecordingHandler(fleet FleetService) *RecordingHandler {
	return &RecordingHandler{fleet: fleet}
}

// Routes returns the recording routes
func (h *RecordingHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/stop", h.Stop)
	r.Get("/{id}/status", h.Status)

	return r
}

// Start begins the camera's continuous recording loop.
func (h *RecordingHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.fleet.StartContinuousRecording(id); err != nil {
		switch {
		case errors.Is(err, fleet.ErrNotRunning):
			NotFound(w, "Camera is not running")
		case errors.Is(err, recording.ErrAlreadyRecording):
			Conflict(w, "Recording already in progress")
		default:
			InternalError(w, err.Error())
		}
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"recording": true,
	})
}

// Stop ends the loop and flushes the in-flight clip.
func (h *RecordingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.fleet.StopContinuousRecording(id); err != nil {
		switch {
		case errors.Is(err, fleet.ErrNotRunning):
			NotFound(w, "Camera is not running")
		case errors.Is(err, recording.ErrNotRecording):
			Conflict(w, "No recording in progress")
		default:
			InternalError(w, err.Error())
		}
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"recording": false,
	})
}

// Status reports whether the continuous loop is running.
func (h *RecordingHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.fleet.IsRecording(id)
	if err != nil {
		NotFound(w, "Camera is not running")
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"recording": rec,
	})
}
