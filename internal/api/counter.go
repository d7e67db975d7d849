package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CounterHandler exposes the per-camera object counter.
type CounterHandler struct {
	fleet FleetService
}

// NewCounterHandler creates a new counter handler
func NewCounterHandler(fleet FleetService) *CounterHandler {
	return &CounterHandler{fleet: fleet}
}

// Routes returns the counter routes
func (h *CounterHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)
	r.Post("/{id}/reset", h.Reset)

	return r
}

// Get returns the camera's count and session start.
func (h *CounterHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	count, since, err := h.fleet.Counter(id)
	if err != nil {
		NotFound(w, "Camera is not running")
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"count":     count,
		"since":     since,
	})
}

// Reset zeroes the camera's counter. Objects still in the zone are
// not recounted.
func (h *CounterHandler) Reset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.fleet.ResetCounter(id); err != nil {
		NotFound(w, "Camera is not running")
		return
	}

	count, since, err := h.fleet.Counter(id)
	if err != nil {
		NotFound(w, "Camera is not running")
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"count":     count,
		"since":     since,
	})
}
