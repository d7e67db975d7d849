package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camfleet/camfleet/internal/motion"
	"github.com/camfleet/camfleet/internal/repository"
)

// ZoneHandler handles alarm zone requests.
type ZoneHandler struct {
	repo repository.Repository
}

// NewZoneHandler creates a new zone handler
func NewZoneHandler(repo repository.Repository) *ZoneHandler {
	return &ZoneHandler{repo: repo}
}

// Routes returns the zone routes
func (h *ZoneHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/{id}", h.Get)
	r.Post("/{id}", h.Update)

	return r
}

// ZoneRequest carries the four corner points of the alarm rectangle.
type ZoneRequest struct {
	Points []motion.Point `json:"points"`
}

// Get returns the camera's zone points, or an empty list when the
// whole frame is armed.
func (h *ZoneHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.repo.GetCamera(r.Context(), id); err != nil {
		NotFound(w, "Camera not found")
		return
	}

	pts, err := h.repo.GetZone(r.Context(), id)
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	if pts == nil {
		pts = []motion.Point{}
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"points":    pts,
	})
}

// Update replaces the camera's alarm rectangle. Exactly four points
// are required; the new zone takes effect on the next frame.
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	if len(req.Points) != 4 {
		BadRequest(w, "zone must be exactly four points")
		return
	}

	if _, err := h.repo.GetCamera(r.Context(), id); err != nil {
		NotFound(w, "Camera not found")
		return
	}

	var pts [4]motion.Point
	copy(pts[:], req.Points)
	if err := h.repo.UpdateZone(r.Context(), id, pts); err != nil {
		if errors.Is(err, repository.ErrInvalidZone) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, err.Error())
		return
	}
	OK(w, map[string]interface{}{
		"camera_id": id,
		"points":    req.Points,
	})
}
