package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camfleet/camfleet/internal/config"
	"github.com/camfleet/camfleet/internal/fleet"
	"github.com/camfleet/camfleet/internal/repository"
)

const (
	streamBoundary = "frame"
	streamQuality  = 80

	// maxConsecutiveTimeouts ends an MJPEG stream whose camera has
	// stopped producing frames.
	maxConsecutiveTimeouts = 10
)

// StreamHandler serves live MJPEG video and single-frame snapshots.
type StreamHandler struct {
	repo   repository.Repository
	fleet  FleetService
	cfg    *config.Config
	logger *slog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(repo repository.Repository, fleet FleetService, cfg *config.Config) *StreamHandler {
	return &StreamHandler{
		repo:   repo,
		fleet:  fleet,
		cfg:    cfg,
		logger: slog.Default().With("component", "stream-handler"),
	}
}

// Video streams multipart MJPEG until the client disconnects or the
// camera stalls. Detection flags and the zone are read once per
// request; ?reset=true zeroes the counter before the first frame.
func (h *StreamHandler) Video(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cam, err := h.repo.GetCamera(r.Context(), id)
	if err != nil {
		NotFound(w, "Camera not found")
		return
	}
	if !h.fleet.Running(id) {
		ServiceUnavailable(w, "Camera is not running")
		return
	}

	zone, err := h.repo.GetZone(r.Context(), id)
	if err != nil {
		h.logger.Warn("Zone lookup failed, streaming without zone",
			"camera", id, "error", err)
	}

	opts := fleet.FrameOptions{
		Motion:         cam.MotionEnabled,
		SaveScreenshot: cam.SaveScreenshot,
		SendChatVideo:  cam.SendChatVideo,
		Zone:           zone,
		Reset:          r.URL.Query().Get("reset") == "true",
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalError(w, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+streamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")

	resizeW, resizeH, resize := h.cfg.ParseSize()

	timeouts := 0
	for {
		if r.Context().Err() != nil {
			return
		}

		f, err := h.fleet.GetFrame(r.Context(), id, opts)
		opts.Reset = false
		if err != nil {
			if errors.Is(err, fleet.ErrTimeout) {
				timeouts++
				if timeouts >= maxConsecutiveTimeouts {
					h.logger.Warn("Stream stalled, ending MJPEG response", "camera", id)
					return
				}
				continue
			}
			return
		}
		timeouts = 0

		if resize {
			f = f.Resize(resizeW, resizeH)
		}
		data, err := f.EncodeJPEG(streamQuality)
		if err != nil {
			continue
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", streamBoundary, len(data)); err != nil {
			return
		}
		if _, err := w.Write(data); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

// Snapshot returns one JPEG frame grabbed directly from the capture.
func (h *StreamHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	f, err := h.fleet.Snapshot(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, fleet.ErrNotRunning):
			NotFound(w, "Camera is not running")
		case errors.Is(err, fleet.ErrTimeout):
			ServiceUnavailable(w, "Camera produced no frame")
		default:
			InternalError(w, err.Error())
		}
		return
	}

	data, err := f.EncodeJPEG(streamQuality)
	if err != nil {
		InternalError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	_, _ = w.Write(data)
}

// Screenshot grabs a snapshot and writes it to the snapshot directory,
// returning the file path.
func (h *StreamHandler) Screenshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	path, err := h.fleet.SaveSnapshot(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, fleet.ErrNotRunning):
			NotFound(w, "Camera is not running")
		case errors.Is(err, fleet.ErrTimeout):
			ServiceUnavailable(w, "Camera produced no frame")
		default:
			InternalError(w, err.Error())
		}
		return
	}
	OK(w, map[string]string{
		"camera_id": id,
		"path":      path,
	})
}
