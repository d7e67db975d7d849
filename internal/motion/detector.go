package motion

import (
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

// Detect runs the detection pipeline on one frame and updates the
// per-camera state. It decides; it does not draw and it does not touch
// the filesystem.
//
// Pipeline: background subtract, threshold, morphological open (5×5),
// dilate (5×5, twice), connected components, area filter, zone test,
// centroid tracking.
func Detect(f *frame.Frame, st *State, cfg Config, now time.Time) Result {
	cfg = cfg.withDefaults()

	res := Result{
		Count:        st.count,
		SessionStart: st.sessionStart,
	}

	gray := f.Gray()
	if st.bg == nil {
		// First frame seeds the model; nothing to detect against yet.
		st.bg = newBackground(gray)
		return res
	}

	mask := st.bg.subtract(gray)
	if mask == nil {
		// Frame geometry changed (stream renegotiated); rebuild.
		st.bg = newBackground(gray)
		return res
	}

	mask = openMask(mask, 5)
	mask = dilate(mask, 5)
	mask = dilate(mask, 5)

	for _, b := range components(mask, cfg.MinContourArea) {
		inZone := cfg.Zone.Contains(b.centroid, f.Image.Bounds())
		id, isNew := st.track(b.centroid, inZone, cfg, now)
		if id < 0 {
			continue
		}
		res.Detections = append(res.Detections, Detection{
			Rect:     b.rect,
			Centroid: b.centroid,
			ObjectID: id,
		})
		if isNew {
			res.NewObjects++
		}
	}
	st.evictStale(cfg, now)

	res.Count = st.count
	res.SessionStart = st.sessionStart

	if res.NewObjects > 0 {
		if cfg.SaveScreenshot && now.Sub(st.lastScreenshot) >= cfg.ScreenshotDebounce {
			st.lastScreenshot = now
			res.ShouldScreenshot = true
		}
		if cfg.SendChatVideo && !cfg.Recording {
			res.StartClip = true
		}
	}

	return res
}
