// Package motion implements per-camera motion detection: background
// subtraction, contour extraction, alarm-zone tests, centroid tracking
// and object counting. Detection (the decision) and annotation (the
// drawing) are deliberately separate so the decision stays
// deterministic under test.
package motion

import (
	"image"
	"time"
)

// Defaults for the detection pipeline.
const (
	DefaultMinContourArea     = 1500
	DefaultMaxTrackerDistance = 70
	DefaultTrackerStaleness   = 2 * time.Second
	DefaultScreenshotDebounce = 2 * time.Second

	// diffThreshold is the per-pixel luma delta that marks foreground.
	diffThreshold = 25
	// backgroundAlpha is the running-average learning rate.
	backgroundAlpha = 0.05
)

// Point is a pixel coordinate. Zone rectangles are stored as four
// points in the repository.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Zone is the axis-aligned alarm rectangle derived from the four
// configured points. A zero Zone (Present == false) means the whole
// frame is armed.
type Zone struct {
	Rect    image.Rectangle
	Present bool
}

// ZoneFromPoints computes the bounding box of the configured points.
// Anything other than exactly four points yields an absent zone.
func ZoneFromPoints(pts []Point) Zone {
	if len(pts) != 4 {
		return Zone{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	return Zone{Rect: image.Rect(minX, minY, maxX, maxY), Present: true}
}

// Contains reports whether the centroid lies inside the armed area of
// a frame with the given bounds.
func (z Zone) Contains(p image.Point, frameBounds image.Rectangle) bool {
	if !z.Present {
		return p.In(frameBounds)
	}
	return p.In(z.Rect)
}

// Config is the per-call snapshot of the camera's detection settings.
// Snapshotted once at the top of each GetFrame; never re-read
// mid-frame.
type Config struct {
	Zone           Zone
	SaveScreenshot bool
	SendChatVideo  bool
	Recording      bool

	MinContourArea     int
	MaxTrackerDistance int
	TrackerStaleness   time.Duration
	ScreenshotDebounce time.Duration
}

// withDefaults fills zero tuning knobs.
func (c Config) withDefaults() Config {
	if c.MinContourArea <= 0 {
		c.MinContourArea = DefaultMinContourArea
	}
	if c.MaxTrackerDistance <= 0 {
		c.MaxTrackerDistance = DefaultMaxTrackerDistance
	}
	if c.TrackerStaleness <= 0 {
		c.TrackerStaleness = DefaultTrackerStaleness
	}
	if c.ScreenshotDebounce <= 0 {
		c.ScreenshotDebounce = DefaultScreenshotDebounce
	}
	return c
}

// Detection is one surviving contour.
type Detection struct {
	Rect     image.Rectangle
	Centroid image.Point
	ObjectID int
}

// Result carries the detector's decisions back to the caller. Side
// effects (writing the screenshot, spawning the clip recorder) belong
// to the caller, not the detector.
type Result struct {
	Detections   []Detection
	NewObjects   int
	Count        int
	SessionStart time.Time

	// ShouldScreenshot is set when the save-screenshot flag is on, a
	// new object just entered the zone, and the debounce window has
	// elapsed.
	ShouldScreenshot bool
	// StartClip is set when send-chat-video is on, a new object just
	// entered the zone, and no clip is currently recording.
	StartClip bool
}
