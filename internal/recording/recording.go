// Package recording writes event clips and continuous-loop recordings
// by piping JPEG frames into an ffmpeg encoder.
package recording

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrAlreadyRecording means a recorder task is already live for
	// the camera. Informational, not fatal.
	ErrAlreadyRecording = errors.New("recording already in progress")

	// ErrNotRecording means StopContinuous was called with no active
	// continuous loop.
	ErrNotRecording = errors.New("no recording in progress")
)

// Defaults for clip production.
const (
	DefaultClipSeconds       = 5
	DefaultContinuousSeconds = 30
	DefaultFPS               = 30
)

// ClipPath builds the on-disk location for a clip:
// <base>/recordings/<id>/camera_<id>_<YYYY-MM-DD>/<id>_<YYYYMMDD_HHMMSS>.mp4
// The directory is created on demand.
func ClipPath(baseDir, cameraID string, t time.Time) (string, error) {
	dir := filepath.Join(baseDir, "recordings", cameraID,
		fmt.Sprintf("camera_%s_%s", cameraID, t.Format("2006-01-02")))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	name := fmt.Sprintf("%s_%s.mp4", cameraID, t.Format("20060102_150405"))
	return filepath.Join(dir, name), nil
}
