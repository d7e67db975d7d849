package fleet

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

// screenshotQuality is the JPEG quality for saved artifacts.
const screenshotQuality = 90

// ScreenshotPath builds the location for a motion screenshot:
// <base>/screenshots/camera_<id>/<YYYY-MM-DD>/motion_<YYYY_MM_DD_HH_MM_SS_micros>.jpg
// The directory is created on demand.
func ScreenshotPath(baseDir, cameraID string, t time.Time) (string, error) {
	dir := filepath.Join(baseDir, "screenshots",
		fmt.Sprintf("camera_%s", cameraID), t.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	name := fmt.Sprintf("motion_%s_%06d.jpg",
		t.Format("2006_01_02_15_04_05"), t.Nanosecond()/1000)
	return filepath.Join(dir, name), nil
}

// SnapshotPath builds the location for an on-demand snapshot:
// <snapshotDir>/camera <id>/<YYYY-MM-DD>/camera_<id>_<YYYYMMDD_HHMMSS>.jpg
func SnapshotPath(snapshotDir, cameraID string, t time.Time) (string, error) {
	dir := filepath.Join(snapshotDir,
		fmt.Sprintf("camera %s", cameraID), t.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	name := fmt.Sprintf("camera_%s_%s.jpg", cameraID, t.Format("20060102_150405"))
	return filepath.Join(dir, name), nil
}

// saveJPEG encodes the frame and writes it to path.
func saveJPEG(path string, f *frame.Frame, quality int) error {
	data, err := f.EncodeJPEG(quality)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
