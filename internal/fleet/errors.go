package fleet

import "errors"

var (
	// ErrNotRunning means no live entry exists for the camera.
	ErrNotRunning = errors.New("camera is not running")

	// ErrTimeout means the frame queue stayed empty past the caller's
	// deadline. The entry itself is still registered.
	ErrTimeout = errors.New("timed out waiting for frame")

	// ErrNotFound means the repository no longer contains the camera.
	ErrNotFound = errors.New("camera not found")

	// ErrOpenFailed means the capture could not be opened.
	ErrOpenFailed = errors.New("failed to open camera")
)
