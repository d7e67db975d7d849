// Package capture opens RTSP sources and yields decoded frames.
package capture

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

var (
	// ErrConnectFailed means the source refused the connection or the
	// connect timeout elapsed before the first frame arrived.
	ErrConnectFailed = errors.New("failed to connect to stream")

	// ErrStreamBroken means the decoder hit EOF or produced a
	// zero-length read on an established stream.
	ErrStreamBroken = errors.New("stream broken")
)

// Capture is one live decoding context for exactly one camera.
type Capture interface {
	// Read returns the next decoded frame. It blocks until a frame is
	// available, the stream breaks, or ctx is done.
	Read(ctx context.Context) (*frame.Frame, error)
	// Close releases the decoder. Safe to call more than once.
	Close() error
}

// Opener opens a Capture for a stream URL. The fleet takes an Opener
// so tests can substitute a synthetic source.
type Opener func(ctx context.Context, url string, connectTimeout time.Duration) (Capture, error)

// SanitizeURL removes embedded credentials from a stream URL so it can
// be logged safely.
func SanitizeURL(url string) string {
	for _, proto := range []string{"rtsp://", "http://", "https://", "rtmp://"} {
		if strings.HasPrefix(url, proto) {
			remainder := strings.TrimPrefix(url, proto)
			if atIdx := strings.Index(remainder, "@"); atIdx != -1 {
				return proto + "***:***@" + remainder[atIdx+1:]
			}
		}
	}
	return url
}
