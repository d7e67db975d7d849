package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

const (
	// RTSP input options: TCP transport, 4 MiB buffer, 10 s socket
	// timeout (microseconds), discard corrupt frames.
	rtspBufferSize    = "4194304"
	rtspSocketTimeout = "10000000"

	frameChanDepth = 10
)

// FFmpegCapture decodes an RTSP stream through an ffmpeg subprocess
// emitting MJPEG on stdout. One instance per camera.
type FFmpegCapture struct {
	url    string
	cmd    *exec.Cmd
	cancel context.CancelFunc
	frames chan []byte

	closeOnce sync.Once
	logger    *slog.Logger
}

// OpenRTSP spawns the decoder and waits up to connectTimeout for the
// first frame. It satisfies the Opener signature.
func OpenRTSP(ctx context.Context, url string, connectTimeout time.Duration) (Capture, error) {
	logger := slog.Default().With("component", "capture", "url", SanitizeURL(url))

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, "ffmpeg", buildStreamArgs(url)...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	// Drain stderr so ffmpeg never blocks on a full pipe.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
		}
	}()

	c := &FFmpegCapture{
		url:    url,
		cmd:    cmd,
		cancel: cancel,
		frames: make(chan []byte, frameChanDepth),
		logger: logger,
	}
	go c.pump(stdout)
	go func() { _ = cmd.Wait() }()

	// The source is considered open once it has produced a frame.
	first, err := c.waitFirstFrame(ctx, connectTimeout)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	// Put the probe frame back so the first Read sees it.
	c.frames <- first

	logger.Info("Stream opened")
	return c, nil
}

// buildStreamArgs constructs the ffmpeg command line for continuous
// MJPEG piping.
func buildStreamArgs(url string) []string {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, hwAccelArgs(RecommendedHWAccel())...)
	if strings.HasPrefix(url, "rtsp://") {
		args = append(args,
			"-rtsp_transport", "tcp",
			"-buffer_size", rtspBufferSize,
			"-stimeout", rtspSocketTimeout,
		)
	}
	args = append(args,
		"-fflags", "+discardcorrupt",
		"-i", url,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	)
	return args
}

// pump splits ffmpeg stdout into JPEG images and feeds the frame
// channel. Closes the channel on EOF so readers observe ErrStreamBroken.
func (c *FFmpegCapture) pump(stdout io.ReadCloser) {
	defer stdout.Close()
	defer close(c.frames)

	buf := make([]byte, 0, 1<<20)
	chunk := make([]byte, 32*1024)

	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				img := ExtractJPEG(&buf)
				if img == nil {
					break
				}
				select {
				case c.frames <- img:
				default:
					// Consumer is behind; drop the oldest buffered
					// frame to make room.
					select {
					case <-c.frames:
					default:
					}
					select {
					case c.frames <- img:
					default:
					}
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("Stream read ended", "error", err)
			}
			return
		}
	}
}

func (c *FFmpegCapture) waitFirstFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case data, ok := <-c.frames:
		if !ok {
			return nil, ErrConnectFailed
		}
		return data, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no frame within %s", ErrConnectFailed, timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, ctx.Err())
	}
}

// Read returns the next decoded frame. Corrupt images are skipped.
func (c *FFmpegCapture) Read(ctx context.Context) (*frame.Frame, error) {
	for {
		select {
		case data, ok := <-c.frames:
			if !ok || len(data) == 0 {
				return nil, ErrStreamBroken
			}
			f, err := frame.Decode(data)
			if err != nil {
				c.logger.Debug("Skipping corrupt frame", "error", err)
				continue
			}
			return f, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close kills the decoder process and releases the pipe.
func (c *FFmpegCapture) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.logger.Info("Stream closed")
	})
	return nil
}

// Grab performs a one-shot frame grab from url, bypassing any running
// Capture. Used for on-demand snapshots.
func Grab(ctx context.Context, url string, timeout time.Duration) (*frame.Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{"-hide_banner", "-loglevel", "error"}
	if strings.HasPrefix(url, "rtsp://") {
		args = append(args, "-rtsp_transport", "tcp", "-stimeout", rtspSocketTimeout)
	}
	args = append(args, "-i", url, "-vframes", "1", "-f", "mjpeg", "-")

	out, err := exec.CommandContext(ctx, "ffmpeg", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if len(out) == 0 {
		return nil, ErrStreamBroken
	}
	return frame.Decode(out)
}
