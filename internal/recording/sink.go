package recording

import (
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
)

// ClipSink consumes a sequence of JPEG frames and produces one clip
// file. Implementations must tolerate Close after a partial write so
// cancelled clips still flush.
type ClipSink interface {
	WriteFrame(jpegData []byte) error
	Close() error
}

// SinkFactory opens a sink for the given output path and frame rate.
// The fleet injects it so tests can capture frames in memory.
type SinkFactory func(path string, fps int) (ClipSink, error)

// FFmpegSink encodes piped MJPEG input to an MPEG-4 (mp4v) file.
type FFmpegSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	closeOnce sync.Once
	closeErr  error
}

// NewFFmpegSink starts the encoder process. Satisfies SinkFactory.
func NewFFmpegSink(path string, fps int) (ClipSink, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	cmd := exec.Command("ffmpeg",
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "mpeg4",
		"-pix_fmt", "yuv420p",
		path,
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start encoder: %w", err)
	}
	return &FFmpegSink{cmd: cmd, stdin: stdin}, nil
}

// WriteFrame feeds one JPEG image to the encoder.
func (s *FFmpegSink) WriteFrame(jpegData []byte) error {
	_, err := s.stdin.Write(jpegData)
	return err
}

// Close ends the input stream and waits for the encoder to finalize
// the container.
func (s *FFmpegSink) Close() error {
	s.closeOnce.Do(func() {
		_ = s.stdin.Close()
		s.closeErr = s.cmd.Wait()
	})
	return s.closeErr
}
