package recording

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

// FrameSource is where the recorder pulls live frames from. The
// camera's frame queue satisfies this.
type FrameSource interface {
	Get(ctx context.Context, timeout time.Duration) (*frame.Frame, error)
}

// Recorder produces clips for one camera. At most one clip task and
// one continuous loop may be live at a time; starting a second is
// rejected with ErrAlreadyRecording.
type Recorder struct {
	cameraID string
	baseDir  string
	fps      int
	newSink  SinkFactory

	mu         sync.Mutex
	continuous bool
	clipActive bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	logger *slog.Logger
}

// NewRecorder creates a recorder writing under baseDir. sink defaults
// to the ffmpeg encoder.
func NewRecorder(cameraID, baseDir string, fps int, sink SinkFactory) *Recorder {
	if sink == nil {
		sink = NewFFmpegSink
	}
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Recorder{
		cameraID: cameraID,
		baseDir:  baseDir,
		fps:      fps,
		newSink:  sink,
		logger:   slog.Default().With("component", "recorder", "camera", cameraID),
	}
}

// ClipActive reports whether an event clip is currently being written.
func (r *Recorder) ClipActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clipActive
}

// Recording reports whether the continuous loop is running.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.continuous
}

// RecordClip writes a single clip of the given duration, pulling
// frames from src. Blocks until the clip is finished or ctx ends; a
// cancelled clip is still flushed. Returns the clip path.
func (r *Recorder) RecordClip(ctx context.Context, src FrameSource, duration time.Duration) (string, error) {
	r.mu.Lock()
	if r.clipActive {
		r.mu.Unlock()
		return "", ErrAlreadyRecording
	}
	r.clipActive = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.clipActive = false
		r.mu.Unlock()
	}()

	path, err := r.writeClip(ctx, src, duration)
	if err != nil {
		return "", err
	}
	return path, nil
}

// StartContinuous begins the 30-second loop recorder. It returns
// immediately; clips accumulate until StopContinuous.
func (r *Recorder) StartContinuous(ctx context.Context, src FrameSource, clipLen time.Duration) error {
	if clipLen <= 0 {
		clipLen = DefaultContinuousSeconds * time.Second
	}

	r.mu.Lock()
	if r.continuous {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.continuous = true
	r.cancel = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.logger.Info("Continuous recording started")
		for {
			if loopCtx.Err() != nil {
				r.logger.Info("Continuous recording stopped")
				return
			}
			if _, err := r.writeClip(loopCtx, src, clipLen); err != nil && loopCtx.Err() == nil {
				r.logger.Error("Clip failed, retrying", "error", err)
				select {
				case <-time.After(time.Second):
				case <-loopCtx.Done():
				}
			}
		}
	}()
	return nil
}

// StopContinuous signals the loop to end and waits for the in-flight
// clip to flush.
func (r *Recorder) StopContinuous() error {
	r.mu.Lock()
	if !r.continuous {
		r.mu.Unlock()
		return ErrNotRecording
	}
	cancel := r.cancel
	r.continuous = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
	return nil
}

// writeClip pulls frames for the duration and pipes them through a
// fresh sink. Partial clips are flushed on cancellation.
func (r *Recorder) writeClip(ctx context.Context, src FrameSource, duration time.Duration) (string, error) {
	path, err := ClipPath(r.baseDir, r.cameraID, time.Now())
	if err != nil {
		return "", err
	}
	sink, err := r.newSink(path, r.fps)
	if err != nil {
		return "", fmt.Errorf("failed to open clip sink: %w", err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			r.logger.Warn("Clip sink close failed", "path", path, "error", cerr)
		}
	}()

	deadline := time.Now().Add(duration)
	wrote := 0
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 || ctx.Err() != nil {
			break
		}
		f, err := src.Get(ctx, remaining)
		if err != nil {
			// Timeout or cancellation ends the clip; whatever was
			// written stays on disk.
			break
		}
		data, err := f.EncodeJPEG(85)
		if err != nil {
			continue
		}
		if err := sink.WriteFrame(data); err != nil {
			return path, fmt.Errorf("failed to write frame: %w", err)
		}
		wrote++
	}

	r.logger.Debug("Clip finished", "path", path, "frames", wrote)
	return path, nil
}
