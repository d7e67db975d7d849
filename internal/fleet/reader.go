package fleet

import (
	"context"
	"log/slog"
	"time"

	"github.com/camfleet/camfleet/internal/capture"
)

// runReader is the per-camera read loop: pull a frame from the
// capture, push it into the queue, sleep one frame period. A broken
// stream drops into the reconnect loop; the entry stays registered
// throughout so consumers see timeouts, never a vanished camera.
func (f *Fleet) runReader(ctx context.Context, e *entry) {
	defer close(e.done)

	logger := f.logger.With("camera", e.cam.ID)
	fps := f.cfg.FPS()
	if fps <= 0 {
		fps = 30
	}
	period := time.Second / time.Duration(fps)

	for {
		if ctx.Err() != nil {
			return
		}

		fr, err := e.getCapture().Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Stream read failed",
				"url", capture.SanitizeURL(e.cam.URL), "error", err)
			if !f.reconnect(ctx, e, logger) {
				return
			}
			continue
		}

		e.queue.Put(fr)

		select {
		case <-time.After(period):
		case <-ctx.Done():
			return
		}
	}
}

// reconnect tries to reopen the stream: a batch of attempts spaced by
// the reconnect delay, then a short pause before the next batch, until
// a capture opens or ctx ends. Returns false only on cancellation.
func (f *Fleet) reconnect(ctx context.Context, e *entry, logger *slog.Logger) bool {
	attempts := f.cfg.ReconnectAttempts()
	if attempts <= 0 {
		attempts = 3
	}

	for ctx.Err() == nil {
		for attempt := 1; attempt <= attempts; attempt++ {
			c, err := f.opener(ctx, e.cam.URL, f.cfg.ConnectTimeout())
			if err == nil {
				e.setCapture(c)
				logger.Info("Stream reconnected", "attempt", attempt)
				return true
			}
			logger.Warn("Reconnect attempt failed",
				"attempt", attempt, "error", err)

			select {
			case <-time.After(f.cfg.ReconnectDelay()):
			case <-ctx.Done():
				return false
			}
		}

		// Batch exhausted; back off briefly and try again.
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return false
		}
	}
	return false
}
