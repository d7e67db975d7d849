package fleet

import (
	"context"
	"sync"

	"github.com/camfleet/camfleet/internal/capture"
	"github.com/camfleet/camfleet/internal/motion"
	"github.com/camfleet/camfleet/internal/recording"
	"github.com/camfleet/camfleet/internal/repository"
)

// entry is the live pipeline for one running camera: its capture, its
// frame queue, its tracker state, and its recorder. The entry survives
// reconnects; only the capture is swapped.
type entry struct {
	cam   repository.Camera
	queue *FrameQueue
	rec   *recording.Recorder

	// detMu serializes detection; the tracker state is single-writer.
	detMu sync.Mutex
	state *motion.State

	capMu sync.Mutex
	cap   capture.Capture

	cancel context.CancelFunc
	done   chan struct{}
}

// getCapture returns the current capture.
func (e *entry) getCapture() capture.Capture {
	e.capMu.Lock()
	defer e.capMu.Unlock()
	return e.cap
}

// setCapture swaps in a reconnected capture and closes the old one.
// Queue and tracker state are untouched.
func (e *entry) setCapture(c capture.Capture) {
	e.capMu.Lock()
	old := e.cap
	e.cap = c
	e.capMu.Unlock()
	if old != nil {
		old.Close()
	}
}

// stop tears the entry down: cancels the reader, closes the capture to
// unblock any in-flight Read, waits for the reader to exit, and stops
// a running continuous loop.
func (e *entry) stop() {
	e.cancel()
	e.capMu.Lock()
	if e.cap != nil {
		e.cap.Close()
	}
	e.capMu.Unlock()
	<-e.done

	if e.rec.Recording() {
		e.rec.StopContinuous()
	}
}
