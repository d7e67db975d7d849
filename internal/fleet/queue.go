package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

// DefaultQueueSize is the frame queue depth per camera.
const DefaultQueueSize = 10

// FrameQueue is a bounded newest-wins buffer between one reader and
// many consumers. Put never blocks: when full, the oldest frame is
// dropped to make room. Consumers therefore never see an arbitrarily
// stale frame, only a skipped one.
type FrameQueue struct {
	mu sync.Mutex
	ch chan *frame.Frame
}

// NewFrameQueue creates a queue of the given depth (DefaultQueueSize
// when size <= 0).
func NewFrameQueue(size int) *FrameQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &FrameQueue{ch: make(chan *frame.Frame, size)}
}

// Put inserts a frame, evicting the oldest buffered frame if needed.
func (q *FrameQueue) Put(f *frame.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case q.ch <- f:
			return
		default:
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// Get waits up to timeout for a frame. Returns ErrTimeout when none
// arrives, or ctx.Err() if the context ends first.
func (q *FrameQueue) Get(ctx context.Context, timeout time.Duration) (*frame.Frame, error) {
	select {
	case f := <-q.ch:
		return f, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case f := <-q.ch:
		return f, nil
	case <-timer.C:
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	return len(q.ch)
}
