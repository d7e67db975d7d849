package fleet

import (
	"context"
	"sync"
)

// DefaultPoolSize is the number of detection workers shared across
// cameras.
const DefaultPoolSize = 4

// WorkerPool runs CPU-bound pixel work on a fixed set of goroutines so
// a burst of GetFrame calls cannot oversubscribe the host.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup

	closeOnce sync.Once
	closed    chan struct{}
}

// NewWorkerPool starts size workers (DefaultPoolSize when size <= 0).
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	p := &WorkerPool{
		tasks:  make(chan func()),
		closed: make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go func() {
			defer p.wg.Done()
			for {
				select {
				case fn := <-p.tasks:
					fn()
				case <-p.closed:
					return
				}
			}
		}()
	}
	return p
}

// Do runs fn on a worker and waits for it to finish. Returns ctx.Err()
// if the context ends before a worker picks the task up.
func (p *WorkerPool) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}

	select {
	case p.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		// Pool shut down; run inline so callers still make progress
		// during cleanup.
		task()
		return nil
	}

	<-done
	return nil
}

// Close stops the workers and waits for in-flight tasks to finish.
// The tasks channel is never closed: a Do racing Close must fall
// through to its inline path, not panic on a closed-channel send.
func (p *WorkerPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
	p.wg.Wait()
}
