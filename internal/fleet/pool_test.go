package fleet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	p := NewWorkerPool(2)
	defer p.Close()

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Do(context.Background(), func() { ran.Add(1) }); err != nil {
				t.Errorf("Do: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := ran.Load(); got != 20 {
		t.Errorf("ran = %d, want 20", got)
	}
}

func TestWorkerPoolDoContextCancelled(t *testing.T) {
	p := NewWorkerPool(1)
	defer p.Close()

	// Occupy the single worker so the next Do has to wait.
	release := make(chan struct{})
	go p.Do(context.Background(), func() { <-release })
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Do(ctx, func() {}); err != context.Canceled {
		t.Errorf("Do = %v, want context.Canceled", err)
	}
	close(release)
}

func TestWorkerPoolDoAfterClose(t *testing.T) {
	p := NewWorkerPool(1)
	p.Close()

	var ran bool
	if err := p.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatalf("Do after Close: %v", err)
	}
	if !ran {
		t.Error("task should run inline after Close")
	}
}

func TestWorkerPoolCloseDuringDo(t *testing.T) {
	// Do must never panic when Close races a parked submit: tasks stay
	// open and the submit falls through to the inline path.
	for iter := 0; iter < 50; iter++ {
		p := NewWorkerPool(2)

		var wg sync.WaitGroup
		var ran atomic.Int32
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						t.Errorf("Do panicked: %v", r)
					}
				}()
				if err := p.Do(context.Background(), func() { ran.Add(1) }); err != nil {
					t.Errorf("Do: %v", err)
				}
			}()
		}

		p.Close()
		wg.Wait()

		if got := ran.Load(); got != 16 {
			t.Errorf("iter %d: ran = %d, want 16", iter, got)
		}
	}
}
