// Package logging keeps a bounded window of recent log entries in
// memory so the HTTP API can serve and stream them without touching
// the process's primary log output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Component string                 `json:"component,omitempty"`
	Attrs     map[string]interface{} `json:"attrs,omitempty"`
}

// Buffer retains the newest entries up to a fixed capacity and fans
// new entries out to live subscribers. Slow subscribers miss entries
// rather than block logging.
type Buffer struct {
	mu   sync.RWMutex
	ring []Entry
	next int
	full bool
	subs map[chan Entry]struct{}
}

// NewBuffer creates a buffer holding at most capacity entries.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		ring: make([]Entry, capacity),
		subs: make(map[chan Entry]struct{}),
	}
}

// Append records an entry, overwriting the oldest once full.
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
	b.mu.Unlock()
}

// Recent returns up to n of the newest entries, oldest first.
func (b *Buffer) Recent(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.next
	if b.full {
		count = len(b.ring)
	}
	if n > count {
		n = count
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = b.ring[((b.next-1-i)+len(b.ring))%len(b.ring)]
	}
	return out
}

// Subscribe returns a channel fed with every entry appended after the
// call. The channel is buffered; entries are dropped when it is full.
func (b *Buffer) Subscribe() chan Entry {
	ch := make(chan Entry, 100)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe detaches and closes a subscriber channel.
func (b *Buffer) Unsubscribe(ch chan Entry) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// StreamHandler is a slog.Handler that copies each record into a
// Buffer and then hands it to a wrapped handler for output. The
// "component" attribute is lifted into Entry.Component so the API can
// filter by subsystem.
type StreamHandler struct {
	buffer *Buffer
	next   slog.Handler
	level  slog.Level
	attrs  []slog.Attr
}

// NewStreamHandler wraps next with capture into buffer. A nil next
// defaults to a JSON handler writing to out.
func NewStreamHandler(buffer *Buffer, out io.Writer, level slog.Level, next slog.Handler) *StreamHandler {
	if next == nil {
		next = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	return &StreamHandler{buffer: buffer, next: next, level: level}
}

func (h *StreamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *StreamHandler) Handle(ctx context.Context, r slog.Record) error {
	e := Entry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
		Attrs:   make(map[string]interface{}),
	}
	collect := func(a slog.Attr) {
		if a.Key == "component" {
			e.Component = a.Value.String()
			return
		}
		e.Attrs[a.Key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		collect(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		collect(a)
		return true
	})

	h.buffer.Append(e)
	return h.next.Handle(ctx, r)
}

func (h *StreamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &StreamHandler{
		buffer: h.buffer,
		next:   h.next.WithAttrs(attrs),
		level:  h.level,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *StreamHandler) WithGroup(name string) slog.Handler {
	return &StreamHandler{
		buffer: h.buffer,
		next:   h.next.WithGroup(name),
		level:  h.level,
		attrs:  h.attrs,
	}
}

var defaultBuffer = NewBuffer(1000)

// Default returns the process-wide log buffer served by the API.
func Default() *Buffer {
	return defaultBuffer
}
