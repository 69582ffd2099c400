// Package subscription wraps multi-shot engine listeners: an idempotent
// Handle around the engine registration, and stream adapters that tie the
// registration's lifetime to a context.
package subscription

import (
	"sync"
	"sync/atomic"
)

// Closer is what the engine returns for a listener registration.
type Closer interface {
	Close() error
}

// CloserFunc adapts a function to Closer.
type CloserFunc func() error

// Close implements Closer.
func (f CloserFunc) Close() error {
	return f()
}

// Handle owns one engine registration. Close is idempotent, and once it has
// been called nothing more is delivered through Deliver.
type Handle struct {
	mu     sync.Mutex
	closer Closer
	closed atomic.Bool
	done   chan struct{}
}

// NewHandle returns a handle with no registration attached yet.
func NewHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Wrap returns a handle owning c.
func Wrap(c Closer) *Handle {
	h := NewHandle()
	_ = h.Attach(c)
	return h
}

// Attach hands the engine registration to h. If h was closed while the
// registration was in flight, c is closed right away.
func (h *Handle) Attach(c Closer) error {
	if c == nil {
		return nil
	}
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return c.Close()
	}
	h.closer = c
	h.mu.Unlock()
	return nil
}

// Close releases the engine registration. Only the first call does work.
func (h *Handle) Close() error {
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil
	}
	h.closed.Store(true)
	c := h.closer
	h.closer = nil
	close(h.done)
	h.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Done is closed when the handle is closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Deliver gates fn behind h: events arriving after Close are dropped.
func Deliver[T any](h *Handle, fn func(T)) func(T) {
	return func(v T) {
		if h.Closed() {
			return
		}
		fn(v)
	}
}
