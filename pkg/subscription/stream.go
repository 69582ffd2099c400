package subscription

import (
	"context"
	"iter"
)

const defaultBuffer = 16

// Register performs the engine-side listener registration. emit may be called
// from any goroutine, including before Register returns; calls for one
// registration must not overlap.
type Register[T any] func(emit func(T)) (Closer, error)

// Option tunes a stream.
type Option func(*options)

type options struct {
	buffer int
}

// WithBuffer sets how many events may queue between the engine and the
// consumer before emit starts blocking.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.buffer = n
		}
	}
}

// Stream is a push-driven sequence of engine events. Cancelling the context
// passed to Open, calling Close, closing the Handle, or the registration
// ending on its own (see Ender) closes the engine registration and then the
// channel returned by C.
type Stream[T any] struct {
	in     chan T
	out    chan T
	handle *Handle
	ended  <-chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

// Ender is implemented by registrations that can end on their own, such as
// a listener whose owner was closed. A stream over one stops once Done is
// closed.
type Ender interface {
	Done() <-chan struct{}
}

// Open registers with the engine and starts forwarding events.
func Open[T any](ctx context.Context, register Register[T], opts ...Option) (*Stream[T], error) {
	o := options{buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		in:     make(chan T, o.buffer),
		out:    make(chan T),
		handle: NewHandle(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	closer, err := register(Deliver(s.handle, func(v T) {
		select {
		case s.in <- v:
		case <-ctx.Done():
		case <-s.handle.Done():
		}
	}))
	if err != nil {
		cancel()
		_ = s.handle.Close()
		return nil, err
	}
	if err := s.handle.Attach(closer); err != nil {
		cancel()
		return nil, err
	}
	if e, ok := closer.(Ender); ok {
		s.ended = e.Done()
	}
	go s.pump(ctx)
	return s, nil
}

func (s *Stream[T]) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.out)
	defer s.handle.Close()
	closed := s.handle.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-s.ended:
			return
		case v := <-s.in:
			select {
			case s.out <- v:
			case <-ctx.Done():
				return
			case <-closed:
				return
			case <-s.ended:
				return
			}
		}
	}
}

// C returns the event channel. It is closed after the registration is.
func (s *Stream[T]) C() <-chan T {
	return s.out
}

// Handle exposes the underlying registration handle.
func (s *Stream[T]) Handle() *Handle {
	return s.handle
}

// Close stops the stream and waits until the registration is released.
func (s *Stream[T]) Close() error {
	s.cancel()
	<-s.done
	return nil
}

// Seq returns a lazy sequence. Every range loop registers anew; leaving the
// loop early or cancelling ctx closes that loop's registration. A failed
// registration or a cancelled ctx is yielded as the final error.
func Seq[T any](ctx context.Context, register Register[T], opts ...Option) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		s, err := Open(ctx, register, opts...)
		if err != nil {
			yield(zero, err)
			return
		}
		defer s.Close()
		for v := range s.C() {
			if !yield(v, nil) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(zero, err)
		}
	}
}
