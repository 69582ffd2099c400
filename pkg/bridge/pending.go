package bridge

import (
	"sync/atomic"
	"weak"

	log "github.com/Goden-Gun/chat-bindings/pkg/logger"
)

// pending is one in-flight engine call. The sink runs once; later deliveries
// are dropped, and the sink (with everything it captured) is released after the
// first one.
type pending[T any] struct {
	armed atomic.Bool
	sink  func(Result[T])
}

func newPending[T any](sink func(Result[T])) *pending[T] {
	p := &pending[T]{sink: sink}
	p.armed.Store(true)
	return p
}

func (p *pending[T]) consume(r Result[T]) {
	if !p.armed.CompareAndSwap(true, false) {
		log.Component("bridge").Warn("engine delivered a result twice, dropping the duplicate")
		return
	}
	sink := p.sink
	p.sink = nil
	if r.Err != nil {
		r.Err = wrapEngine("", r.Err)
	}
	sink(r)
}

// Strong bridges f with owner held for the duration of the call. handler runs
// exactly once with the engine's outcome and the owner.
func Strong[O, T any](f Future[T], owner O, handler func(Result[T], O)) {
	p := newPending(func(r Result[T]) {
		handler(r, owner)
	})
	f.Async(p.consume)
}

// Lifetime records the explicit teardown of a wrapper. The zero value is alive.
type Lifetime struct {
	released atomic.Bool
}

// Release marks the owner as gone. It reports whether this call did it.
func (l *Lifetime) Release() bool {
	return l.released.CompareAndSwap(false, true)
}

// Alive reports whether Release has not been called yet.
func (l *Lifetime) Alive() bool {
	return !l.released.Load()
}

// Ref is a non-owning reference to a wrapper. It resolves to nil once the
// wrapper is garbage collected or its Lifetime was released.
type Ref[O any] struct {
	ptr  weak.Pointer[O]
	life *Lifetime
}

// WeakRef builds a Ref to owner. life may be nil when only garbage collection
// ends the owner.
func WeakRef[O any](owner *O, life *Lifetime) Ref[O] {
	return Ref[O]{ptr: weak.Make(owner), life: life}
}

// Get returns the owner if it is still alive.
func (r Ref[O]) Get() (*O, bool) {
	if r.life != nil && !r.life.Alive() {
		return nil, false
	}
	o := r.ptr.Value()
	return o, o != nil
}

// Weak bridges f without keeping the owner alive. If the owner is gone by the
// time the engine answers, handler receives ErrOwnerExpired and a nil owner,
// even when the call itself succeeded.
func Weak[O, T any](f Future[T], ref Ref[O], handler func(Result[T], *O)) {
	p := newPending(func(r Result[T]) {
		owner, ok := ref.Get()
		if !ok {
			handler(Result[T]{Err: ErrOwnerExpired}, nil)
			return
		}
		handler(r, owner)
	})
	f.Async(p.consume)
}

// Complete is the completion-handler shape. cb may be nil, in which case the
// call still runs and its outcome is discarded.
func Complete[T any](f Future[T], cb func(T, error)) {
	Strong(f, cb, func(r Result[T], cb func(T, error)) {
		if cb != nil {
			cb(r.Value, r.Err)
		}
	})
}
