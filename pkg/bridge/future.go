// Package bridge adapts the engine's single-shot asynchronous results into Go
// calling shapes: completion callbacks, blocking context-aware waits, and
// owner-scoped handlers.
//
// An engine call hands back a Future. The future invokes its Consumer once the
// engine knows the outcome, on whatever goroutine the engine uses for delivery.
// Everything in this package guarantees that the user-visible sink runs exactly
// once per call, no matter how often the engine invokes the consumer.
package bridge

import (
	"fmt"
	"reflect"
)

// Result is the success/failure union delivered by the engine.
// A non-nil Err means failure and Value must be ignored.
type Result[T any] struct {
	Value T
	Err   error
}

// Unpack returns the value and error in Go's usual order.
func (r Result[T]) Unpack() (T, error) {
	return r.Value, r.Err
}

// Consumer receives the outcome of one engine call.
type Consumer[T any] func(Result[T])

// Future is a single-shot asynchronous engine result.
type Future[T any] interface {
	Async(Consumer[T])
}

// FutureFunc adapts a plain function to Future.
type FutureFunc[T any] func(Consumer[T])

// Async implements Future.
func (f FutureFunc[T]) Async(c Consumer[T]) {
	f(c)
}

// Resolved returns a future that delivers v synchronously.
func Resolved[T any](v T) Future[T] {
	return FutureFunc[T](func(c Consumer[T]) {
		c(Result[T]{Value: v})
	})
}

// Failed returns a future that delivers err synchronously.
func Failed[T any](err error) Future[T] {
	return FutureFunc[T](func(c Consumer[T]) {
		c(Result[T]{Err: err})
	})
}

// Map converts the success value of f with fn. Failures pass through untouched.
func Map[T, U any](f Future[T], fn func(T) (U, error)) Future[U] {
	return FutureFunc[U](func(c Consumer[U]) {
		f.Async(func(r Result[T]) {
			if r.Err != nil {
				c(Result[U]{Err: r.Err})
				return
			}
			u, err := fn(r.Value)
			c(Result[U]{Value: u, Err: err})
		})
	})
}

// Typed narrows an untyped engine payload to T. A payload of any other shape
// fails with *UnexpectedResultError instead of panicking.
func Typed[T any](f Future[any]) Future[T] {
	return Map(f, func(v any) (T, error) {
		t, ok := v.(T)
		if !ok {
			var zero T
			return zero, &UnexpectedResultError{
				Want: reflect.TypeFor[T]().String(),
				Got:  fmt.Sprintf("%T", v),
			}
		}
		return t, nil
	})
}

// WithOp tags engine failures of f with the operation name.
func WithOp[T any](op string, f Future[T]) Future[T] {
	return FutureFunc[T](func(c Consumer[T]) {
		f.Async(func(r Result[T]) {
			if r.Err != nil {
				r.Err = wrapEngine(op, r.Err)
			}
			c(r)
		})
	})
}
