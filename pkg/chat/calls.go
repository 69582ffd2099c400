package chat

import (
	"context"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
	"github.com/Goden-Gun/chat-bindings/pkg/subscription"
)

// await is the blocking shape: run f, wait for it under ctx, convert.
func await[D, W any](ctx context.Context, op string, f bridge.Future[D], conv func(D) W) (W, error) {
	d, err := bridge.Await(ctx, bridge.WithOp(op, f))
	if err != nil {
		var zero W
		return zero, err
	}
	return conv(d), nil
}

// async is the completion shape. The owner is held weakly: if it was closed
// or collected by the time the engine answers, cb gets bridge.ErrOwnerExpired.
func async[O, D, W any](owner *O, life *bridge.Lifetime, op string, f bridge.Future[D], conv func(D) W, cb func(W, error)) {
	bridge.Weak(bridge.WithOp(op, f), bridge.WeakRef(owner, life), func(r bridge.Result[D], _ *O) {
		if cb == nil {
			return
		}
		if r.Err != nil {
			var zero W
			cb(zero, r.Err)
			return
		}
		cb(conv(r.Value), nil)
	})
}

func same[T any](v T) T { return v }

func discard(engine.Empty) struct{} { return struct{}{} }

// errOnly adapts an error callback to the completion shape.
func errOnly(cb func(error)) func(struct{}, error) {
	if cb == nil {
		return nil
	}
	return func(_ struct{}, err error) { cb(err) }
}

func mapSlice[D, W any](conv func(D) W) func([]D) []W {
	return func(ds []D) []W {
		out := make([]W, 0, len(ds))
		for _, d := range ds {
			out = append(out, conv(d))
		}
		return out
	}
}

// listener keeps owner reachable for as long as the registration is open,
// so engine callbacks can always resolve it. Done is closed when the
// registration ends, including when the owner is closed.
type listener struct {
	subscription.Closer
	owner any
	done  <-chan struct{}
}

func (l listener) Done() <-chan struct{} { return l.done }
