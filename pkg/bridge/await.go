package bridge

import (
	"context"

	"go.opentelemetry.io/otel/codes"

	"github.com/Goden-Gun/chat-bindings/pkg/tracing"
)

var tracer = tracing.Tracer("chat-bindings/bridge")

// Await blocks until f resolves or ctx is done. Cancelling ctx abandons the
// wait only; the engine operation keeps running and its late result is
// discarded.
func Await[T any](ctx context.Context, f Future[T]) (T, error) {
	ctx, span := tracer.Start(ctx, "bridge.await")
	defer span.End()

	done := make(chan Result[T], 1)
	Strong(f, done, func(r Result[T], done chan Result[T]) {
		done <- r
	})

	select {
	case r := <-done:
		if r.Err != nil {
			span.RecordError(r.Err)
			span.SetStatus(codes.Error, r.Err.Error())
		}
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		span.SetStatus(codes.Error, "abandoned")
		return zero, ctx.Err()
	}
}
