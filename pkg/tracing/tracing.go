package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TraceIDAttribute is the envelope attribute carrying the plain trace id.
const TraceIDAttribute = "trace_id"

var propagator = propagation.TraceContext{}

// InjectAttributes writes the trace context of ctx into attrs and returns it.
// A nil map is allocated.
func InjectAttributes(ctx context.Context, attrs map[string]string) map[string]string {
	if attrs == nil {
		attrs = map[string]string{}
	}
	propagator.Inject(ctx, propagation.MapCarrier(attrs))
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		attrs[TraceIDAttribute] = sc.TraceID().String()
	}
	return attrs
}

// ExtractAttributes restores a remote span context from attrs.
func ExtractAttributes(ctx context.Context, attrs map[string]string) context.Context {
	if len(attrs) == 0 {
		return ctx
	}
	return propagator.Extract(ctx, propagation.MapCarrier(attrs))
}

// Tracer returns named tracer for binding components.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
