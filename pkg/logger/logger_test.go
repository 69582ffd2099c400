package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestChatLevel(t *testing.T) {
	tests := map[string]Level{
		"off":     PanicLevel,
		"error":   ErrorLevel,
		"":        WarnLevel,
		"WARN":    WarnLevel,
		"info":    InfoLevel,
		"debug":   DebugLevel,
		"verbose": TraceLevel,
		"loud":    WarnLevel,
	}
	for name, want := range tests {
		assert.Equal(t, want, ChatLevel(name), name)
	}
}

func TestWithTrace(t *testing.T) {
	e := WithTrace(context.Background())
	assert.NotContains(t, e.Data, "trace_id")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	e = WithTrace(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", e.Data["trace_id"])
}

func TestComponent(t *testing.T) {
	assert.Equal(t, "bridge", Component("bridge").Data["component"])
}

func TestDeriveKeepsOwnLevel(t *testing.T) {
	l := Derive(DebugLevel)
	assert.Equal(t, DebugLevel, l.GetLevel())
	assert.Equal(t, StandardLogger().Out, l.Out)
}
