// Package logger is the logrus facade shared by the binding layer.
//
// Import it as `log`; the backend is configured once, usually through
// chat-bindings/pkg/bootstrap.
package logger

import (
	"context"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)


type Fields = log.Fields
type Entry = log.Entry
type Logger = log.Logger
type Level = log.Level
type Hook = log.Hook

const (
	PanicLevel = log.PanicLevel
	FatalLevel = log.FatalLevel
	ErrorLevel = log.ErrorLevel
	WarnLevel  = log.WarnLevel
	InfoLevel  = log.InfoLevel
	DebugLevel = log.DebugLevel
	TraceLevel = log.TraceLevel
)

func StandardLogger() *Logger { return log.StandardLogger() }

// Derive returns a logger sharing the standard logger's output, formatter
// and hooks but with its own level.
func Derive(level Level) *Logger {
	std := log.StandardLogger()
	l := log.New()
	l.SetOutput(std.Out)
	l.SetFormatter(std.Formatter)
	l.SetReportCaller(std.ReportCaller)
	hooks := make(log.LevelHooks, len(std.Hooks))
	for lvl, hs := range std.Hooks {
		hooks[lvl] = append([]Hook(nil), hs...)
	}
	l.ReplaceHooks(hooks)
	l.SetLevel(level)
	return l
}

func AddHook(h Hook)                         { log.AddHook(h) }
func SetLevel(level Level)                   { log.SetLevel(level) }
func ParseLevel(level string) (Level, error) { return log.ParseLevel(level) }
func SetOutput(out io.Writer)                { log.SetOutput(out) }

// ChatLevel maps the chat client's log verbosity names onto logrus levels.
// "off" silences everything but panics; unknown names fall back to warn.
func ChatLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "off":
		return PanicLevel
	case "error":
		return ErrorLevel
	case "warn", "warning", "":
		return WarnLevel
	case "info":
		return InfoLevel
	case "debug":
		return DebugLevel
	case "verbose", "trace":
		return TraceLevel
	default:
		return WarnLevel
	}
}

func WithField(key string, value any) *Entry { return log.WithField(key, value) }
func WithFields(fields Fields) *Entry        { return log.WithFields(fields) }
func WithError(err error) *Entry             { return log.WithError(err) }

// Component returns an entry tagged with the emitting package.
func Component(name string) *Entry { return log.WithField("component", name) }

// WithTrace binds ctx and adds "trace_id" when an OpenTelemetry span context is present.
func WithTrace(ctx context.Context) *Entry {
	e := log.WithContext(ctx)
	if ctx == nil {
		return e
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		e = e.WithField("trace_id", sc.TraceID().String())
	}
	return e
}

func Debug(args ...any) { log.Debug(args...) }
func Info(args ...any)  { log.Info(args...) }
func Warn(args ...any)  { log.Warn(args...) }
func Error(args ...any) { log.Error(args...) }
func Fatal(args ...any) { log.Fatal(args...) }

func Debugf(format string, args ...any) { log.Debugf(format, args...) }
func Infof(format string, args ...any)  { log.Infof(format, args...) }
func Warnf(format string, args ...any)  { log.Warnf(format, args...) }
func Errorf(format string, args ...any) { log.Errorf(format, args...) }
func Fatalf(format string, args ...any) { log.Fatalf(format, args...) }
