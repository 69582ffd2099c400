package bridge

import (
	"context"
	"errors"
)

var (
	// ErrOwnerExpired is delivered by Weak when the owner was torn down before
	// the engine answered. The engine's real outcome is discarded.
	ErrOwnerExpired = errors.New("bridge: instance no longer exists")
	// ErrUnexpectedResult matches every *UnexpectedResultError.
	ErrUnexpectedResult = errors.New("bridge: unexpected result type")
)

// UnexpectedResultError reports an engine payload of the wrong shape.
type UnexpectedResultError struct {
	Want string
	Got  string
}

func (e *UnexpectedResultError) Error() string {
	return "bridge: unexpected result type: want " + e.Want + ", got " + e.Got
}

func (e *UnexpectedResultError) Is(target error) bool {
	return target == ErrUnexpectedResult
}

// EngineError wraps a failure reported by the engine. Unwrap yields the
// engine's error unchanged so callers can match it with errors.Is/As.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	if e.Op == "" {
		return "engine: " + e.Err.Error()
	}
	return "engine: " + e.Op + ": " + e.Err.Error()
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// classified reports whether err already belongs to the bridge taxonomy and
// must be passed through as is.
func classified(err error) bool {
	if errors.Is(err, ErrOwnerExpired) || errors.Is(err, ErrUnexpectedResult) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var engErr *EngineError
	return errors.As(err, &engErr)
}

func wrapEngine(op string, err error) error {
	if err == nil || classified(err) {
		return err
	}
	return &EngineError{Op: op, Err: err}
}
