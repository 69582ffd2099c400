package codes

import (
	"errors"

	"github.com/Goden-Gun/chat-bindings/pkg/bridge"
	"github.com/Goden-Gun/chat-bindings/pkg/engine"
)

// ErrorCode represents structured binding errors shared with application code.
type ErrorCode struct {
	Numeric int32
	Symbol  string
	Message string
}

var (
	// ErrUnauthorized indicates the engine rejected the access token.
	ErrUnauthorized = ErrorCode{Numeric: 40101, Symbol: "TOKEN_INVALID", Message: "authentication failed"}
	// ErrNotFound indicates the engine has no such object.
	ErrNotFound = ErrorCode{Numeric: 40401, Symbol: "NOT_FOUND", Message: "object not found"}
	// ErrAlreadyExists indicates a create collided with an existing object.
	ErrAlreadyExists = ErrorCode{Numeric: 40901, Symbol: "ALREADY_EXISTS", Message: "object already exists"}
	// ErrOwnerExpired indicates the wrapper went away before its call completed.
	ErrOwnerExpired = ErrorCode{Numeric: 41002, Symbol: "OWNER_EXPIRED", Message: "instance no longer exists"}
	// ErrInvalidPayload indicates the engine refused malformed arguments.
	ErrInvalidPayload = ErrorCode{Numeric: 41001, Symbol: "INVALID_PAYLOAD", Message: "invalid payload"}
	// ErrTooManyRequests indicates publish rate limiting.
	ErrTooManyRequests = ErrorCode{Numeric: 42901, Symbol: "RATE_LIMITED", Message: "too many requests"}
	// ErrUnexpectedResult indicates engine/binding version skew.
	ErrUnexpectedResult = ErrorCode{Numeric: 50002, Symbol: "UNEXPECTED_RESULT", Message: "unexpected result type"}
	// ErrEngineClosed indicates a call after engine shutdown.
	ErrEngineClosed = ErrorCode{Numeric: 50301, Symbol: "ENGINE_CLOSED", Message: "engine closed"}
	// ErrEngine is the catch-all for engine-reported failures.
	ErrEngine = ErrorCode{Numeric: 50001, Symbol: "ENGINE_FAILURE", Message: "engine failure"}
)

// Registry exposes a static list for validation or docs.
var Registry = []ErrorCode{
	ErrUnauthorized,
	ErrNotFound,
	ErrAlreadyExists,
	ErrOwnerExpired,
	ErrInvalidPayload,
	ErrTooManyRequests,
	ErrUnexpectedResult,
	ErrEngineClosed,
	ErrEngine,
}

// Of classifies err. The second result is false for nil and for errors that did
// not come out of the bridge (context cancellation, caller mistakes).
func Of(err error) (ErrorCode, bool) {
	if err == nil {
		return ErrorCode{}, false
	}
	switch {
	case errors.Is(err, bridge.ErrOwnerExpired):
		return ErrOwnerExpired, true
	case errors.Is(err, bridge.ErrUnexpectedResult):
		return ErrUnexpectedResult, true
	}
	var engErr *bridge.EngineError
	if !errors.As(err, &engErr) {
		return ErrorCode{}, false
	}
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return ErrNotFound, true
	case errors.Is(err, engine.ErrAlreadyExists):
		return ErrAlreadyExists, true
	case errors.Is(err, engine.ErrRateLimited):
		return ErrTooManyRequests, true
	case errors.Is(err, engine.ErrUnauthorized):
		return ErrUnauthorized, true
	case errors.Is(err, engine.ErrInvalidArgument):
		return ErrInvalidPayload, true
	case errors.Is(err, engine.ErrClosed):
		return ErrEngineClosed, true
	default:
		return ErrEngine, true
	}
}
