package engine

import (
	"context"
	"errors"

	apperrors "github.com/kbukum/execkit/errors"
	"github.com/kbukum/execkit/resilience"
)

// Engine lifecycle errors.
var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrShutdown       = errors.New("engine is shut down")
	ErrInvalidConfig  = errors.New("invalid engine config")
	ErrNilOperation   = errors.New("nil operation")
)

// ToAppError maps an engine error to an AppError for HTTP callers.
// Errors that already carry an AppError are returned as is; anything
// unrecognized becomes an operation failure wrapping err.
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr
	}

	var (
		openErr      *resilience.CircuitOpenError
		timeoutErr   *resilience.TimeoutError
		exhaustedErr *resilience.RetryExhaustedError
	)
	// Exhaustion wraps the last attempt's error, so it is matched first.
	switch {
	case errors.As(err, &exhaustedErr):
		return apperrors.RetryExhausted(exhaustedErr.Attempts, exhaustedErr.Last).WithCause(err)
	case errors.As(err, &openErr):
		return apperrors.CircuitOpen(openErr.Operation, openErr.Remaining).WithCause(err)
	case errors.As(err, &timeoutErr):
		return apperrors.Timeout(timeoutErr.Operation).
			WithCause(err).
			WithDetail("timeout_ms", timeoutErr.Timeout.Milliseconds())
	case errors.Is(err, resilience.ErrBulkheadFull), errors.Is(err, resilience.ErrBulkheadTimeout):
		return apperrors.Overloaded("execution engine").WithCause(err)
	case errors.Is(err, ErrShutdown), errors.Is(err, ErrNotInitialized):
		return apperrors.ServiceUnavailable("execution engine").WithCause(err)
	case errors.Is(err, ErrInvalidConfig):
		return apperrors.InvalidConfig(err)
	case errors.Is(err, context.Canceled):
		return apperrors.Canceled().WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("deadline exceeded").WithCause(err)
	default:
		return apperrors.OperationFailed(err)
	}
}
