package resilience

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	ErrCircuitOpen        = errors.New("circuit breaker is open")
	ErrTimeout            = errors.New("operation timed out")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// ErrAbandoned marks an outcome the caller walked away from. A breaker
	// done callback given an error wrapping it records nothing.
	ErrAbandoned = errors.New("call abandoned")
)

// CircuitOpenError is returned when a call is rejected because the breaker
// for its operation is open (or a half-open probe is already in flight).
type CircuitOpenError struct {
	// Operation is the breaker name (the operation name, not the full key).
	Operation string
	// Remaining is the time left until the next recovery probe is allowed.
	Remaining time.Duration
}

func (e *CircuitOpenError) Error() string {
	if e.Remaining > 0 {
		return fmt.Sprintf("circuit breaker open for %q (retry in %s)", e.Operation, e.Remaining.Round(time.Millisecond))
	}
	return fmt.Sprintf("circuit breaker open for %q", e.Operation)
}

// Is reports whether target is ErrCircuitOpen.
func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// TimeoutError is returned when a bounded invocation exceeded its timeout.
type TimeoutError struct {
	// Operation is the operation name.
	Operation string
	// Key is the full operation key (name plus argument fingerprint).
	Key string
	// Timeout is the bound that was exceeded.
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out after %s", e.Operation, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// RetryExhaustedError is returned by Retry when every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the error of the last attempt.
func (e *RetryExhaustedError) Unwrap() error { return e.Last }

// Is reports whether target is ErrMaxRetriesExceeded.
func (e *RetryExhaustedError) Is(target error) bool { return target == ErrMaxRetriesExceeded }
