package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// Wrap returns err as an AppError: an AppError in err's chain is returned
// as is, anything else becomes an internal error caused by err.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Internal(err)
}

// --- Common Error Constructors ---

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for an operation that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The operation took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// RateLimited creates a new AppError for too many requests.
func RateLimited() *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
	}
}

// Overloaded creates a new AppError for a resource with no free capacity.
func Overloaded(resource string) *AppError {
	return &AppError{
		Code: ErrCodeOverloaded, Message: fmt.Sprintf("The %s is at capacity. Please try again.", resource),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"resource": resource},
	}
}

// CircuitOpen creates a new AppError for a call rejected by an open circuit
// breaker. retryIn is the time until the breaker admits a probe.
func CircuitOpen(operation string, retryIn time.Duration) *AppError {
	details := map[string]any{"operation": operation}
	if retryIn > 0 {
		details["retry_in_ms"] = retryIn.Milliseconds()
	}
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("%s is failing and temporarily disabled.", operation),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true, Details: details,
	}
}

// RetryExhausted creates a new AppError for an operation that failed on
// every attempt. last is the error of the final attempt.
func RetryExhausted(attempts int, last error) *AppError {
	return &AppError{
		Code: ErrCodeRetryExhausted, Message: fmt.Sprintf("The operation failed after %d attempts.", attempts),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"attempts": attempts}, Cause: last,
	}
}

// OperationFailed creates a new AppError for an error returned by the
// executed operation.
func OperationFailed(cause error) *AppError {
	msg := "The operation failed."
	if cause != nil {
		msg = cause.Error()
	}
	return &AppError{
		Code: ErrCodeOperationFailed, Message: msg,
		HTTPStatus: http.StatusBadGateway, Retryable: true, Cause: cause,
	}
}

// Canceled creates a new AppError for a request the caller abandoned.
func Canceled() *AppError {
	return &AppError{
		Code: ErrCodeCanceled, Message: "The request was cancelled.",
		HTTPStatus: 499, Retryable: false,
	}
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// InvalidConfig creates a new AppError for a rejected configuration.
func InvalidConfig(cause error) *AppError {
	msg := "Invalid configuration."
	if cause != nil {
		msg = fmt.Sprintf("Invalid configuration: %v", cause)
	}
	return &AppError{
		Code: ErrCodeInvalidConfig, Message: msg,
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// Internal creates a new AppError for an internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}
