package errors

import (
	stderrors "errors"
	"net/http"
)

// ErrorResponse is the JSON error envelope of execkit HTTP surfaces.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error fields clients act on. Status repeats the
// HTTP status so batch items, which share one 200 response, keep theirs.
type ErrorBody struct {
	Code      ErrorCode      `json:"code"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

// ToResponse builds the client-facing envelope. The cause is never exposed.
func (e *AppError) ToResponse() ErrorResponse {
	status := e.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Status:    status,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Response returns the status and envelope for any error. Errors without an
// *AppError in their chain become INTERNAL_ERROR.
func Response(err error) (int, ErrorResponse) {
	appErr, ok := AsAppError(err)
	if !ok {
		appErr = Internal(err)
	}
	resp := appErr.ToResponse()
	return resp.Error.Status, resp
}
