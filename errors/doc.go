// Package errors provides structured application errors with
// machine-readable codes, HTTP status mapping and retryable detection,
// following RFC 7807 and Google AIP-193.
//
// Engine errors are mapped onto AppError at the edge, for example in an
// HTTP handler:
//
//	if err != nil {
//	    appErr := engine.ToAppError(err)
//	    c.JSON(appErr.HTTPStatus, appErr.ToResponse())
//	    return
//	}
package errors
