package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a Juris error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrNoteTooLarge      ErrorCode = "NOTE_TOO_LARGE"      // 413
	ErrInternal          ErrorCode = "INTERNAL"            // 500
	ErrNotImplemented    ErrorCode = "NOT_IMPLEMENTED"     // 501
	ErrNetwork           ErrorCode = "NETWORK"             // 502
	ErrMalformedResponse ErrorCode = "MALFORMED_RESPONSE"  // 502
	ErrHTTPStatus        ErrorCode = "HTTP_STATUS"         // upstream status
)

// JurisError represents a structured error with code, status, and details.
type JurisError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *JurisError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *JurisError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *JurisError {
	return &JurisError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing resource.
func NewNotFound(kind, identifier string) *JurisError {
	return &JurisError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameAlreadyExists creates a 409 error for note title collisions.
func NewNameAlreadyExists(title string) *JurisError {
	return &JurisError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("note with title %q already exists", title),
		Details: map[string]any{"title": title},
	}
}

// NewNoteTooLarge creates a 413 error when a note body exceeds the size limit.
func NewNoteTooLarge(max, actual int) *JurisError {
	return &JurisError{
		Code:    ErrNoteTooLarge,
		Status:  413,
		Message: fmt.Sprintf("note exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewNotImplemented creates a 501 error for features the backend does not offer yet.
func NewNotImplemented(feature string) *JurisError {
	return &JurisError{
		Code:    ErrNotImplemented,
		Status:  501,
		Message: fmt.Sprintf("%s is not yet available", feature),
		Details: map[string]any{"feature": feature},
	}
}

// NewNetwork creates a 502 error for a request that never produced a response.
func NewNetwork(method, path string, err error) *JurisError {
	return &JurisError{
		Code:    ErrNetwork,
		Status:  502,
		Message: fmt.Sprintf("%s %s failed: %v", method, path, err),
		Details: map[string]any{"method": method, "path": path},
		cause:   err,
	}
}

// NewHTTPStatus creates an error carrying the upstream non-success status.
// A 404 from upstream maps to ErrNotFound so callers can treat it uniformly.
func NewHTTPStatus(method, path string, status int, body string) *JurisError {
	code := ErrHTTPStatus
	if status == 404 {
		code = ErrNotFound
	}
	return &JurisError{
		Code:    code,
		Status:  status,
		Message: fmt.Sprintf("%s %s returned status %d", method, path, status),
		Details: map[string]any{"method": method, "path": path, "status": status, "body": body},
	}
}

// NewMalformedResponse creates a 502 error for a response body that could not be used.
func NewMalformedResponse(path, reason string) *JurisError {
	return &JurisError{
		Code:    ErrMalformedResponse,
		Status:  502,
		Message: fmt.Sprintf("malformed response from %s: %s", path, reason),
		Details: map[string]any{"path": path},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
// The message stays generic; the original error is kept in Details for logging.
func NewInternal(err error) *JurisError {
	details := map[string]any{}
	if err != nil {
		details["internal_error"] = err.Error()
	}
	return &JurisError{
		Code:    ErrInternal,
		Status:  500,
		Message: "an internal error occurred",
		Details: details,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) a JurisError with the given code.
func Is(err error, code ErrorCode) bool {
	var jErr *JurisError
	if stderrors.As(err, &jErr) {
		return jErr.Code == code
	}
	return false
}

// UserMessage returns the text shown in inline error banners.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var jErr *JurisError
	if !stderrors.As(err, &jErr) {
		return "Something went wrong. Please try again."
	}
	switch jErr.Code {
	case ErrNetwork:
		return "Could not reach the server. Check your connection and try again."
	case ErrHTTPStatus, ErrMalformedResponse:
		return fmt.Sprintf("The server could not complete the request (%s).", jErr.Message)
	case ErrInternal:
		return "Something went wrong. Please try again."
	default:
		return jErr.Message
	}
}
