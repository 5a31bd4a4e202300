package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
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

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// --- Pipeline error constructors ---

// Configuration creates an error for a stage executed while missing a
// required piece (upstream, transformation or params).
func Configuration(stage, missing string) *AppError {
	return &AppError{
		Code:    ErrCodeConfiguration,
		Message: fmt.Sprintf("stage %s is not configured: missing %s", stage, missing),
		Details: map[string]any{"stage": stage, "missing": missing},
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeValidation, Message: message}
}

// TypeMismatch creates an error for a stage that received upstream data of
// the wrong shape.
func TypeMismatch(stage, upstream, want, got string) *AppError {
	return &AppError{
		Code: ErrCodeTypeMismatch,
		Message: fmt.Sprintf("stage %s expects %s from upstream %s, got %s",
			stage, want, upstream, got),
		Details: map[string]any{"stage": stage, "upstream": upstream, "want": want, "got": got},
	}
}

// Usage creates an error for an operation a stage does not support.
func Usage(stage, reason string) *AppError {
	return &AppError{
		Code:    ErrCodeUsage,
		Message: fmt.Sprintf("stage %s: %s", stage, reason),
		Details: map[string]any{"stage": stage},
	}
}

// --- Input and I/O constructors ---

// InvalidInput creates a new AppError for a single invalid field.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: fmt.Sprintf("invalid input: %s", reason),
		Details: details,
	}
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Details: details,
	}
}

// IO wraps a file system or codec failure. The cause is kept unchanged so
// callers can still match it with errors.Is (e.g. fs.ErrNotExist).
func IO(op, path string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeIO,
		Message: fmt.Sprintf("%s %s failed", op, path),
		Details: map[string]any{"op": op, "path": path},
		Cause:   cause,
	}
}

// Internal creates a new AppError for an unexpected internal error.
func Internal(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: "an unexpected error occurred",
		Cause:   cause,
	}
}

// --- Inspection helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err (or any error it wraps) is an AppError with code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}
