// Package apperror defines the domain errors shared by the service and handler layers.
//
// Services return these; handlers translate them to HTTP with errors.Is.
// Nothing in here knows about status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnavailable  = errors.New("store unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// Machine-readable codes sent to clients in the "error" field.
const (
	CodeNotFound     = "not_found"
	CodeValidation   = "validation_error"
	CodeInvalidEmail = "invalid_email"
	CodeUnavailable  = "store_unavailable"
	CodeUnauthorized = "unauthorized"
)

type AppError struct {
	Err     error  // sentinel, matched with errors.Is
	Code    string // machine-readable code
	Message string // human-readable message
	Field   string // optional: input field at fault
	cause   error  // optional: underlying failure, kept out of Message
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so errors.Is
// matches ErrUnavailable as well as a driver error like context.Canceled.
func (e *AppError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.cause}
}

// Cause returns the underlying failure, or nil.
func (e *AppError) Cause() error {
	return e.cause
}

func NotFound(resource, key string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found with key %s", resource, key),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeValidation,
		Message: message,
		Field:   field,
	}
}

// InvalidEmail is the validation failure for a malformed email submission.
func InvalidEmail(message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Code:    CodeInvalidEmail,
		Message: message,
		Field:   "email",
	}
}

// Unavailable reports a failed or timed-out store call. The operation that
// hit it did not commit, and callers may retry it as is.
func Unavailable(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnavailable,
		Code:    CodeUnavailable,
		Message: fmt.Sprintf("%s failed: subscription store unavailable", op),
		cause:   cause,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
	}
}
