package apperror

import (
	"errors"
	"fmt"
)

// Sentinel kinds. Services wrap these; handlers map them to HTTP statuses
// with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuth          = errors.New("authentication required")
	ErrAuthorization = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrStorage       = errors.New("storage error")
)

type AppError struct {
	Err     error  // kind sentinel, or a wrapped storage error
	Message string // human-readable reason, safe to surface
	Field   string // optional: input field causing a validation error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Validation(field, message string) *AppError {
	return &AppError{Err: ErrValidation, Message: message, Field: field}
}

func Auth(message string) *AppError {
	return &AppError{Err: ErrAuth, Message: message}
}

func Authorization(message string) *AppError {
	return &AppError{Err: ErrAuthorization, Message: message}
}

func NotFound(resource string, id uint) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %d", resource, id),
	}
}

func Conflict(message string) *AppError {
	return &AppError{Err: ErrConflict, Message: message}
}

// Storage wraps an unexpected persistence failure. The underlying error is
// kept for logs; Message stays generic so driver details never reach the
// caller.
func Storage(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrStorage, err),
		Message: "storage failure",
	}
}
