// Package apperror defines the errors that are allowed to leave the execution core.
//
// TWO TIERS OF FAILURE:
// Anything that goes wrong *inside* a lesson run (process crash, timeout, remote
// compile error, network failure) is NOT an error here. It becomes a failed
// ExecutionResult. Only environment problems surface as errors:
//
//   - ErrValidation: the request itself is malformed
//   - ErrNotFound: the lesson does not exist (only from lookups, never from dispatch)
//   - ErrPersistence: history could not be read or written
//   - ErrUnauthorized: the HTTP caller did not authenticate
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrPersistence  = errors.New("persistence failure")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error  // sentinel class
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error (I/O, SQL, ...)
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is works for either.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// PersistenceFailed reports that the history log could not be loaded or written.
// Callers of Dispatch receive this alongside the (still valid) result.
func PersistenceFailed(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrPersistence,
		Message: fmt.Sprintf("history %s failed", op),
		Cause:   cause,
	}
}

// Unauthorized returns an AppError indicating the caller is not authenticated.
// HTTP handlers map this to 401 Unauthorized.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}
