package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrForbidden indicates that the acting user may not touch the resource.
var ErrForbidden = errors.New("forbidden")

// ErrConflict indicates a state conflict, e.g. a concurrent modification.
var ErrConflict = errors.New("conflict")

// ErrInternal indicates an unexpected server-side failure.
var ErrInternal = errors.New("internal error")

// ErrAccountNotFound indicates that a referenced source or destination account does not exist
// or is not owned by the acting user. It matches ErrNotFound as well.
var ErrAccountNotFound = fmt.Errorf("account not found: %w", ErrNotFound)

// ErrPersistenceFailure indicates that an underlying storage read or write failed.
var ErrPersistenceFailure = errors.New("persistence failure")

// ErrInvalidRecurrenceState indicates a recurring template with a malformed recurrence interval.
var ErrInvalidRecurrenceState = errors.New("invalid recurrence state")

// AppError carries an HTTP-ish status code alongside the wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

// NewAppError creates a new AppError.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Persistence wraps a storage error so that it matches ErrPersistenceFailure while keeping the cause.
func Persistence(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistenceFailure, msg, err)
}
