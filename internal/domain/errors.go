package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation targets an entity that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller's role does not permit the operation.
	ErrForbidden = errors.New("insufficient permissions")

	// ErrCycle is returned when a category move would make a category its own ancestor.
	ErrCycle = errors.New("category cannot be moved below itself")

	// ErrConflict is returned when a unique value is already taken.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// ImportError reports a failed spreadsheet import. No catalog rows are
// committed when it is returned.
type ImportError struct {
	Err error
}

// Error implements the error interface.
func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ImportError) Unwrap() error {
	return e.Err
}
