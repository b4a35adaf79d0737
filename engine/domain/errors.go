package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for lookups and traversals. Callers map these to 404s;
// anything else from the store layer is an internal failure.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNoPath              = errors.New("no path found")
)

// Sentinel errors for validation failures, detected before any store round trip.
var (
	ErrMissingField  = errors.New("missing required field")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// NotFound reports whether err is any of the not-found sentinels.
func NotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrNoPath)
}

// ValidationError wraps a sentinel with the offending field.
type ValidationError struct {
	Field   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Wrapped, e.Field)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Wrapped: wrapped}
}

// IsValidation reports whether err originated from input validation.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StoreError marks a failed or inconsistent graph store round trip. The
// operation that hit it is aborted; nothing is retried.
type StoreError struct {
	Op      string
	Wrapped error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Op, e.Wrapped)
}

func (e *StoreError) Unwrap() error { return e.Wrapped }

// NewStoreError wraps err with the failing operation name.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Wrapped: err}
}
