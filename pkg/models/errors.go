package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientWords = errors.New("insufficient words")
	ErrSessionComplete   = errors.New("session complete")
	ErrSessionExpired    = errors.New("session expired")
	ErrSessionConflict   = errors.New("session concurrency conflict")
	ErrValidation        = errors.New("validation error")
	ErrStoreUnavailable  = errors.New("store unavailable")
)

// ValidationError describes an input that failed a check
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
