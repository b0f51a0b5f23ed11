package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity does not exist or is outside the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned for uniqueness violations.
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition is returned when a conditional state transition matched no record.
	ErrInvalidTransition = errors.New("not found or wrong state")
	// ErrInvalidCredentials is returned for unknown users and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountDisabled is returned when a disabled employee tries to act.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrUnauthenticated is returned when no verified identity is available.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden is returned when the caller's role is not permitted.
	ErrForbidden = errors.New("forbidden")
)

// ConflictError names the field whose uniqueness constraint was violated.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s", e.Field)
}

// Unwrap lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflict returns a ConflictError for field.
func NewConflict(field string) error {
	return &ConflictError{Field: field}
}
