package errors

import (
	"fmt"

	"github.com/google/uuid"
)

// ConflictError reports an interval overlap together with the ids of the
// colliding reservations, so callers can offer alternatives. It wraps
// ErrConflict and participates in errors.Is/errors.As chains.
type ConflictError struct {
	ConflictingIDs []uuid.UUID
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict with %d existing reservation(s)", len(e.ConflictingIDs))
}

// Unwrap makes the error match ErrConflict in errors.Is checks.
func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// NewConflictError creates a ConflictError for the given reservation ids.
func NewConflictError(ids []uuid.UUID) *ConflictError {
	return &ConflictError{ConflictingIDs: ids}
}
