package domain

import (
	"fmt"

	apperrors "github.com/allisson/orders/internal/errors"
)

// Sentinel errors for order state management. They wrap the shared
// application error kinds so HTTP handlers can map them without importing
// this package's details.
var (
	// ErrOrderNotFound indicates the order does not exist.
	ErrOrderNotFound = apperrors.Wrap(apperrors.ErrNotFound, "order")

	// ErrInvalidTransition indicates the requested status change is not in
	// the transition table.
	ErrInvalidTransition = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid state transition")

	// ErrConcurrentModification indicates the optimistic version check
	// failed because another writer got there first.
	ErrConcurrentModification = apperrors.Wrap(apperrors.ErrConflict, "order modified concurrently")

	// ErrNotRetryable indicates the order is not in a state an operator can
	// manually retry from.
	ErrNotRetryable = apperrors.Wrap(apperrors.ErrInvalidInput, "order not retryable")

	// ErrNotInDeadLetter indicates a dead-letter operation was attempted on
	// an order that is not dead-lettered.
	ErrNotInDeadLetter = apperrors.Wrap(apperrors.ErrInvalidInput, "order not in dead letter queue")
)

// TransitionError describes a rejected transition attempt with the pair
// that was requested.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Unwrap makes the error match ErrInvalidTransition (and therefore
// apperrors.ErrInvalidInput) in errors.Is checks.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewTransitionError creates a TransitionError for the given pair.
func NewTransitionError(from, to Status) error {
	return &TransitionError{From: from, To: to}
}
