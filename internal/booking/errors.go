package booking

import (
	"errors"
	"fmt"

	"github.com/localtours/booking-backend/internal/model"
)

// Sentinel errors returned by the engine and the Store implementations.
// Handlers map these onto HTTP statuses; everything else is a 500.
var (
	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the acting principal may not touch
	// the entity (wrong owner, wrong role).
	ErrForbidden = errors.New("forbidden")
	// ErrCapacityExceeded is returned when a slot cannot hold the
	// requested party size. Not retryable; the slot is genuinely full.
	ErrCapacityExceeded = errors.New("slot capacity exceeded")
	// ErrConcurrencyConflict is returned when a compare-and-set lost a
	// race (status changed under us, or a deadlock was chosen as
	// victim). Retryable.
	ErrConcurrencyConflict = errors.New("concurrent modification")
	// ErrInvalidState is returned when the entity exists but its
	// current state does not admit the operation, outside the
	// reservation transition table (e.g. paying a refunded deposit).
	ErrInvalidState = errors.New("invalid state for operation")
)

// ValidationError reports invalid caller input. The field name uses
// the JSON wire name.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StateTransitionError reports an attempt to move a reservation
// between two states the transition table does not connect.
type StateTransitionError struct {
	ReservationID uint64
	From          model.ReservationStatus
	To            model.ReservationStatus
	Reason        string
}

func (e *StateTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("reservation %d: cannot go %s -> %s: %s", e.ReservationID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("reservation %d: cannot go %s -> %s", e.ReservationID, e.From, e.To)
}

// PolicyViolationError reports that a booking policy window forbids
// the attempted action.
type PolicyViolationError struct {
	Action    PolicyAction
	MinHours  int
	HoursLeft float64
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s not allowed: requires at least %dh before the slot, %.1fh remain", e.Action, e.MinHours, e.HoursLeft)
}
