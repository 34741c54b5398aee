// Package repository implements persistence for the booking service:
// the MySQL-backed booking.Store the engine runs on, plus narrow
// per-entity repositories for the read paths and auth tables that do
// not go through the engine. Sentinel errors shared across the
// repositories live here so handlers can translate failure scenarios
// into HTTP statuses.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an insert collides with existing
// state, such as registering an email that already has an account.
// Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
