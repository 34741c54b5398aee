package model

import "time"

// SystemEvent is one append-only audit row. Event recording is
// best-effort everywhere: a failed insert is logged and never fails
// the business operation that produced it.
type SystemEvent struct {
	ID         uint64    // system_events.id
	EventType  string    // system_events.event_type
	EntityKind string    // system_events.entity_kind
	EntityID   uint64    // system_events.entity_id
	Actor      string    // system_events.actor ("system" for sweeps)
	Detail     string    // system_events.detail (JSON payload)
	CreatedAt  time.Time // system_events.created_at
}

// Event types emitted by the booking core.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationModified  = "reservation.modified"
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationRejected  = "reservation.rejected"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationExpired   = "reservation.expired"
	EventReservationCheckedIn = "reservation.checked_in"
	EventReservationCompleted = "reservation.completed"
	EventReservationNoShow    = "reservation.no_show"
	EventRouteBookingCreated  = "route_booking.created"
	EventRouteBookingUpdated  = "route_booking.updated"
	EventDepositPaid          = "deposit.paid"
	EventDepositOverdue       = "deposit.overdue"
	EventDepositAdjusted      = "deposit.adjusted"
	EventDepositRefunded      = "deposit.refunded"
	EventSlotStatusChanged    = "slot.status_changed"
)
