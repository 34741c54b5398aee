package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCheckedIn ReservationStatus = "CHECKED_IN"
	ReservationCompleted ReservationStatus = "COMPLETED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationRejected  ReservationStatus = "REJECTED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationNoShow    ReservationStatus = "NO_SHOW"
)

// reservationTransitions is the single source of truth for legal
// status changes. Every transition – user action or sweep – is
// validated against this table; anything not listed is an error.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationExpired, ReservationRejected},
	ReservationConfirmed: {ReservationCheckedIn, ReservationCancelled, ReservationNoShow},
	ReservationCheckedIn: {ReservationCompleted, ReservationNoShow},
	ReservationCompleted: {},
	ReservationExpired:   {},
	ReservationRejected:  {},
	ReservationCancelled: {},
	ReservationNoShow:    {},
}

// CanTransition reports whether moving from s to next is allowed by
// the transition table.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ReservationStatus) IsTerminal() bool {
	return len(reservationTransitions[s]) == 0
}

// HoldsCapacity reports whether a reservation in this status counts
// against its slot's capacity. Both PENDING and CONFIRMED hold
// capacity: a pending reservation is a soft hold with a TTL, a
// confirmed one is committed until it reaches a terminal state or is
// checked in (the slot time has arrived by then, so the count no
// longer matters for new bookings).
func (s ReservationStatus) HoldsCapacity() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Reservation records one party's booking of one experience at one
// slot. Rows are never deleted; terminal states are kept for audit.
//
// Fields:
//  ID                  – primary key identifier.
//  ContactID           – owning contact.
//  ExperienceID        – booked experience.
//  SlotID              – booked slot.
//  RouteBookingID      – owning route booking when part of a route (nullable).
//  StopSequence        – position within the route booking (0 when standalone).
//  PartySize           – number of people.
//  PriceCents          – total price charged for the party.
//  DepositRequired     – whether a deposit ledger entry was opened.
//  DepositAmountCents  – required deposit amount.
//  ExpiresAt           – pending-hold expiry; meaningful only while PENDING.
//  Status              – lifecycle state, see the transition table.
//  CreatedAt/UpdatedAt – row timestamps.
type Reservation struct {
	ID                 uint64            // reservations.id
	ContactID          uint64            // reservations.contact_id
	ExperienceID       uint64            // reservations.experience_id
	SlotID             uint64            // reservations.slot_id
	RouteBookingID     *uint64           // reservations.route_booking_id (nullable)
	StopSequence       int               // reservations.stop_sequence
	PartySize          int               // reservations.party_size
	PriceCents         int64             // reservations.price_cents
	DepositRequired    bool              // reservations.deposit_required
	DepositAmountCents int64             // reservations.deposit_amount_cents
	ExpiresAt          time.Time         // reservations.expires_at
	Status             ReservationStatus // reservations.status
	CreatedAt          time.Time         // reservations.created_at
	UpdatedAt          time.Time         // reservations.updated_at
}
