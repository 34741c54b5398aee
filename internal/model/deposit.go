package model

import "time"

// DepositStatus is the payment state of a deposit.
type DepositStatus string

const (
	DepositPending  DepositStatus = "PENDING"
	DepositPaid     DepositStatus = "PAID"
	DepositOverdue  DepositStatus = "OVERDUE"
	DepositAdjusted DepositStatus = "ADJUSTED"
	DepositRefunded DepositStatus = "REFUNDED"
)

// OwnerKind discriminates the entity a deposit is attached to.
type OwnerKind string

const (
	OwnerReservation  OwnerKind = "RESERVATION"
	OwnerRouteBooking OwnerKind = "ROUTE_BOOKING"
)

// DepositOwner is the typed reference from a deposit to the entity
// that owes it. Keeping kind and id together forces every consumer
// to switch on the kind instead of guessing what the id points at.
type DepositOwner struct {
	Kind OwnerKind // deposits.owner_kind
	ID   uint64    // deposits.owner_id
}

// ReservationOwner builds the owner reference for a reservation.
func ReservationOwner(id uint64) DepositOwner {
	return DepositOwner{Kind: OwnerReservation, ID: id}
}

// RouteBookingOwner builds the owner reference for a route booking.
func RouteBookingOwner(id uint64) DepositOwner {
	return DepositOwner{Kind: OwnerRouteBooking, ID: id}
}

// VerificationMethod records how a payment was verified.
type VerificationMethod string

const (
	VerifyManual VerificationMethod = "MANUAL"
	VerifyOCR    VerificationMethod = "OCR"
)

// Deposit is a partial-payment obligation attached to exactly one
// reservation or route booking. Paid amounts accumulate; status is a
// deterministic function of paid-vs-required and due-vs-now and is
// recomputed on every mutation (see Recompute).
//
// Fields:
//  ID                  – primary key identifier.
//  Owner               – typed owning-entity reference.
//  AmountRequiredCents – amount that must be paid.
//  AmountPaidCents     – accumulated payments, never negative.
//  DueAt               – payment deadline.
//  PaidAt              – stamped the moment paid reaches required (nullable).
//  Status              – PENDING, PAID, OVERDUE, ADJUSTED or REFUNDED.
//  VerificationMethod  – how the last payment was verified.
//  EvidenceJSON        – raw structured payment evidence, if any.
//  CreatedAt/UpdatedAt – row timestamps.
type Deposit struct {
	ID                  uint64             // deposits.id
	Owner               DepositOwner       // deposits.owner_kind + deposits.owner_id
	AmountRequiredCents int64              // deposits.amount_required_cents
	AmountPaidCents     int64              // deposits.amount_paid_cents
	DueAt               time.Time          // deposits.due_at
	PaidAt              *time.Time         // deposits.paid_at (nullable)
	Status              DepositStatus      // deposits.status
	VerificationMethod  VerificationMethod // deposits.verification_method
	EvidenceJSON        string             // deposits.evidence_json
	CreatedAt           time.Time          // deposits.created_at
	UpdatedAt           time.Time          // deposits.updated_at
}

// Recompute re-derives the deposit status from its amounts and due
// time. It only ever advances PENDING deposits: a PENDING deposit
// whose paid total covers the requirement becomes PAID (stamping
// PaidAt), and a PENDING deposit past its due time becomes OVERDUE.
// PAID, REFUNDED and ADJUSTED are sticky.
func (d *Deposit) Recompute(now time.Time) {
	if d.Status != DepositPending && d.Status != DepositOverdue {
		return
	}
	if d.AmountPaidCents >= d.AmountRequiredCents {
		d.Status = DepositPaid
		if d.PaidAt == nil {
			t := now
			d.PaidAt = &t
		}
		return
	}
	if d.Status == DepositPending && now.After(d.DueAt) {
		d.Status = DepositOverdue
	}
}

// RemainingCents returns how much is still owed, never negative.
func (d *Deposit) RemainingCents() int64 {
	if rem := d.AmountRequiredCents - d.AmountPaidCents; rem > 0 {
		return rem
	}
	return 0
}
