package model

import "time"

// RouteStatus is the publication state of a route.
type RouteStatus string

const (
	RouteOnline   RouteStatus = "ONLINE"
	RouteOffline  RouteStatus = "OFFLINE"
	RouteArchived RouteStatus = "ARCHIVED"
)

// PriceMode selects how a route's total price is computed.
type PriceMode string

const (
	PriceModeManual PriceMode = "MANUAL" // fixed per-person price on the route itself
	PriceModeSum    PriceMode = "SUM"    // sum of per-experience route prices
)

// Route is the static composition of an ordered bundle of
// experiences bookable as one package. The runtime core treats it as
// read-only input.
type Route struct {
	ID              uint64      // routes.id
	Name            string      // routes.name
	Status          RouteStatus // routes.status
	PriceMode       PriceMode   // routes.price_mode
	PriceCents      int64       // routes.price_cents (per person, MANUAL mode)
	DepositRequired bool        // routes.deposit_required
	DepositType     DepositType // routes.deposit_type
	DepositValue    int64       // routes.deposit_value
	DepositTTLHours int         // routes.deposit_ttl_hours
	Stops           []RouteStop // ordered child rows
	CreatedAt       time.Time   // routes.created_at
}

// RouteStop is one ordered entry of a route.
type RouteStop struct {
	ID           uint64 // route_stops.id
	RouteID      uint64 // route_stops.route_id
	Sequence     int    // route_stops.sequence
	ExperienceID uint64 // route_stops.experience_id
}

// HoldTTL returns how long a pending route booking lives before the
// expiration sweep reclaims it.
func (r *Route) HoldTTL() time.Duration {
	hours := r.DepositTTLHours
	if hours <= 0 {
		hours = DefaultHoldTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// BankAccount holds the payment destination configured for a route.
// Deposit reconciliation cross-checks claimed account references
// against it.
type BankAccount struct {
	ID         uint64 // bank_accounts.id
	RouteID    uint64 // bank_accounts.route_id
	Holder     string // bank_accounts.holder
	Bank       string // bank_accounts.bank
	AccountRef string // bank_accounts.account_ref
	IBAN       string // bank_accounts.iban
}

// RouteBookingStatus is the derived state of a route booking.
type RouteBookingStatus string

const (
	RouteBookingPending            RouteBookingStatus = "PENDING"
	RouteBookingPartiallyConfirmed RouteBookingStatus = "PARTIALLY_CONFIRMED"
	RouteBookingConfirmed          RouteBookingStatus = "CONFIRMED"
	RouteBookingCancelled          RouteBookingStatus = "CANCELLED"
)

// RouteBooking aggregates one reservation per route stop under a
// single derived status. Status is never set by a caller; it is
// always the result of DeriveRouteBookingStatus over the current
// child reservation statuses.
type RouteBooking struct {
	ID                 uint64             // route_bookings.id
	Reference          string             // route_bookings.reference (public uuid)
	ContactID          uint64             // route_bookings.contact_id
	RouteID            uint64             // route_bookings.route_id
	PartySize          int                // route_bookings.party_size
	TotalPriceCents    int64              // route_bookings.total_price_cents
	DepositRequired    bool               // route_bookings.deposit_required
	DepositAmountCents int64              // route_bookings.deposit_amount_cents
	ExpiresAt          time.Time          // route_bookings.expires_at
	Status             RouteBookingStatus // route_bookings.status
	CreatedAt          time.Time          // route_bookings.created_at
	UpdatedAt          time.Time          // route_bookings.updated_at
}

// DeriveRouteBookingStatus computes the aggregate status from the
// child reservation statuses:
//
//	every child dead (CANCELLED, EXPIRED or REJECTED) -> CANCELLED
//	every child CONFIRMED                             -> CONFIRMED
//	at least one CONFIRMED, but not all               -> PARTIALLY_CONFIRMED
//	otherwise                                         -> PENDING
//
// Children that progressed past CONFIRMED (CHECKED_IN, COMPLETED)
// count as confirmed for aggregation purposes. An empty child list
// yields PENDING.
func DeriveRouteBookingStatus(children []ReservationStatus) RouteBookingStatus {
	if len(children) == 0 {
		return RouteBookingPending
	}
	confirmed, dead := 0, 0
	for _, s := range children {
		switch s {
		case ReservationConfirmed, ReservationCheckedIn, ReservationCompleted:
			confirmed++
		case ReservationCancelled, ReservationExpired, ReservationRejected:
			dead++
		}
	}
	switch {
	case dead == len(children):
		return RouteBookingCancelled
	case confirmed == len(children):
		return RouteBookingConfirmed
	case confirmed > 0:
		return RouteBookingPartiallyConfirmed
	default:
		return RouteBookingPending
	}
}
