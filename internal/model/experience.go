package model

import "time"

// DepositType selects how a deposit amount is derived from a total price.
type DepositType string

const (
	DepositTypeAmount  DepositType = "AMOUNT"  // fixed amount in cents
	DepositTypePercent DepositType = "PERCENT" // percentage of the total price
)

// Experience represents one bookable activity offered by a local
// provider. Pricing and deposit configuration live here; time slots
// are separate rows in the slots table.
//
// Fields:
//  ID                    – primary key identifier.
//  Name                  – display name of the experience.
//  IndividualPriceCents  – per-person price when booked standalone.
//  RoutePriceCents       – per-person price when booked as a route stop (0 = use individual).
//  DepositRequired       – whether bookings must pay a deposit.
//  DepositType           – AMOUNT or PERCENT (meaningful when DepositRequired).
//  DepositValue          – cents for AMOUNT, percentage points for PERCENT.
//  DepositTTLHours       – how long a pending reservation holds capacity (0 = default 24h).
//  IsActive              – inactive experiences cannot be booked.
//  CreatedAt/UpdatedAt   – row timestamps.
type Experience struct {
	ID                   uint64      // experiences.id
	Name                 string      // experiences.name
	IndividualPriceCents int64       // experiences.individual_price_cents
	RoutePriceCents      int64       // experiences.route_price_cents
	DepositRequired      bool        // experiences.deposit_required
	DepositType          DepositType // experiences.deposit_type
	DepositValue         int64       // experiences.deposit_value
	DepositTTLHours      int         // experiences.deposit_ttl_hours
	IsActive             bool        // experiences.is_active
	CreatedAt            time.Time   // experiences.created_at
	UpdatedAt            time.Time   // experiences.updated_at
}

// HoldTTL returns how long a pending reservation on this experience
// keeps its capacity before expiring.
func (e *Experience) HoldTTL() time.Duration {
	hours := e.DepositTTLHours
	if hours <= 0 {
		hours = DefaultHoldTTLHours
	}
	return time.Duration(hours) * time.Hour
}

// DefaultHoldTTLHours is applied when an experience or route does not
// configure its own deposit TTL.
const DefaultHoldTTLHours = 24

// BookingPolicy configures the time windows the policy gate enforces
// for one experience. A zero value for any window means the action is
// unrestricted. An experience without a policy row accepts everything.
//
// Fields:
//  ID                     – primary key identifier.
//  ExperienceID           – experience this policy applies to.
//  MinHoursBeforeBooking  – bookings must be made at least this many hours before the slot.
//  ModifyUntilHoursBefore – modifications allowed until this many hours before the slot.
//  CancelUntilHoursBefore – cancellations allowed until this many hours before the slot.
type BookingPolicy struct {
	ID                     uint64 // booking_policies.id
	ExperienceID           uint64 // booking_policies.experience_id
	MinHoursBeforeBooking  int    // booking_policies.min_hours_before_booking
	ModifyUntilHoursBefore int    // booking_policies.modify_until_hours_before
	CancelUntilHoursBefore int    // booking_policies.cancel_until_hours_before
}

// Contact is the party that owns reservations and route bookings.
// Channel opt-ins are consulted by the notification path only; the
// booking engine never reads them.
type Contact struct {
	ID         uint64    // contacts.id
	Name       string    // contacts.name
	Email      string    // contacts.email
	Phone      string    // contacts.phone
	EmailOptIn bool      // contacts.email_opt_in
	PhoneOptIn bool      // contacts.phone_opt_in
	CreatedAt  time.Time // contacts.created_at
}
