package booking

import (
	"context"
	"fmt"

	"github.com/localtours/booking-backend/internal/model"
)

// Roles carried by principals. They mirror the users.role column.
const (
	RoleStaff    = "STAFF"
	RoleCustomer = "CUSTOMER"
	roleSystem   = "SYSTEM"
)

// Principal identifies the actor of an engine operation. Every
// mutating operation takes one explicitly; nothing in the engine
// reads an ambient "current user". Customers carry the contact they
// act for; staff carry ContactID zero and may touch any entity.
type Principal struct {
	UserID    uint64
	ContactID uint64
	Role      string
}

// SystemPrincipal is the actor recorded for sweep-driven transitions.
var SystemPrincipal = Principal{Role: roleSystem}

// IsStaff reports whether the principal bypasses ownership checks.
// The system principal has the same reach as staff.
func (p Principal) IsStaff() bool {
	return p.Role == RoleStaff || p.Role == roleSystem
}

// Actor renders the principal for audit rows.
func (p Principal) Actor() string {
	if p.Role == roleSystem {
		return "system"
	}
	return fmt.Sprintf("%s:%d", p.Role, p.UserID)
}

// mayAccessContact reports whether the principal may act on entities
// owned by the given contact.
func (p Principal) mayAccessContact(contactID uint64) bool {
	return p.IsStaff() || p.ContactID == contactID
}

// EntityRef names the entity an audit row or notification is about.
type EntityRef struct {
	Kind string
	ID   uint64
}

// Entity kinds used in audit rows and broker events.
const (
	KindReservation  = "reservation"
	KindRouteBooking = "route_booking"
	KindDeposit      = "deposit"
	KindSlot         = "slot"
)

// Pricer derives prices and deposit amounts from already-loaded
// configuration. Implementations must be pure; the engine calls them
// inside transactions.
type Pricer interface {
	// Price returns the total price for a standalone booking.
	Price(exp *model.Experience, partySize int) int64
	// StopPrice returns the per-person price of one experience when
	// booked as a route stop.
	StopPrice(exp *model.Experience) int64
	// RoutePrice returns the total price for a route booking. stops
	// holds the experiences of the route's stops in order.
	RoutePrice(route *model.Route, stops []*model.Experience, partySize int) int64
	// DepositAmount returns the deposit owed for a standalone booking,
	// zero when the experience requires none.
	DepositAmount(exp *model.Experience, totalCents int64) int64
	// RouteDepositAmount returns the deposit owed for a route booking,
	// zero when the route requires none.
	RouteDepositAmount(route *model.Route, totalCents int64) int64
}

// StandardPricer implements the default pricing rules: manual or
// summed route prices, fixed-amount or percentage deposits, and the
// route-stop price falling back to the individual price when no route
// price is configured.
type StandardPricer struct{}

func (StandardPricer) Price(exp *model.Experience, partySize int) int64 {
	return exp.IndividualPriceCents * int64(partySize)
}

func (StandardPricer) StopPrice(exp *model.Experience) int64 {
	if exp.RoutePriceCents > 0 {
		return exp.RoutePriceCents
	}
	return exp.IndividualPriceCents
}

func (p StandardPricer) RoutePrice(route *model.Route, stops []*model.Experience, partySize int) int64 {
	if route.PriceMode == model.PriceModeManual {
		return route.PriceCents * int64(partySize)
	}
	var perPerson int64
	for _, exp := range stops {
		perPerson += p.StopPrice(exp)
	}
	return perPerson * int64(partySize)
}

func (StandardPricer) DepositAmount(exp *model.Experience, totalCents int64) int64 {
	if !exp.DepositRequired {
		return 0
	}
	return depositAmount(exp.DepositType, exp.DepositValue, totalCents)
}

func (StandardPricer) RouteDepositAmount(route *model.Route, totalCents int64) int64 {
	if !route.DepositRequired {
		return 0
	}
	return depositAmount(route.DepositType, route.DepositValue, totalCents)
}

func depositAmount(typ model.DepositType, value, totalCents int64) int64 {
	if typ == model.DepositTypePercent {
		return totalCents * value / 100
	}
	return value
}

// Notifier delivers booking events to the outside world. Failures are
// logged by the engine and never fail the operation that produced the
// event. The production implementation publishes to RabbitMQ after
// checking the contact's channel opt-ins.
type Notifier interface {
	Notify(ctx context.Context, ref EntityRef, event string, payload map[string]any) error
}

// AuditLogger appends system_events rows. Best-effort: the engine
// calls it after commit and only logs failures.
type AuditLogger interface {
	Log(ctx context.Context, ref EntityRef, event string, actor string, payload map[string]any) error
}

// OptInChecker reports whether a contact accepts delivery on a
// channel. The notification path consults it; the engine never does.
type OptInChecker interface {
	EmailOptIn(ctx context.Context, contactID uint64) (bool, error)
	PhoneOptIn(ctx context.Context, contactID uint64) (bool, error)
}

// CheckInTokenValidator resolves a presented check-in token to the
// reservation it was issued for. The default implementation verifies
// a short-lived signed token; scanning hardware sits behind this seam.
type CheckInTokenValidator interface {
	Validate(token string) (reservationID uint64, err error)
}
