package booking

import (
	"context"
	"log"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// Engine implements the booking core: reservation lifecycle, slot
// capacity accounting, deposits, route-booking aggregation and the
// maintenance sweeps. It is stateless apart from its collaborators;
// all persistence goes through the Store.
type Engine struct {
	store    Store
	pricer   Pricer
	notifier Notifier
	audit    AuditLogger
	checkin  CheckInTokenValidator

	// now is swapped in tests to drive TTL and sweep behaviour.
	now func() time.Time
	// noShowGrace is how long after the slot start a CONFIRMED
	// reservation may linger before the no-show sweep claims it.
	noShowGrace time.Duration
}

// DefaultNoShowGrace gives latecomers a window after the slot start
// before the sweep marks them NO_SHOW.
const DefaultNoShowGrace = 2 * time.Hour

// NewEngine wires an Engine. notifier, audit and checkin may be nil;
// the engine then skips the corresponding side effects.
func NewEngine(store Store, pricer Pricer, notifier Notifier, audit AuditLogger, checkin CheckInTokenValidator) *Engine {
	if pricer == nil {
		pricer = StandardPricer{}
	}
	return &Engine{
		store:       store,
		pricer:      pricer,
		notifier:    notifier,
		audit:       audit,
		checkin:     checkin,
		now:         func() time.Time { return time.Now().UTC() },
		noShowGrace: DefaultNoShowGrace,
	}
}

// SetNoShowGrace overrides the default no-show grace window.
// Non-positive values are ignored.
func (e *Engine) SetNoShowGrace(d time.Duration) {
	if d > 0 {
		e.noShowGrace = d
	}
}

// refreshSlot recomputes the slot's reserved capacity and derived
// status under the slot row lock. BLOCKED is preserved; CLOSED flips
// back to OPEN when capacity returns.
func (e *Engine) refreshSlot(tx Tx, slotID uint64) error {
	slot, err := tx.SlotForUpdate(slotID)
	if err != nil {
		return err
	}
	reserved, err := tx.ReservedCapacity(slotID)
	if err != nil {
		return err
	}
	return tx.UpdateSlotCapacity(slotID, reserved, slot.NextStatus(reserved))
}

// refreshRouteBooking re-derives the aggregate status from the child
// reservations and persists it when it drifted.
func (e *Engine) refreshRouteBooking(tx Tx, routeBookingID uint64) error {
	rb, err := tx.RouteBookingForUpdate(routeBookingID)
	if err != nil {
		return err
	}
	children, err := tx.ChildReservations(routeBookingID)
	if err != nil {
		return err
	}
	statuses := make([]model.ReservationStatus, len(children))
	for i, c := range children {
		statuses[i] = c.Status
	}
	derived := model.DeriveRouteBookingStatus(statuses)
	if derived == rb.Status {
		return nil
	}
	return tx.SetRouteBookingStatus(routeBookingID, derived)
}

// setStatus runs one reservation transition inside tx: it validates
// against the transition table, performs the compare-and-set, and
// keeps the slot capacity and any owning route booking consistent.
// res is updated in place on success.
func (e *Engine) setStatus(tx Tx, res *model.Reservation, to model.ReservationStatus) error {
	from := res.Status
	if !from.CanTransition(to) {
		return &StateTransitionError{ReservationID: res.ID, From: from, To: to}
	}
	if err := tx.SetReservationStatus(res.ID, from, to); err != nil {
		return err
	}
	res.Status = to
	if from.HoldsCapacity() != to.HoldsCapacity() {
		if err := e.refreshSlot(tx, res.SlotID); err != nil {
			return err
		}
	}
	if res.RouteBookingID != nil {
		if err := e.refreshRouteBooking(tx, *res.RouteBookingID); err != nil {
			return err
		}
	}
	return nil
}

// logEvent writes an audit row. Failures are logged, never returned;
// an audit outage must not fail bookings.
func (e *Engine) logEvent(ctx context.Context, ref EntityRef, event string, p Principal, payload map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, ref, event, p.Actor(), payload); err != nil {
		log.Printf("audit: %s %s/%d: %v", event, ref.Kind, ref.ID, err)
	}
}

// notify publishes a booking event. Same contract as logEvent.
func (e *Engine) notify(ctx context.Context, ref EntityRef, event string, payload map[string]any) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ref, event, payload); err != nil {
		log.Printf("notify: %s %s/%d: %v", event, ref.Kind, ref.ID, err)
	}
}
