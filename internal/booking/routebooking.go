package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/localtours/booking-backend/internal/model"
)

// CreateRouteBookingInput carries a request to book a whole route.
// SlotIDs assigns a slot to every stop sequence of the route; partial
// assignments are rejected.
type CreateRouteBookingInput struct {
	ContactID uint64
	RouteID   uint64
	PartySize int
	SlotIDs   map[int]uint64
}

// routeSaga tracks the forward steps of a route booking creation so
// that a failure partway can undo everything already persisted. Each
// compensation runs in its own transaction; compensation failures are
// logged and do not stop the remaining compensations.
type routeSaga struct {
	engine         *Engine
	routeBookingID uint64
	reservationIDs []uint64
	compensations  []func(ctx context.Context) error
}

func (s *routeSaga) add(comp func(ctx context.Context) error) {
	s.compensations = append(s.compensations, comp)
}

// rollback runs the recorded compensations in reverse order.
func (s *routeSaga) rollback(ctx context.Context, cause error) {
	for i := len(s.compensations) - 1; i >= 0; i-- {
		if err := s.compensations[i](ctx); err != nil {
			log.Printf("booking: route booking %d compensation failed (children %v, cause %v): %v",
				s.routeBookingID, s.reservationIDs, cause, err)
		}
	}
}

// CreateRouteBooking books every stop of a route as one unit. The
// route booking row and its deposit are created first, then one child
// reservation per stop, each stop in its own transaction with the
// usual policy and capacity checks. If any stop fails, everything
// created so far is rolled back: child reservations are removed and
// their slot capacity recomputed, then the deposit and the route
// booking row are deleted. The returned error wraps the failing
// stop's cause.
func (e *Engine) CreateRouteBooking(ctx context.Context, p Principal, in CreateRouteBookingInput) (*model.RouteBooking, error) {
	if in.PartySize < 1 {
		return nil, invalid("party_size", "must be at least 1")
	}
	if !p.mayAccessContact(in.ContactID) {
		return nil, ErrForbidden
	}
	now := e.now()

	// Load and validate the route, price the whole package up front.
	var (
		route *model.Route
		exps  map[uint64]*model.Experience
		total int64
		depos int64
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		route, err = tx.Route(in.RouteID)
		if err != nil {
			return err
		}
		if route.Status != model.RouteOnline {
			return invalid("route_id", "route is not online")
		}
		if len(route.Stops) == 0 {
			return invalid("route_id", "route has no stops")
		}
		ordered := make([]*model.Experience, 0, len(route.Stops))
		exps = make(map[uint64]*model.Experience, len(route.Stops))
		for _, stop := range route.Stops {
			if _, ok := in.SlotIDs[stop.Sequence]; !ok {
				return invalid("slot_ids", fmt.Sprintf("missing slot for stop %d", stop.Sequence))
			}
			exp, err := tx.Experience(stop.ExperienceID)
			if err != nil {
				return err
			}
			if !exp.IsActive {
				return invalid("route_id", fmt.Sprintf("experience %d is not active", exp.ID))
			}
			ordered = append(ordered, exp)
			exps[stop.ExperienceID] = exp
		}
		total = e.pricer.RoutePrice(route, ordered, in.PartySize)
		depos = e.pricer.RouteDepositAmount(route, total)
		return nil
	})
	if err != nil {
		return nil, err
	}

	saga := &routeSaga{engine: e}
	rb := &model.RouteBooking{
		Reference:          uuid.NewString(),
		ContactID:          in.ContactID,
		RouteID:            in.RouteID,
		PartySize:          in.PartySize,
		TotalPriceCents:    total,
		DepositRequired:    depos > 0,
		DepositAmountCents: depos,
		ExpiresAt:          now.Add(route.HoldTTL()),
		Status:             model.RouteBookingPending,
	}
	err = e.store.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertRouteBooking(rb); err != nil {
			return err
		}
		if rb.DepositRequired {
			dep := &model.Deposit{
				Owner:               model.RouteBookingOwner(rb.ID),
				AmountRequiredCents: depos,
				DueAt:               rb.ExpiresAt,
				Status:              model.DepositPending,
			}
			if err := tx.InsertDeposit(dep); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	saga.routeBookingID = rb.ID
	saga.add(func(ctx context.Context) error {
		return e.store.InTx(ctx, func(tx Tx) error {
			if rb.DepositRequired {
				dep, err := tx.DepositByOwner(model.RouteBookingOwner(rb.ID))
				if err == nil {
					if err := tx.DeleteDeposit(dep.ID); err != nil {
						return err
					}
				} else if !errors.Is(err, ErrNotFound) {
					return err
				}
			}
			return tx.DeleteRouteBooking(rb.ID)
		})
	})

	for _, stop := range route.Stops {
		exp := exps[stop.ExperienceID]
		slotID := in.SlotIDs[stop.Sequence]
		child, err := e.createRouteChild(ctx, rb, stop, exp, slotID, now)
		if err != nil {
			cause := fmt.Errorf("stop %d: %w", stop.Sequence, err)
			saga.rollback(ctx, cause)
			return nil, cause
		}
		saga.reservationIDs = append(saga.reservationIDs, child.ID)
		saga.add(func(ctx context.Context) error {
			return e.store.InTx(ctx, func(tx Tx) error {
				if err := tx.DeleteReservation(child.ID); err != nil {
					return err
				}
				return e.refreshSlot(tx, child.SlotID)
			})
		})
	}

	ref := EntityRef{Kind: KindRouteBooking, ID: rb.ID}
	e.logEvent(ctx, ref, model.EventRouteBookingCreated, p, map[string]any{
		"reference":  rb.Reference,
		"route_id":   rb.RouteID,
		"party_size": rb.PartySize,
		"children":   saga.reservationIDs,
	})
	e.notify(ctx, ref, model.EventRouteBookingCreated, map[string]any{
		"contact_id":  rb.ContactID,
		"reference":   rb.Reference,
		"price_cents": rb.TotalPriceCents,
	})
	return rb, nil
}

// createRouteChild creates one child reservation of a route booking
// in its own transaction, with the same policy and capacity checks a
// standalone booking passes. The deposit lives on the route booking,
// so children never open one.
func (e *Engine) createRouteChild(ctx context.Context, rb *model.RouteBooking, stop model.RouteStop, exp *model.Experience, slotID uint64, now time.Time) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.Slot(slotID)
		if err != nil {
			return err
		}
		if slot.ExperienceID != exp.ID {
			return invalid("slot_ids", "slot does not belong to the stop's experience")
		}
		if slot.Status == model.SlotBlocked {
			return invalid("slot_ids", "slot is blocked")
		}
		policy, err := tx.PolicyForExperience(exp.ID)
		if err != nil {
			return err
		}
		if err := CheckPolicy(policy, slot.StartsAt, PolicyBook, now); err != nil {
			return err
		}
		if slot, err = tx.SlotForUpdate(slot.ID); err != nil {
			return err
		}
		reserved, err := tx.ReservedCapacity(slot.ID)
		if err != nil {
			return err
		}
		if reserved+rb.PartySize > slot.MaxCapacity {
			return ErrCapacityExceeded
		}
		rbID := rb.ID
		res = &model.Reservation{
			ContactID:      rb.ContactID,
			ExperienceID:   exp.ID,
			SlotID:         slot.ID,
			RouteBookingID: &rbID,
			StopSequence:   stop.Sequence,
			PartySize:      rb.PartySize,
			PriceCents:     e.pricer.StopPrice(exp) * int64(rb.PartySize),
			ExpiresAt:      rb.ExpiresAt,
			Status:         model.ReservationPending,
		}
		if err := tx.InsertReservation(res); err != nil {
			return err
		}
		reserved += rb.PartySize
		return tx.UpdateSlotCapacity(slot.ID, reserved, slot.NextStatus(reserved))
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// AddStopInput appends one extra experience to an existing route
// booking's itinerary.
type AddStopInput struct {
	ExperienceID uint64
	SlotID       uint64
}

// AddStops extends a PENDING route booking with additional stops.
// Each new child is created like a saga stop; on any failure the
// stops added by this call are removed again. In SUM price mode the
// booking total and a still-open deposit grow with the added stops;
// a MANUAL route price is fixed and unaffected.
func (e *Engine) AddStops(ctx context.Context, p Principal, routeBookingID uint64, stops []AddStopInput) (*model.RouteBooking, error) {
	if len(stops) == 0 {
		return nil, invalid("stops", "must not be empty")
	}
	now := e.now()
	var (
		rb      *model.RouteBooking
		route   *model.Route
		nextSeq int
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		rb, err = tx.RouteBooking(routeBookingID)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(rb.ContactID) {
			return ErrForbidden
		}
		if rb.Status != model.RouteBookingPending {
			return ErrInvalidState
		}
		if route, err = tx.Route(rb.RouteID); err != nil {
			return err
		}
		children, err := tx.ChildReservations(rb.ID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if c.StopSequence >= nextSeq {
				nextSeq = c.StopSequence + 1
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	saga := &routeSaga{engine: e, routeBookingID: rb.ID}
	var addedCents int64
	for i, in := range stops {
		var exp *model.Experience
		err := e.store.InTx(ctx, func(tx Tx) error {
			var err error
			exp, err = tx.Experience(in.ExperienceID)
			if err != nil {
				return err
			}
			if !exp.IsActive {
				return invalid("stops", fmt.Sprintf("experience %d is not active", exp.ID))
			}
			return nil
		})
		if err == nil {
			var child *model.Reservation
			stop := model.RouteStop{Sequence: nextSeq + i, ExperienceID: in.ExperienceID}
			child, err = e.createRouteChild(ctx, rb, stop, exp, in.SlotID, now)
			if err == nil {
				saga.reservationIDs = append(saga.reservationIDs, child.ID)
				addedCents += child.PriceCents
				saga.add(func(ctx context.Context) error {
					return e.store.InTx(ctx, func(tx Tx) error {
						if err := tx.DeleteReservation(child.ID); err != nil {
							return err
						}
						return e.refreshSlot(tx, child.SlotID)
					})
				})
			}
		}
		if err != nil {
			cause := fmt.Errorf("add stop %d: %w", i, err)
			saga.rollback(ctx, cause)
			return nil, cause
		}
	}

	err = e.store.InTx(ctx, func(tx Tx) error {
		if route.PriceMode == model.PriceModeSum && addedCents > 0 {
			rb.TotalPriceCents += addedCents
			rb.DepositAmountCents = e.pricer.RouteDepositAmount(route, rb.TotalPriceCents)
			if err := tx.UpdateRouteBookingPrice(rb.ID, rb.TotalPriceCents, rb.DepositAmountCents); err != nil {
				return err
			}
			if err := e.repriceDeposit(tx, model.RouteBookingOwner(rb.ID), rb.DepositAmountCents, now); err != nil {
				return err
			}
		}
		return e.refreshRouteBooking(tx, rb.ID)
	})
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindRouteBooking, ID: rb.ID}, model.EventRouteBookingUpdated, p, map[string]any{
		"added": saga.reservationIDs,
	})
	return e.GetRouteBooking(ctx, p, rb.ID)
}

// CancelRouteBooking cancels every live child of a route booking:
// pending children are expired, confirmed children pass the
// cancellation policy window and are cancelled. Children that already
// reached a terminal state are skipped; children past check-in cannot
// be cancelled and their failures are aggregated into the returned
// error. The aggregate status re-derives from whatever the children
// ended up as.
func (e *Engine) CancelRouteBooking(ctx context.Context, p Principal, routeBookingID uint64) (*model.RouteBooking, error) {
	now := e.now()
	var childIDs []uint64
	err := e.store.InTx(ctx, func(tx Tx) error {
		rb, err := tx.RouteBooking(routeBookingID)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(rb.ContactID) {
			return ErrForbidden
		}
		children, err := tx.ChildReservations(routeBookingID)
		if err != nil {
			return err
		}
		for _, c := range children {
			if !c.Status.IsTerminal() {
				childIDs = append(childIDs, c.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var failures []error
	for _, id := range childIDs {
		err := e.store.InTx(ctx, func(tx Tx) error {
			res, err := tx.ReservationForUpdate(id)
			if err != nil {
				return err
			}
			switch res.Status {
			case model.ReservationPending:
				return e.setStatus(tx, res, model.ReservationExpired)
			case model.ReservationConfirmed:
				slot, err := tx.Slot(res.SlotID)
				if err != nil {
					return err
				}
				policy, err := tx.PolicyForExperience(res.ExperienceID)
				if err != nil {
					return err
				}
				if err := CheckPolicy(policy, slot.StartsAt, PolicyCancel, now); err != nil {
					return err
				}
				return e.setStatus(tx, res, model.ReservationCancelled)
			default:
				return fmt.Errorf("reservation %d: %w", res.ID, ErrInvalidState)
			}
		})
		if err != nil {
			failures = append(failures, fmt.Errorf("cancel reservation %d: %w", id, err))
		}
	}

	rb, getErr := e.GetRouteBooking(ctx, p, routeBookingID)
	if getErr != nil {
		failures = append(failures, getErr)
	}
	if len(failures) > 0 {
		return rb, errors.Join(failures...)
	}
	ref := EntityRef{Kind: KindRouteBooking, ID: routeBookingID}
	e.logEvent(ctx, ref, model.EventRouteBookingUpdated, p, map[string]any{"action": "cancel"})
	e.notify(ctx, ref, model.EventRouteBookingUpdated, map[string]any{
		"contact_id": rb.ContactID,
		"status":     rb.Status,
	})
	return rb, nil
}

// GetRouteBooking loads a route booking. The derived status is
// recomputed from the children on every read and persisted when it
// drifted from the stored value.
func (e *Engine) GetRouteBooking(ctx context.Context, p Principal, id uint64) (*model.RouteBooking, error) {
	var rb *model.RouteBooking
	err := e.store.InTx(ctx, func(tx Tx) error {
		if err := e.refreshRouteBooking(tx, id); err != nil {
			return err
		}
		var err error
		rb, err = tx.RouteBooking(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !p.mayAccessContact(rb.ContactID) {
		return nil, ErrForbidden
	}
	return rb, nil
}

// StopSummary is one itinerary entry of a route booking summary.
type StopSummary struct {
	ReservationID uint64                  `json:"reservation_id"`
	Sequence      int                     `json:"sequence"`
	ExperienceID  uint64                  `json:"experience_id"`
	Experience    string                  `json:"experience"`
	SlotID        uint64                  `json:"slot_id"`
	StartsAt      time.Time               `json:"starts_at"`
	Status        model.ReservationStatus `json:"status"`
}

// RouteBookingSummary is the read model returned by the summary
// endpoint: the booking plus its itinerary ordered by slot time.
type RouteBookingSummary struct {
	Booking *model.RouteBooking `json:"booking"`
	Stops   []StopSummary       `json:"stops"`
}

// GetRouteBookingSummary builds the itinerary view of a route
// booking.
func (e *Engine) GetRouteBookingSummary(ctx context.Context, p Principal, id uint64) (*RouteBookingSummary, error) {
	rb, err := e.GetRouteBooking(ctx, p, id)
	if err != nil {
		return nil, err
	}
	summary := &RouteBookingSummary{Booking: rb}
	err = e.store.InTx(ctx, func(tx Tx) error {
		children, err := tx.ChildReservations(id)
		if err != nil {
			return err
		}
		for _, c := range children {
			slot, err := tx.Slot(c.SlotID)
			if err != nil {
				return err
			}
			exp, err := tx.Experience(c.ExperienceID)
			if err != nil {
				return err
			}
			summary.Stops = append(summary.Stops, StopSummary{
				ReservationID: c.ID,
				Sequence:      c.StopSequence,
				ExperienceID:  exp.ID,
				Experience:    exp.Name,
				SlotID:        slot.ID,
				StartsAt:      slot.StartsAt,
				Status:        c.Status,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(summary.Stops, func(i, j int) bool {
		return summary.Stops[i].StartsAt.Before(summary.Stops[j].StartsAt)
	})
	return summary, nil
}
