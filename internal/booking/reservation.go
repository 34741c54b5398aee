package booking

import (
	"context"
	"errors"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// CreateReservationInput carries the caller's booking request.
type CreateReservationInput struct {
	ContactID    uint64
	ExperienceID uint64
	SlotID       uint64
	PartySize    int
}

// CreateReservation books a party onto a slot. The reservation starts
// PENDING with a TTL from the experience's deposit configuration; a
// deposit ledger row is opened when the experience requires one. The
// capacity check runs under the slot's row lock, so two concurrent
// bookings for the last spots serialize and the loser gets
// ErrCapacityExceeded.
func (e *Engine) CreateReservation(ctx context.Context, p Principal, in CreateReservationInput) (*model.Reservation, error) {
	if in.PartySize < 1 {
		return nil, invalid("party_size", "must be at least 1")
	}
	if !p.mayAccessContact(in.ContactID) {
		return nil, ErrForbidden
	}
	now := e.now()
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		exp, err := tx.Experience(in.ExperienceID)
		if err != nil {
			return err
		}
		if !exp.IsActive {
			return invalid("experience_id", "experience is not active")
		}
		slot, err := tx.Slot(in.SlotID)
		if err != nil {
			return err
		}
		if slot.ExperienceID != exp.ID {
			return invalid("slot_id", "slot does not belong to the experience")
		}
		if slot.Status == model.SlotBlocked {
			return invalid("slot_id", "slot is blocked")
		}
		policy, err := tx.PolicyForExperience(exp.ID)
		if err != nil {
			return err
		}
		if err := CheckPolicy(policy, slot.StartsAt, PolicyBook, now); err != nil {
			return err
		}
		// Lock the slot before counting; the count must not move
		// between the check and the insert.
		if slot, err = tx.SlotForUpdate(slot.ID); err != nil {
			return err
		}
		reserved, err := tx.ReservedCapacity(slot.ID)
		if err != nil {
			return err
		}
		if reserved+in.PartySize > slot.MaxCapacity {
			return ErrCapacityExceeded
		}
		price := e.pricer.Price(exp, in.PartySize)
		depositCents := e.pricer.DepositAmount(exp, price)
		res = &model.Reservation{
			ContactID:          in.ContactID,
			ExperienceID:       exp.ID,
			SlotID:             slot.ID,
			PartySize:          in.PartySize,
			PriceCents:         price,
			DepositRequired:    depositCents > 0,
			DepositAmountCents: depositCents,
			ExpiresAt:          now.Add(exp.HoldTTL()),
			Status:             model.ReservationPending,
		}
		if err := tx.InsertReservation(res); err != nil {
			return err
		}
		if res.DepositRequired {
			dep := &model.Deposit{
				Owner:               model.ReservationOwner(res.ID),
				AmountRequiredCents: depositCents,
				DueAt:               res.ExpiresAt,
				Status:              model.DepositPending,
			}
			if err := tx.InsertDeposit(dep); err != nil {
				return err
			}
		}
		reserved += in.PartySize
		return tx.UpdateSlotCapacity(slot.ID, reserved, slot.NextStatus(reserved))
	})
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationCreated, p, map[string]any{
		"contact_id": res.ContactID,
		"slot_id":    res.SlotID,
		"party_size": res.PartySize,
	})
	e.notify(ctx, ref, model.EventReservationCreated, map[string]any{
		"contact_id":  res.ContactID,
		"price_cents": res.PriceCents,
		"expires_at":  res.ExpiresAt,
	})
	return res, nil
}

// GetReservation loads a reservation, enforcing ownership for
// customer principals.
func (e *Engine) GetReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = tx.Reservation(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !p.mayAccessContact(res.ContactID) {
		return nil, ErrForbidden
	}
	return res, nil
}

// ModifyReservationInput carries the fields a modification may change.
// Nil pointers leave the current value untouched.
type ModifyReservationInput struct {
	SlotID    *uint64
	PartySize *int
}

// ModifyReservation moves a PENDING or CONFIRMED reservation to a new
// slot and/or party size. The modify window of the booking policy is
// checked against the current slot and, on a slot move, against the
// target slot's start as well. Price and any still-pending
// deposit are recomputed. Children of a route booking cannot be
// modified individually.
func (e *Engine) ModifyReservation(ctx context.Context, p Principal, id uint64, in ModifyReservationInput) (*model.Reservation, error) {
	now := e.now()
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(id)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(res.ContactID) {
			return ErrForbidden
		}
		if res.RouteBookingID != nil {
			return invalid("id", "reservation belongs to a route booking")
		}
		if res.Status != model.ReservationPending && res.Status != model.ReservationConfirmed {
			return ErrInvalidState
		}
		newSlotID := res.SlotID
		if in.SlotID != nil {
			newSlotID = *in.SlotID
		}
		newParty := res.PartySize
		if in.PartySize != nil {
			newParty = *in.PartySize
		}
		if newParty < 1 {
			return invalid("party_size", "must be at least 1")
		}
		if newSlotID == res.SlotID && newParty == res.PartySize {
			return nil
		}
		exp, err := tx.Experience(res.ExperienceID)
		if err != nil {
			return err
		}
		policy, err := tx.PolicyForExperience(exp.ID)
		if err != nil {
			return err
		}
		current, err := tx.Slot(res.SlotID)
		if err != nil {
			return err
		}
		if err := CheckPolicy(policy, current.StartsAt, PolicyModify, now); err != nil {
			return err
		}
		moving := newSlotID != res.SlotID
		var target *model.Slot
		if moving {
			if target, err = tx.Slot(newSlotID); err != nil {
				return err
			}
			if target.ExperienceID != exp.ID {
				return invalid("slot_id", "slot does not belong to the experience")
			}
			if target.Status == model.SlotBlocked {
				return invalid("slot_id", "slot is blocked")
			}
			// The modify window applies to the slot being moved
			// onto, not just the one being left.
			if err := CheckPolicy(policy, target.StartsAt, PolicyModify, now); err != nil {
				return err
			}
		} else {
			target = current
		}
		// Lock slots in id order so concurrent moves between the same
		// pair cannot deadlock.
		for _, sid := range slotLockOrder(res.SlotID, newSlotID) {
			if _, err := tx.SlotForUpdate(sid); err != nil {
				return err
			}
		}
		reserved, err := tx.ReservedCapacity(newSlotID)
		if err != nil {
			return err
		}
		if !moving {
			reserved -= res.PartySize
		}
		if reserved+newParty > target.MaxCapacity {
			return ErrCapacityExceeded
		}
		res.SlotID = newSlotID
		res.PartySize = newParty
		res.PriceCents = e.pricer.Price(exp, newParty)
		res.DepositAmountCents = e.pricer.DepositAmount(exp, res.PriceCents)
		res.DepositRequired = res.DepositAmountCents > 0
		if err := tx.UpdateReservationBooking(res); err != nil {
			return err
		}
		if err := e.refreshSlot(tx, res.SlotID); err != nil {
			return err
		}
		if moving {
			if err := e.refreshSlot(tx, current.ID); err != nil {
				return err
			}
		}
		return e.repriceDeposit(tx, model.ReservationOwner(res.ID), res.DepositAmountCents, now)
	})
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationModified, p, map[string]any{
		"slot_id":    res.SlotID,
		"party_size": res.PartySize,
	})
	return res, nil
}

// repriceDeposit rewrites the required amount of a still-open deposit
// after its owner was repriced. PAID, ADJUSTED and REFUNDED deposits
// are left alone, as are owners without one.
func (e *Engine) repriceDeposit(tx Tx, owner model.DepositOwner, requiredCents int64, now time.Time) error {
	dep, err := tx.DepositByOwner(owner)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if dep.Status != model.DepositPending && dep.Status != model.DepositOverdue {
		return nil
	}
	dep.AmountRequiredCents = requiredCents
	dep.Recompute(now)
	return tx.UpdateDeposit(dep)
}

func slotLockOrder(a, b uint64) []uint64 {
	if a == b {
		return []uint64{a}
	}
	if a < b {
		return []uint64{a, b}
	}
	return []uint64{b, a}
}

// ConfirmReservation moves a PENDING reservation to CONFIRMED. Staff
// only. A reservation whose hold already lapsed cannot be confirmed;
// the expiration sweep owns it.
func (e *Engine) ConfirmReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	now := e.now()
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(id)
		if err != nil {
			return err
		}
		if res.Status == model.ReservationPending && now.After(res.ExpiresAt) {
			return &StateTransitionError{
				ReservationID: id,
				From:          res.Status,
				To:            model.ReservationConfirmed,
				Reason:        "pending hold expired",
			}
		}
		return e.setStatus(tx, res, model.ReservationConfirmed)
	})
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationConfirmed, p, nil)
	e.notify(ctx, ref, model.EventReservationConfirmed, map[string]any{"contact_id": res.ContactID})
	return res, nil
}

// RejectReservation moves a PENDING reservation to REJECTED and
// releases its capacity. Staff only.
func (e *Engine) RejectReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	res, err := e.transition(ctx, id, model.ReservationRejected)
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationRejected, p, nil)
	e.notify(ctx, ref, model.EventReservationRejected, map[string]any{"contact_id": res.ContactID})
	return res, nil
}

// CancelReservation cancels a booking on behalf of its owner (or
// staff). A CONFIRMED reservation passes the cancellation window of
// the booking policy and becomes CANCELLED. A still-PENDING one is
// simply abandoned: it goes to EXPIRED, the terminal state pending
// holds end in, releasing its capacity immediately instead of waiting
// for the sweep.
func (e *Engine) CancelReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	now := e.now()
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(id)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(res.ContactID) {
			return ErrForbidden
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
			return ErrInvalidState
		}
	})
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationCancelled, p, map[string]any{"status": res.Status})
	e.notify(ctx, ref, model.EventReservationCancelled, map[string]any{"contact_id": res.ContactID})
	return res, nil
}

// CheckInReservation marks a CONFIRMED reservation as arrived. Staff
// only; customers check in through a token (see CheckInWithToken).
func (e *Engine) CheckInReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	res, err := e.transition(ctx, id, model.ReservationCheckedIn)
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindReservation, ID: res.ID}, model.EventReservationCheckedIn, p, nil)
	return res, nil
}

// CheckInWithToken validates a signed check-in token and checks in
// the reservation it names.
func (e *Engine) CheckInWithToken(ctx context.Context, p Principal, token string) (*model.Reservation, error) {
	if e.checkin == nil {
		return nil, ErrInvalidState
	}
	id, err := e.checkin.Validate(token)
	if err != nil {
		return nil, invalid("token", err.Error())
	}
	res, err := e.transition(ctx, id, model.ReservationCheckedIn)
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindReservation, ID: res.ID}, model.EventReservationCheckedIn, p, map[string]any{"via": "token"})
	return res, nil
}

// CompleteReservation closes out a CHECKED_IN reservation. Staff only.
func (e *Engine) CompleteReservation(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	res, err := e.transition(ctx, id, model.ReservationCompleted)
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindReservation, ID: res.ID}, model.EventReservationCompleted, p, nil)
	return res, nil
}

// MarkNoShow flags a party that never arrived. Allowed from CONFIRMED
// and from CHECKED_IN (a party that scanned in but never took the
// tour). Staff only.
func (e *Engine) MarkNoShow(ctx context.Context, p Principal, id uint64) (*model.Reservation, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	res, err := e.transition(ctx, id, model.ReservationNoShow)
	if err != nil {
		return nil, err
	}
	ref := EntityRef{Kind: KindReservation, ID: res.ID}
	e.logEvent(ctx, ref, model.EventReservationNoShow, p, nil)
	e.notify(ctx, ref, model.EventReservationNoShow, map[string]any{"contact_id": res.ContactID})
	return res, nil
}

// transition performs one table-validated status change in its own
// transaction and returns the updated reservation.
func (e *Engine) transition(ctx context.Context, id uint64, to model.ReservationStatus) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		res, err = tx.ReservationForUpdate(id)
		if err != nil {
			return err
		}
		return e.setStatus(tx, res, to)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
