package booking

import (
	"context"
	"fmt"
	"log"

	"github.com/localtours/booking-backend/internal/model"
)

// SweepResult reports what one sweep run did. Rows that another run
// or a user action got to first are counted as skipped.
type SweepResult struct {
	Scanned      int `json:"scanned"`
	Transitioned int `json:"transitioned"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

// RunExpirationSweep expires PENDING reservations whose hold lapsed.
// Candidates are selected first, then each row is processed in its
// own transaction behind a re-check of status and expiry, so
// overlapping runs and racing confirmations no-op instead of
// conflicting. Safe to run at any frequency.
//
// Route bookings need no candidate query of their own: every child
// reservation is created with the parent's ExpiresAt, so expiring the
// lapsed children here flips the parent's derived status in the same
// pass.
func (e *Engine) RunExpirationSweep(ctx context.Context) (SweepResult, error) {
	now := e.now()
	ids, err := e.store.ExpiredPendingReservations(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	result.Scanned = len(ids)
	for _, id := range ids {
		var res *model.Reservation
		err := e.store.InTx(ctx, func(tx Tx) error {
			var err error
			res, err = tx.ReservationForUpdate(id)
			if err != nil {
				return err
			}
			if res.Status != model.ReservationPending || now.Before(res.ExpiresAt) {
				res = nil
				return nil
			}
			return e.setStatus(tx, res, model.ReservationExpired)
		})
		switch {
		case err != nil:
			result.Failed++
			log.Printf("scheduler: expire reservation %d: %v", id, err)
		case res == nil:
			result.Skipped++
		default:
			result.Transitioned++
			ref := EntityRef{Kind: KindReservation, ID: id}
			e.logEvent(ctx, ref, model.EventReservationExpired, SystemPrincipal, nil)
			e.notify(ctx, ref, model.EventReservationExpired, map[string]any{"contact_id": res.ContactID})
		}
	}
	return result, nil
}

// RunOverdueDepositSweep flips deposits past their due time to
// OVERDUE and cancels their owners. The owner transition respects the
// reservation table: a still-PENDING owner is expired, a CONFIRMED
// owner is cancelled. Route-booking owners cascade the same mapping
// over every live child.
func (e *Engine) RunOverdueDepositSweep(ctx context.Context) (SweepResult, error) {
	now := e.now()
	ids, err := e.store.OverdueDeposits(ctx, now)
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	result.Scanned = len(ids)
	for _, id := range ids {
		var dep *model.Deposit
		err := e.store.InTx(ctx, func(tx Tx) error {
			var err error
			dep, err = tx.DepositForUpdate(id)
			if err != nil {
				return err
			}
			if dep.Status != model.DepositPending || now.Before(dep.DueAt) {
				dep = nil
				return nil
			}
			dep.Status = model.DepositOverdue
			return tx.UpdateDeposit(dep)
		})
		switch {
		case err != nil:
			result.Failed++
			log.Printf("scheduler: overdue deposit %d: %v", id, err)
			continue
		case dep == nil:
			result.Skipped++
			continue
		}
		result.Transitioned++
		ref := EntityRef{Kind: KindDeposit, ID: id}
		e.logEvent(ctx, ref, model.EventDepositOverdue, SystemPrincipal, map[string]any{
			"owner_kind": dep.Owner.Kind,
			"owner_id":   dep.Owner.ID,
		})
		e.notify(ctx, ref, model.EventDepositOverdue, map[string]any{"owner_id": dep.Owner.ID})
		if err := e.cancelDepositOwner(ctx, dep.Owner); err != nil {
			result.Failed++
			log.Printf("scheduler: cancel owner of deposit %d (%s %d): %v", id, dep.Owner.Kind, dep.Owner.ID, err)
		}
	}
	return result, nil
}

// cancelDepositOwner shuts down the entity whose deposit went
// overdue. Reservations take the only legal dead transition from
// their state; route bookings cascade over their children.
func (e *Engine) cancelDepositOwner(ctx context.Context, owner model.DepositOwner) error {
	switch owner.Kind {
	case model.OwnerReservation:
		return e.store.InTx(ctx, func(tx Tx) error {
			res, err := tx.ReservationForUpdate(owner.ID)
			if err != nil {
				return err
			}
			return e.expireOrCancel(tx, res)
		})
	case model.OwnerRouteBooking:
		var childIDs []uint64
		err := e.store.InTx(ctx, func(tx Tx) error {
			children, err := tx.ChildReservations(owner.ID)
			if err != nil {
				return err
			}
			for _, c := range children {
				if c.Status == model.ReservationPending || c.Status == model.ReservationConfirmed {
					childIDs = append(childIDs, c.ID)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, id := range childIDs {
			err := e.store.InTx(ctx, func(tx Tx) error {
				res, err := tx.ReservationForUpdate(id)
				if err != nil {
					return err
				}
				return e.expireOrCancel(tx, res)
			})
			if err != nil {
				return fmt.Errorf("child %d: %w", id, err)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown owner kind %q", owner.Kind)
}

// expireOrCancel moves a live reservation to its dead state: PENDING
// holds expire, CONFIRMED bookings cancel. Anything else is left
// alone (another path already ended it).
func (e *Engine) expireOrCancel(tx Tx, res *model.Reservation) error {
	switch res.Status {
	case model.ReservationPending:
		return e.setStatus(tx, res, model.ReservationExpired)
	case model.ReservationConfirmed:
		return e.setStatus(tx, res, model.ReservationCancelled)
	}
	return nil
}

// RunNoShowSweep marks CONFIRMED reservations whose slot started more
// than the grace period ago as NO_SHOW.
func (e *Engine) RunNoShowSweep(ctx context.Context) (SweepResult, error) {
	now := e.now()
	ids, err := e.store.NoShowCandidates(ctx, now.Add(-e.noShowGrace))
	if err != nil {
		return SweepResult{}, err
	}
	var result SweepResult
	result.Scanned = len(ids)
	for _, id := range ids {
		var res *model.Reservation
		err := e.store.InTx(ctx, func(tx Tx) error {
			var err error
			res, err = tx.ReservationForUpdate(id)
			if err != nil {
				return err
			}
			if res.Status != model.ReservationConfirmed {
				res = nil
				return nil
			}
			return e.setStatus(tx, res, model.ReservationNoShow)
		})
		switch {
		case err != nil:
			result.Failed++
			log.Printf("scheduler: no-show reservation %d: %v", id, err)
		case res == nil:
			result.Skipped++
		default:
			result.Transitioned++
			e.logEvent(ctx, EntityRef{Kind: KindReservation, ID: id}, model.EventReservationNoShow, SystemPrincipal, nil)
		}
	}
	return result, nil
}
