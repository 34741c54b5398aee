package booking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// ownerContact resolves the contact that owns a deposit's owning
// entity, for access checks.
func ownerContact(tx Tx, owner model.DepositOwner) (uint64, error) {
	switch owner.Kind {
	case model.OwnerReservation:
		res, err := tx.Reservation(owner.ID)
		if err != nil {
			return 0, err
		}
		return res.ContactID, nil
	case model.OwnerRouteBooking:
		rb, err := tx.RouteBooking(owner.ID)
		if err != nil {
			return 0, err
		}
		return rb.ContactID, nil
	}
	return 0, ErrNotFound
}

// GetDeposit loads a deposit, lazily flipping a PENDING one past its
// due time to OVERDUE before returning it.
func (e *Engine) GetDeposit(ctx context.Context, p Principal, id uint64) (*model.Deposit, error) {
	now := e.now()
	var dep *model.Deposit
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		dep, err = tx.DepositForUpdate(id)
		if err != nil {
			return err
		}
		contactID, err := ownerContact(tx, dep.Owner)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(contactID) {
			return ErrForbidden
		}
		return e.lazyOverdue(tx, dep, now)
	})
	if err != nil {
		return nil, err
	}
	return dep, nil
}

// GetDepositByOwner loads the deposit attached to a reservation or
// route booking.
func (e *Engine) GetDepositByOwner(ctx context.Context, p Principal, owner model.DepositOwner) (*model.Deposit, error) {
	var id uint64
	err := e.store.InTx(ctx, func(tx Tx) error {
		dep, err := tx.DepositByOwner(owner)
		if err != nil {
			return err
		}
		id = dep.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e.GetDeposit(ctx, p, id)
}

// lazyOverdue persists the PENDING -> OVERDUE flip when the due time
// has passed. Every read/write path through the ledger calls it, so
// an OVERDUE status is observable without waiting for the sweep.
func (e *Engine) lazyOverdue(tx Tx, dep *model.Deposit, now time.Time) error {
	before := dep.Status
	dep.Recompute(now)
	if dep.Status == before {
		return nil
	}
	return tx.UpdateDeposit(dep)
}

// RecordDepositPayment adds a verified payment to the deposit.
// Amounts accumulate; when the paid total covers the requirement the
// deposit flips to PAID and PaidAt is stamped. Payments against PAID,
// REFUNDED or ADJUSTED deposits are rejected. Paying an OVERDUE
// deposit is allowed as long as its owner has not been cancelled yet.
func (e *Engine) RecordDepositPayment(ctx context.Context, p Principal, id uint64, amountCents int64, method model.VerificationMethod, evidenceJSON string) (*model.Deposit, error) {
	if amountCents <= 0 {
		return nil, invalid("amount_cents", "must be positive")
	}
	now := e.now()
	var dep *model.Deposit
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		dep, err = tx.DepositForUpdate(id)
		if err != nil {
			return err
		}
		contactID, err := ownerContact(tx, dep.Owner)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(contactID) {
			return ErrForbidden
		}
		if err := e.lazyOverdue(tx, dep, now); err != nil {
			return err
		}
		if dep.Status != model.DepositPending && dep.Status != model.DepositOverdue {
			return ErrInvalidState
		}
		dep.AmountPaidCents += amountCents
		dep.VerificationMethod = method
		if evidenceJSON != "" {
			dep.EvidenceJSON = evidenceJSON
		}
		dep.Recompute(now)
		return tx.UpdateDeposit(dep)
	})
	if err != nil {
		return nil, err
	}
	if dep.Status == model.DepositPaid {
		ref := EntityRef{Kind: KindDeposit, ID: dep.ID}
		e.logEvent(ctx, ref, model.EventDepositPaid, p, map[string]any{
			"owner_kind": dep.Owner.Kind,
			"owner_id":   dep.Owner.ID,
			"paid_cents": dep.AmountPaidCents,
		})
		e.notify(ctx, ref, model.EventDepositPaid, map[string]any{"owner_id": dep.Owner.ID})
	}
	return dep, nil
}

// AdjustDeposit refunds part or all of a paid deposit. Only PAID and
// OVERDUE deposits can be adjusted; the refund may not exceed what
// was paid. A refund that empties the deposit makes it REFUNDED,
// anything less makes it ADJUSTED. Staff only.
func (e *Engine) AdjustDeposit(ctx context.Context, p Principal, id uint64, refundCents int64, reason string) (*model.Deposit, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if refundCents <= 0 {
		return nil, invalid("refund_cents", "must be positive")
	}
	var dep *model.Deposit
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		dep, err = tx.DepositForUpdate(id)
		if err != nil {
			return err
		}
		if dep.Status != model.DepositPaid && dep.Status != model.DepositOverdue {
			return ErrInvalidState
		}
		if refundCents > dep.AmountPaidCents {
			return invalid("refund_cents", "exceeds amount paid")
		}
		dep.AmountPaidCents -= refundCents
		if dep.AmountPaidCents == 0 {
			dep.Status = model.DepositRefunded
		} else {
			dep.Status = model.DepositAdjusted
		}
		return tx.UpdateDeposit(dep)
	})
	if err != nil {
		return nil, err
	}
	event := model.EventDepositAdjusted
	if dep.Status == model.DepositRefunded {
		event = model.EventDepositRefunded
	}
	e.logEvent(ctx, EntityRef{Kind: KindDeposit, ID: dep.ID}, event, p, map[string]any{
		"refund_cents": refundCents,
		"reason":       reason,
	})
	return dep, nil
}

// DepositEvidence is the payment evidence payload submitted for
// reconciliation, typically extracted from a transfer receipt.
type DepositEvidence struct {
	AmountCents int64      `json:"amount_cents"`
	PaidAt      *time.Time `json:"paid_at"`
	AccountRef  string     `json:"account_ref"`
	Reference   string     `json:"reference"`
}

// ReconcileResult is the verdict of a reconciliation check. It never
// mutates the deposit; recording a payment is a separate call.
type ReconcileResult struct {
	Match         bool     `json:"match"`
	Problems      []string `json:"problems,omitempty"`
	ClaimedCents  int64    `json:"claimed_cents"`
	RequiredCents int64    `json:"required_cents"`
}

// reconcileToleranceCents is the allowed gap between the claimed and
// required amounts: one currency unit, absorbing rounding on the
// payer's side.
const reconcileToleranceCents = 100

// ReconcileDeposit checks raw payment evidence against the deposit:
// required fields present, claimed amount within tolerance of the
// requirement, claimed date not in the future, and (when the owner
// is a route booking with a configured bank account) the claimed
// account reference matching it. The result lists every problem
// found.
func (e *Engine) ReconcileDeposit(ctx context.Context, p Principal, id uint64, rawEvidence []byte) (*ReconcileResult, error) {
	var ev DepositEvidence
	if err := json.Unmarshal(rawEvidence, &ev); err != nil {
		return nil, invalid("evidence", "malformed payload: "+err.Error())
	}
	now := e.now()
	result := &ReconcileResult{ClaimedCents: ev.AmountCents}
	err := e.store.InTx(ctx, func(tx Tx) error {
		dep, err := tx.Deposit(id)
		if err != nil {
			return err
		}
		contactID, err := ownerContact(tx, dep.Owner)
		if err != nil {
			return err
		}
		if !p.mayAccessContact(contactID) {
			return ErrForbidden
		}
		result.RequiredCents = dep.AmountRequiredCents
		if ev.AmountCents <= 0 {
			result.Problems = append(result.Problems, "amount_cents missing or not positive")
		}
		if ev.PaidAt == nil {
			result.Problems = append(result.Problems, "paid_at missing")
		} else if ev.PaidAt.After(now) {
			result.Problems = append(result.Problems, "paid_at is in the future")
		}
		if ev.Reference == "" {
			result.Problems = append(result.Problems, "reference missing")
		}
		if gap := ev.AmountCents - dep.AmountRequiredCents; gap > reconcileToleranceCents || gap < -reconcileToleranceCents {
			result.Problems = append(result.Problems, "claimed amount outside tolerance")
		}
		if dep.Owner.Kind == model.OwnerRouteBooking {
			rb, err := tx.RouteBooking(dep.Owner.ID)
			if err != nil {
				return err
			}
			account, err := tx.BankAccountForRoute(rb.RouteID)
			if err != nil {
				return err
			}
			if account != nil && !accountRefMatches(ev.AccountRef, account) {
				result.Problems = append(result.Problems, "account_ref does not match the route's bank account")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Match = len(result.Problems) == 0
	return result, nil
}

// accountRefMatches compares a claimed account reference against the
// configured account, ignoring case, spaces and separators. Either
// the account reference or the IBAN counts as a match.
func accountRefMatches(claimed string, account *model.BankAccount) bool {
	norm := func(s string) string {
		s = strings.ToUpper(s)
		s = strings.ReplaceAll(s, " ", "")
		s = strings.ReplaceAll(s, "-", "")
		return s
	}
	c := norm(claimed)
	if c == "" {
		return false
	}
	return c == norm(account.AccountRef) || c == norm(account.IBAN)
}
