package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

func seedDepositedReservation(t *testing.T, env *testEnv) (*model.Reservation, *model.Deposit) {
	t.Helper()
	exp := env.seedExperience(func(e *model.Experience) {
		e.DepositRequired = true
		e.DepositType = model.DepositTypeAmount
		e.DepositValue = 5000
	})
	slot := env.seedSlot(exp.ID, 4, 0)
	res, err := env.eng.CreateReservation(context.Background(), env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	return res, env.deposit(t, model.ReservationOwner(res.ID))
}

func TestRecordDepositPayment(t *testing.T) {
	env := newTestEnv(t)
	_, dep := seedDepositedReservation(t, env)
	ctx := context.Background()

	// Partial payment accumulates without flipping the status.
	got, err := env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 2000, model.VerifyManual, "")
	if err != nil {
		t.Fatalf("RecordDepositPayment: %v", err)
	}
	if got.Status != model.DepositPending || got.AmountPaidCents != 2000 {
		t.Errorf("after partial: %s/%d, want PENDING/2000", got.Status, got.AmountPaidCents)
	}
	if got.PaidAt != nil {
		t.Error("PaidAt stamped before the requirement was covered")
	}

	got, err = env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 3000, model.VerifyOCR, `{"receipt":"r-77"}`)
	if err != nil {
		t.Fatalf("RecordDepositPayment: %v", err)
	}
	if got.Status != model.DepositPaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}
	if got.PaidAt == nil || !got.PaidAt.Equal(env.clock.Now()) {
		t.Errorf("PaidAt = %v, want stamped now", got.PaidAt)
	}
	if got.VerificationMethod != model.VerifyOCR {
		t.Errorf("verification = %s, want OCR", got.VerificationMethod)
	}

	// A paid deposit accepts no further payments.
	if _, err := env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 100, model.VerifyManual, ""); !errors.Is(err, ErrInvalidState) {
		t.Errorf("payment on PAID: err = %v, want ErrInvalidState", err)
	}
	if !env.recorder.has(model.EventDepositPaid) {
		t.Error("expected a deposit.paid audit event")
	}
}

func TestRecordDepositPaymentOverdue(t *testing.T) {
	env := newTestEnv(t)
	_, dep := seedDepositedReservation(t, env)
	ctx := context.Background()

	// Reading past the due time flips the deposit lazily, without
	// waiting for the sweep.
	env.clock.Advance(25 * time.Hour)
	got, err := env.eng.GetDeposit(ctx, env.customer, dep.ID)
	if err != nil {
		t.Fatalf("GetDeposit: %v", err)
	}
	if got.Status != model.DepositOverdue {
		t.Fatalf("status = %s, want lazily flipped OVERDUE", got.Status)
	}

	// An overdue deposit can still be settled while the owner lives.
	got, err = env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 5000, model.VerifyManual, "")
	if err != nil {
		t.Fatalf("RecordDepositPayment: %v", err)
	}
	if got.Status != model.DepositPaid {
		t.Errorf("status = %s, want PAID", got.Status)
	}
}

func TestAdjustDeposit(t *testing.T) {
	env := newTestEnv(t)
	_, dep := seedDepositedReservation(t, env)
	ctx := context.Background()

	if _, err := env.eng.AdjustDeposit(ctx, env.customer, dep.ID, 1000, "goodwill"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer adjust: err = %v, want ErrForbidden", err)
	}
	if _, err := env.eng.AdjustDeposit(ctx, env.staff, dep.ID, 1000, "goodwill"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("adjust on PENDING: err = %v, want ErrInvalidState", err)
	}

	if _, err := env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 5000, model.VerifyManual, ""); err != nil {
		t.Fatalf("RecordDepositPayment: %v", err)
	}

	got, err := env.eng.AdjustDeposit(ctx, env.staff, dep.ID, 2000, "weather cancellation")
	if err != nil {
		t.Fatalf("AdjustDeposit: %v", err)
	}
	if got.Status != model.DepositAdjusted || got.AmountPaidCents != 3000 {
		t.Errorf("after partial refund: %s/%d, want ADJUSTED/3000", got.Status, got.AmountPaidCents)
	}

	if _, err := env.eng.AdjustDeposit(ctx, env.staff, dep.ID, 9000, "too much"); err == nil {
		t.Error("refund exceeding paid amount should fail")
	}
}

func TestAdjustDepositFullRefund(t *testing.T) {
	env := newTestEnv(t)
	_, dep := seedDepositedReservation(t, env)
	ctx := context.Background()

	if _, err := env.eng.RecordDepositPayment(ctx, env.customer, dep.ID, 5000, model.VerifyManual, ""); err != nil {
		t.Fatalf("RecordDepositPayment: %v", err)
	}
	got, err := env.eng.AdjustDeposit(ctx, env.staff, dep.ID, 5000, "tour cancelled by operator")
	if err != nil {
		t.Fatalf("AdjustDeposit: %v", err)
	}
	if got.Status != model.DepositRefunded || got.AmountPaidCents != 0 {
		t.Errorf("after full refund: %s/%d, want REFUNDED/0", got.Status, got.AmountPaidCents)
	}
	if !env.recorder.has(model.EventDepositRefunded) {
		t.Error("expected a deposit.refunded audit event")
	}
}

func TestReconcileDeposit(t *testing.T) {
	env := newTestEnv(t)
	_, dep := seedDepositedReservation(t, env)
	ctx := context.Background()
	paidAt := baseTime.Add(-time.Hour).Format(time.RFC3339)

	t.Run("clean match", func(t *testing.T) {
		evidence := fmt.Sprintf(`{"amount_cents":5000,"paid_at":%q,"account_ref":"","reference":"TRX-1"}`, paidAt)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if !result.Match {
			t.Errorf("match = false, problems: %v", result.Problems)
		}
	})

	t.Run("within tolerance", func(t *testing.T) {
		evidence := fmt.Sprintf(`{"amount_cents":4950,"paid_at":%q,"reference":"TRX-2"}`, paidAt)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if !result.Match {
			t.Errorf("50 cents under should pass the one-unit tolerance, problems: %v", result.Problems)
		}
	})

	t.Run("amount off", func(t *testing.T) {
		evidence := fmt.Sprintf(`{"amount_cents":4000,"paid_at":%q,"reference":"TRX-3"}`, paidAt)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if result.Match {
			t.Error("1000 cents short must not match")
		}
	})

	t.Run("future date and missing fields", func(t *testing.T) {
		future := baseTime.Add(48 * time.Hour).Format(time.RFC3339)
		evidence := fmt.Sprintf(`{"amount_cents":5000,"paid_at":%q}`, future)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if result.Match {
			t.Error("future paid_at and missing reference must not match")
		}
		if len(result.Problems) != 2 {
			t.Errorf("problems = %v, want exactly the two findings", result.Problems)
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(`{not json`))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	// Verdict only: the deposit itself is untouched.
	got, err := env.eng.GetDeposit(ctx, env.customer, dep.ID)
	if err != nil {
		t.Fatalf("GetDeposit: %v", err)
	}
	if got.Status != model.DepositPending || got.AmountPaidCents != 0 {
		t.Errorf("deposit mutated by reconcile: %s/%d", got.Status, got.AmountPaidCents)
	}
}

func TestReconcileRouteBookingAccount(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	route := env.seedRoute(func(r *model.Route) {
		r.DepositRequired = true
		r.DepositType = model.DepositTypeAmount
		r.DepositValue = 8000
	}, exp.ID)
	slot := env.seedSlot(exp.ID, 4, 0)
	env.store.mu.Lock()
	env.store.accounts[route.ID] = &model.BankAccount{
		ID:         env.store.id(),
		RouteID:    route.ID,
		Holder:     "Harbor Tours SL",
		AccountRef: "ES91 2100 0418 4502 0005 1332",
	}
	env.store.mu.Unlock()
	ctx := context.Background()

	rb, err := env.eng.CreateRouteBooking(ctx, env.customer, CreateRouteBookingInput{
		ContactID: env.contact, RouteID: route.ID, PartySize: 1,
		SlotIDs: map[int]uint64{0: slot.ID},
	})
	if err != nil {
		t.Fatalf("CreateRouteBooking: %v", err)
	}
	dep := env.deposit(t, model.RouteBookingOwner(rb.ID))
	paidAt := baseTime.Add(-time.Hour).Format(time.RFC3339)

	t.Run("normalized account match", func(t *testing.T) {
		evidence := fmt.Sprintf(`{"amount_cents":8000,"paid_at":%q,"account_ref":"es91-2100-0418-4502-0005-1332","reference":"TRX-9"}`, paidAt)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if !result.Match {
			t.Errorf("case and separators should be ignored, problems: %v", result.Problems)
		}
	})

	t.Run("wrong account", func(t *testing.T) {
		evidence := fmt.Sprintf(`{"amount_cents":8000,"paid_at":%q,"account_ref":"DE00 1234","reference":"TRX-10"}`, paidAt)
		result, err := env.eng.ReconcileDeposit(ctx, env.customer, dep.ID, []byte(evidence))
		if err != nil {
			t.Fatalf("ReconcileDeposit: %v", err)
		}
		if result.Match {
			t.Error("mismatched account_ref must not match")
		}
	})
}
