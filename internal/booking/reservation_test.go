package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

func TestCreateReservation(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(func(e *model.Experience) {
		e.DepositRequired = true
		e.DepositType = model.DepositTypePercent
		e.DepositValue = 20
	})
	slot := env.seedSlot(exp.ID, 10, 0)

	res, err := env.eng.CreateReservation(context.Background(), env.customer, CreateReservationInput{
		ContactID:    env.contact,
		ExperienceID: exp.ID,
		SlotID:       slot.ID,
		PartySize:    3,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}
	if res.Status != model.ReservationPending {
		t.Errorf("status = %s, want PENDING", res.Status)
	}
	if res.PriceCents != 15000 {
		t.Errorf("price = %d, want 15000", res.PriceCents)
	}
	if res.DepositAmountCents != 3000 {
		t.Errorf("deposit = %d, want 3000 (20%% of price)", res.DepositAmountCents)
	}
	if want := baseTime.Add(24 * time.Hour); !res.ExpiresAt.Equal(want) {
		t.Errorf("expires at %v, want %v", res.ExpiresAt, want)
	}

	dep := env.deposit(t, model.ReservationOwner(res.ID))
	if dep.Status != model.DepositPending {
		t.Errorf("deposit status = %s, want PENDING", dep.Status)
	}
	if !dep.DueAt.Equal(res.ExpiresAt) {
		t.Errorf("deposit due %v, want %v", dep.DueAt, res.ExpiresAt)
	}

	got := env.slot(t, slot.ID)
	if got.ReservedCapacity != 3 {
		t.Errorf("reserved = %d, want 3", got.ReservedCapacity)
	}
	if got.Status != model.SlotOpen {
		t.Errorf("slot status = %s, want OPEN", got.Status)
	}
	if !env.recorder.has(model.EventReservationCreated) {
		t.Error("expected a reservation.created audit event")
	}
}

func TestCreateReservationCapacity(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 4, 0)
	ctx := context.Background()

	book := func(party int) error {
		_, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID:    env.contact,
			ExperienceID: exp.ID,
			SlotID:       slot.ID,
			PartySize:    party,
		})
		return err
	}

	if err := book(3); err != nil {
		t.Fatalf("first booking of 3: %v", err)
	}
	if err := book(2); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("booking 2 into 1 remaining: err = %v, want ErrCapacityExceeded", err)
	}
	if err := book(1); err != nil {
		t.Fatalf("booking the last spot: %v", err)
	}

	got := env.slot(t, slot.ID)
	if got.ReservedCapacity != 4 {
		t.Errorf("reserved = %d, want 4", got.ReservedCapacity)
	}
	if got.Status != model.SlotClosed {
		t.Errorf("slot status = %s, want CLOSED after filling up", got.Status)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 4, 0)
	other := env.seedExperience(func(e *model.Experience) { e.Name = "Kayak Tour" })
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateReservationInput
	}{
		{"zero party", CreateReservationInput{ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID}},
		{"wrong experience", CreateReservationInput{ContactID: env.contact, ExperienceID: other.ID, SlotID: slot.ID, PartySize: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.eng.CreateReservation(ctx, env.customer, tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}

	t.Run("blocked slot", func(t *testing.T) {
		blocked := env.seedSlot(exp.ID, 4, 0)
		if _, err := env.eng.BlockSlot(ctx, env.staff, blocked.ID); err != nil {
			t.Fatalf("BlockSlot: %v", err)
		}
		_, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: exp.ID, SlotID: blocked.ID, PartySize: 1,
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError for blocked slot", err)
		}
	})

	t.Run("inactive experience", func(t *testing.T) {
		dead := env.seedExperience(func(e *model.Experience) { e.IsActive = false })
		deadSlot := env.seedSlot(dead.ID, 4, 0)
		_, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: dead.ID, SlotID: deadSlot.ID, PartySize: 1,
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("err = %v, want ValidationError for inactive experience", err)
		}
	})

	t.Run("foreign contact", func(t *testing.T) {
		_, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact + 99, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
		})
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("err = %v, want ErrForbidden", err)
		}
	})
}

func TestCreateReservationPolicyWindow(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	env.seedPolicy(exp.ID, 72, 0, 0)
	slot := env.seedSlot(exp.ID, 4, 48*time.Hour)

	_, err := env.eng.CreateReservation(context.Background(), env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
	})
	var perr *PolicyViolationError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PolicyViolationError", err)
	}
	if perr.Action != PolicyBook || perr.MinHours != 72 {
		t.Errorf("violation = %+v, want book/72h", perr)
	}
}

func TestConfirmReservation(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 4, 0)
	ctx := context.Background()

	res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 2,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	if _, err := env.eng.ConfirmReservation(ctx, env.customer, res.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("customer confirm: err = %v, want ErrForbidden", err)
	}

	confirmed, err := env.eng.ConfirmReservation(ctx, env.staff, res.ID)
	if err != nil {
		t.Fatalf("ConfirmReservation: %v", err)
	}
	if confirmed.Status != model.ReservationConfirmed {
		t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
	}
	// Confirmation keeps the capacity committed.
	if got := env.slot(t, slot.ID); got.ReservedCapacity != 2 {
		t.Errorf("reserved = %d after confirm, want 2", got.ReservedCapacity)
	}

	if _, err := env.eng.ConfirmReservation(ctx, env.staff, res.ID); err == nil {
		t.Error("second confirm should fail, transition table forbids CONFIRMED -> CONFIRMED")
	}
}

func TestConfirmAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 4, 30*24*time.Hour)
	ctx := context.Background()

	res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	env.clock.Advance(25 * time.Hour)
	_, err = env.eng.ConfirmReservation(ctx, env.staff, res.ID)
	var serr *StateTransitionError
	if !errors.As(err, &serr) {
		t.Fatalf("err = %v, want StateTransitionError for lapsed hold", err)
	}
	if env.reservation(t, res.ID).Status != model.ReservationPending {
		t.Error("reservation should stay PENDING for the sweep to expire")
	}
}

func TestCancelReservation(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	env.seedPolicy(exp.ID, 0, 0, 24)
	ctx := context.Background()

	t.Run("pending is abandoned", func(t *testing.T) {
		slot := env.seedSlot(exp.ID, 2, 0)
		res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 2,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		if got := env.slot(t, slot.ID); got.Status != model.SlotClosed {
			t.Fatalf("slot should be CLOSED while the hold lives, got %s", got.Status)
		}
		cancelled, err := env.eng.CancelReservation(ctx, env.customer, res.ID)
		if err != nil {
			t.Fatalf("CancelReservation: %v", err)
		}
		if cancelled.Status != model.ReservationExpired {
			t.Errorf("status = %s, want EXPIRED for an abandoned hold", cancelled.Status)
		}
		got := env.slot(t, slot.ID)
		if got.ReservedCapacity != 0 || got.Status != model.SlotOpen {
			t.Errorf("slot = %d/%s, want 0/OPEN after release", got.ReservedCapacity, got.Status)
		}
	})

	t.Run("confirmed inside the window", func(t *testing.T) {
		slot := env.seedSlot(exp.ID, 2, 48*time.Hour)
		res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		if _, err := env.eng.ConfirmReservation(ctx, env.staff, res.ID); err != nil {
			t.Fatalf("ConfirmReservation: %v", err)
		}
		cancelled, err := env.eng.CancelReservation(ctx, env.customer, res.ID)
		if err != nil {
			t.Fatalf("CancelReservation: %v", err)
		}
		if cancelled.Status != model.ReservationCancelled {
			t.Errorf("status = %s, want CANCELLED", cancelled.Status)
		}
	})

	t.Run("confirmed past the window", func(t *testing.T) {
		slot := env.seedSlot(exp.ID, 2, 12*time.Hour)
		res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		if _, err := env.eng.ConfirmReservation(ctx, env.staff, res.ID); err != nil {
			t.Fatalf("ConfirmReservation: %v", err)
		}
		_, err = env.eng.CancelReservation(ctx, env.customer, res.ID)
		var perr *PolicyViolationError
		if !errors.As(err, &perr) {
			t.Fatalf("err = %v, want PolicyViolationError (12h left, 24h window)", err)
		}
	})
}

func TestModifyReservation(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(func(e *model.Experience) {
		e.DepositRequired = true
		e.DepositType = model.DepositTypeAmount
		e.DepositValue = 1000
	})
	slotA := env.seedSlot(exp.ID, 4, 0)
	slotB := env.seedSlot(exp.ID, 2, 72*time.Hour)
	ctx := context.Background()

	res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slotA.ID, PartySize: 2,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	t.Run("grow party", func(t *testing.T) {
		party := 4
		got, err := env.eng.ModifyReservation(ctx, env.customer, res.ID, ModifyReservationInput{PartySize: &party})
		if err != nil {
			t.Fatalf("ModifyReservation: %v", err)
		}
		if got.PartySize != 4 || got.PriceCents != 20000 {
			t.Errorf("got party=%d price=%d, want 4/20000", got.PartySize, got.PriceCents)
		}
		if s := env.slot(t, slotA.ID); s.ReservedCapacity != 4 || s.Status != model.SlotClosed {
			t.Errorf("slot A = %d/%s, want 4/CLOSED", s.ReservedCapacity, s.Status)
		}
	})

	t.Run("grow past capacity", func(t *testing.T) {
		party := 5
		_, err := env.eng.ModifyReservation(ctx, env.customer, res.ID, ModifyReservationInput{PartySize: &party})
		if !errors.Is(err, ErrCapacityExceeded) {
			t.Fatalf("err = %v, want ErrCapacityExceeded", err)
		}
	})

	t.Run("move slots", func(t *testing.T) {
		party := 2
		got, err := env.eng.ModifyReservation(ctx, env.customer, res.ID, ModifyReservationInput{SlotID: &slotB.ID, PartySize: &party})
		if err != nil {
			t.Fatalf("ModifyReservation: %v", err)
		}
		if got.SlotID != slotB.ID {
			t.Errorf("slot = %d, want %d", got.SlotID, slotB.ID)
		}
		if a := env.slot(t, slotA.ID); a.ReservedCapacity != 0 || a.Status != model.SlotOpen {
			t.Errorf("slot A = %d/%s, want released 0/OPEN", a.ReservedCapacity, a.Status)
		}
		if b := env.slot(t, slotB.ID); b.ReservedCapacity != 2 || b.Status != model.SlotClosed {
			t.Errorf("slot B = %d/%s, want 2/CLOSED", b.ReservedCapacity, b.Status)
		}
	})
}

func TestModifyReservationPolicyWindow(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	env.seedPolicy(exp.ID, 12, 24, 0)
	far := env.seedSlot(exp.ID, 4, 0)
	near := env.seedSlot(exp.ID, 4, 18*time.Hour)
	ctx := context.Background()

	res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: far.ID, PartySize: 1,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	// The target starts inside the modify window even though it is
	// still outside the booking window; the move must fail.
	_, err = env.eng.ModifyReservation(ctx, env.customer, res.ID, ModifyReservationInput{SlotID: &near.ID})
	var perr *PolicyViolationError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PolicyViolationError", err)
	}
	if perr.Action != PolicyModify {
		t.Errorf("violation action = %s, want modify", perr.Action)
	}
	if got := env.reservation(t, res.ID); got.SlotID != far.ID {
		t.Errorf("slot = %d, want unchanged %d", got.SlotID, far.ID)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 10, 0)
	ctx := context.Background()

	create := func(t *testing.T) uint64 {
		t.Helper()
		res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
			ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
		})
		if err != nil {
			t.Fatalf("CreateReservation: %v", err)
		}
		return res.ID
	}

	t.Run("reject releases capacity", func(t *testing.T) {
		id := create(t)
		before := env.slot(t, slot.ID).ReservedCapacity
		res, err := env.eng.RejectReservation(ctx, env.staff, id)
		if err != nil {
			t.Fatalf("RejectReservation: %v", err)
		}
		if res.Status != model.ReservationRejected {
			t.Errorf("status = %s, want REJECTED", res.Status)
		}
		if after := env.slot(t, slot.ID).ReservedCapacity; after != before-1 {
			t.Errorf("reserved = %d, want %d", after, before-1)
		}
	})

	t.Run("check in and complete", func(t *testing.T) {
		id := create(t)
		if _, err := env.eng.ConfirmReservation(ctx, env.staff, id); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := env.eng.CheckInReservation(ctx, env.staff, id); err != nil {
			t.Fatalf("check in: %v", err)
		}
		res, err := env.eng.CompleteReservation(ctx, env.staff, id)
		if err != nil {
			t.Fatalf("complete: %v", err)
		}
		if res.Status != model.ReservationCompleted {
			t.Errorf("status = %s, want COMPLETED", res.Status)
		}
	})

	t.Run("no show from checked in", func(t *testing.T) {
		id := create(t)
		if _, err := env.eng.ConfirmReservation(ctx, env.staff, id); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		if _, err := env.eng.CheckInReservation(ctx, env.staff, id); err != nil {
			t.Fatalf("check in: %v", err)
		}
		res, err := env.eng.MarkNoShow(ctx, env.staff, id)
		if err != nil {
			t.Fatalf("no show: %v", err)
		}
		if res.Status != model.ReservationNoShow {
			t.Errorf("status = %s, want NO_SHOW", res.Status)
		}
	})

	t.Run("terminal states are final", func(t *testing.T) {
		id := create(t)
		if _, err := env.eng.RejectReservation(ctx, env.staff, id); err != nil {
			t.Fatalf("reject: %v", err)
		}
		_, err := env.eng.ConfirmReservation(ctx, env.staff, id)
		var serr *StateTransitionError
		if !errors.As(err, &serr) {
			t.Fatalf("confirm after reject: err = %v, want StateTransitionError", err)
		}
	})
}

func TestGetReservationOwnership(t *testing.T) {
	env := newTestEnv(t)
	exp := env.seedExperience(nil)
	slot := env.seedSlot(exp.ID, 4, 0)
	ctx := context.Background()

	res, err := env.eng.CreateReservation(ctx, env.customer, CreateReservationInput{
		ContactID: env.contact, ExperienceID: exp.ID, SlotID: slot.ID, PartySize: 1,
	})
	if err != nil {
		t.Fatalf("CreateReservation: %v", err)
	}

	stranger := Principal{UserID: 9, ContactID: env.contact + 7, Role: RoleCustomer}
	if _, err := env.eng.GetReservation(ctx, stranger, res.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger get: err = %v, want ErrForbidden", err)
	}
	if _, err := env.eng.GetReservation(ctx, env.staff, res.ID); err != nil {
		t.Errorf("staff get: %v", err)
	}
	if _, err := env.eng.GetReservation(ctx, env.customer, res.ID+100); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing get: err = %v, want ErrNotFound", err)
	}
}
