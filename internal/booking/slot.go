package booking

import (
	"context"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// CreateSlotInput carries a staff request for a new slot.
type CreateSlotInput struct {
	ExperienceID uint64
	StartsAt     time.Time
	MaxCapacity  int
}

// CreateSlot opens a new bookable slot on an experience. Staff only.
func (e *Engine) CreateSlot(ctx context.Context, p Principal, in CreateSlotInput) (*model.Slot, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	if in.MaxCapacity < 1 {
		return nil, invalid("max_capacity", "must be at least 1")
	}
	if in.StartsAt.Before(e.now()) {
		return nil, invalid("starts_at", "must be in the future")
	}
	var slot *model.Slot
	err := e.store.InTx(ctx, func(tx Tx) error {
		if _, err := tx.Experience(in.ExperienceID); err != nil {
			return err
		}
		slot = &model.Slot{
			ExperienceID: in.ExperienceID,
			StartsAt:     in.StartsAt.UTC(),
			MaxCapacity:  in.MaxCapacity,
			Status:       model.SlotOpen,
		}
		return tx.InsertSlot(slot)
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// BlockSlot sets the manual BLOCKED override. Existing reservations
// keep their capacity; new bookings are refused until the slot is
// unblocked. Staff only.
func (e *Engine) BlockSlot(ctx context.Context, p Principal, id uint64) (*model.Slot, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	var slot *model.Slot
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		slot, err = tx.SlotForUpdate(id)
		if err != nil {
			return err
		}
		slot.Status = model.SlotBlocked
		return tx.UpdateSlotCapacity(id, slot.ReservedCapacity, model.SlotBlocked)
	})
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindSlot, ID: id}, model.EventSlotStatusChanged, p, map[string]any{"status": model.SlotBlocked})
	return slot, nil
}

// UnblockSlot clears the BLOCKED override and recomputes the derived
// status from current capacity. Staff only.
func (e *Engine) UnblockSlot(ctx context.Context, p Principal, id uint64) (*model.Slot, error) {
	if !p.IsStaff() {
		return nil, ErrForbidden
	}
	var slot *model.Slot
	err := e.store.InTx(ctx, func(tx Tx) error {
		var err error
		slot, err = tx.SlotForUpdate(id)
		if err != nil {
			return err
		}
		if slot.Status != model.SlotBlocked {
			return nil
		}
		reserved, err := tx.ReservedCapacity(id)
		if err != nil {
			return err
		}
		// Clear the override first so NextStatus can derive normally.
		slot.Status = model.SlotOpen
		next := slot.NextStatus(reserved)
		slot.ReservedCapacity = reserved
		slot.Status = next
		return tx.UpdateSlotCapacity(id, reserved, next)
	})
	if err != nil {
		return nil, err
	}
	e.logEvent(ctx, EntityRef{Kind: KindSlot, ID: id}, model.EventSlotStatusChanged, p, map[string]any{"status": slot.Status})
	return slot, nil
}

// SlotAvailability is the public availability read model.
type SlotAvailability struct {
	SlotID    uint64           `json:"slot_id"`
	StartsAt  time.Time        `json:"starts_at"`
	Status    model.SlotStatus `json:"status"`
	Max       int              `json:"max_capacity"`
	Reserved  int              `json:"reserved_capacity"`
	Available int              `json:"available_capacity"`
}

// GetSlotAvailability returns the live availability of a slot. The
// reserved count is recomputed from reservations rather than read
// from the persisted column, so the answer is correct even if the
// column drifted.
func (e *Engine) GetSlotAvailability(ctx context.Context, slotID uint64) (*SlotAvailability, error) {
	var av *SlotAvailability
	err := e.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.Slot(slotID)
		if err != nil {
			return err
		}
		reserved, err := tx.ReservedCapacity(slotID)
		if err != nil {
			return err
		}
		available := slot.MaxCapacity - reserved
		if available < 0 {
			available = 0
		}
		av = &SlotAvailability{
			SlotID:    slot.ID,
			StartsAt:  slot.StartsAt,
			Status:    slot.NextStatus(reserved),
			Max:       slot.MaxCapacity,
			Reserved:  reserved,
			Available: available,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return av, nil
}
