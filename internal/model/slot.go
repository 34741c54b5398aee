package model

import "time"

// SlotStatus is the availability state of a slot.
type SlotStatus string

const (
	SlotOpen    SlotStatus = "OPEN"    // accepting bookings
	SlotClosed  SlotStatus = "CLOSED"  // full; reopens automatically when capacity returns
	SlotBlocked SlotStatus = "BLOCKED" // manual staff override; never cleared by recomputation
)

// Slot represents one bookable time instance of an experience with a
// finite party-size capacity. ReservedCapacity is a derived value:
// the sum of party sizes of reservations currently holding capacity
// on this slot. It is recomputed transactionally on every reservation
// status change and must never be trusted without recomputation.
//
// Slots are created by staff and never deleted; they are only
// status-flipped.
//
// Fields:
//  ID               – primary key identifier.
//  ExperienceID     – experience this slot belongs to.
//  StartsAt         – UTC start time of the slot.
//  MaxCapacity      – maximum party-size units the slot can hold.
//  ReservedCapacity – derived committed capacity (see above).
//  Status           – OPEN, CLOSED or BLOCKED.
//  CreatedAt/UpdatedAt – row timestamps.
type Slot struct {
	ID               uint64     // slots.id
	ExperienceID     uint64     // slots.experience_id
	StartsAt         time.Time  // slots.starts_at
	MaxCapacity      int        // slots.max_capacity
	ReservedCapacity int        // slots.reserved_capacity
	Status           SlotStatus // slots.status
	CreatedAt        time.Time  // slots.created_at
	UpdatedAt        time.Time  // slots.updated_at
}

// AvailableCapacity returns the remaining party-size units.
func (s *Slot) AvailableCapacity() int {
	return s.MaxCapacity - s.ReservedCapacity
}

// NextStatus returns the status the slot should carry for the given
// reserved amount. BLOCKED is a manual override and is always kept.
func (s *Slot) NextStatus(reserved int) SlotStatus {
	if s.Status == SlotBlocked {
		return SlotBlocked
	}
	if s.MaxCapacity-reserved <= 0 {
		return SlotClosed
	}
	return SlotOpen
}
