package repository

import (
	"context"
	"database/sql"
	"time"
)

// SlotRepo serves the public slot read paths. Capacity mutations
// never go through here; they run inside engine transactions via the
// Store.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// SlotListing is the wire shape of one slot in the public listings.
type SlotListing struct {
	ID                uint64    `json:"id"`
	ExperienceID      uint64    `json:"experience_id"`
	StartsAt          time.Time `json:"starts_at"`
	MaxCapacity       int       `json:"max_capacity"`
	AvailableCapacity int       `json:"available_capacity"`
	Status            string    `json:"status"`
}

// ListByExperience returns the upcoming slots of an experience
// ordered by start time. Past slots are excluded; blocked slots are
// listed (with zero availability) so clients can render them as
// unavailable rather than missing.
func (r *SlotRepo) ListByExperience(ctx context.Context, experienceID uint64, from time.Time) ([]SlotListing, error) {
	const q = `SELECT id, experience_id, starts_at, max_capacity, reserved_capacity, status
	           FROM slots
	           WHERE experience_id = ? AND starts_at >= ?
	           ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, experienceID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]SlotListing, 0)
	for rows.Next() {
		var s SlotListing
		var reserved int
		if err := rows.Scan(&s.ID, &s.ExperienceID, &s.StartsAt, &s.MaxCapacity, &reserved, &s.Status); err != nil {
			return nil, err
		}
		s.AvailableCapacity = s.MaxCapacity - reserved
		if s.AvailableCapacity < 0 || s.Status == "BLOCKED" {
			s.AvailableCapacity = 0
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
