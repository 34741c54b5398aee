package repository

import (
	"context"
	"database/sql"

	"github.com/localtours/booking-backend/internal/model"
)

// ExperienceRepo serves the public experience read paths.
type ExperienceRepo struct {
	db *sql.DB
}

// NewExperienceRepo returns an ExperienceRepo bound to the given database.
func NewExperienceRepo(db *sql.DB) *ExperienceRepo { return &ExperienceRepo{db: db} }

// GetByID returns a single experience. It returns sql.ErrNoRows when
// no experience with the given ID exists.
func (r *ExperienceRepo) GetByID(ctx context.Context, id uint64) (*model.Experience, error) {
	const q = `SELECT id, name, individual_price_cents, route_price_cents,
	                  deposit_required, deposit_type, deposit_value, deposit_ttl_hours,
	                  is_active, created_at, updated_at
	           FROM experiences WHERE id = ?`
	var e model.Experience
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&e.ID, &e.Name, &e.IndividualPriceCents, &e.RoutePriceCents,
		&e.DepositRequired, &e.DepositType, &e.DepositValue, &e.DepositTTLHours,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListActive returns all bookable experiences ordered by name.
func (r *ExperienceRepo) ListActive(ctx context.Context) ([]model.Experience, error) {
	const q = `SELECT id, name, individual_price_cents, route_price_cents,
	                  deposit_required, deposit_type, deposit_value, deposit_ttl_hours,
	                  is_active, created_at, updated_at
	           FROM experiences WHERE is_active = 1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Experience, 0)
	for rows.Next() {
		var e model.Experience
		if err := rows.Scan(
			&e.ID, &e.Name, &e.IndividualPriceCents, &e.RoutePriceCents,
			&e.DepositRequired, &e.DepositType, &e.DepositValue, &e.DepositTTLHours,
			&e.IsActive, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
