package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/localtours/booking-backend/internal/model"
)

// ContactRepo manages the contacts table. It also implements
// booking.OptInChecker for the notification path.
type ContactRepo struct {
	db *sql.DB
}

// NewContactRepo returns a ContactRepo bound to the given database.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// Create inserts a contact and populates its ID.
func (r *ContactRepo) Create(ctx context.Context, c *model.Contact) error {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (name, email, phone, email_opt_in, phone_opt_in)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Email, c.Phone, c.EmailOptIn, c.PhoneOptIn)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByID returns a contact. sql.ErrNoRows when absent.
func (r *ContactRepo) GetByID(ctx context.Context, id uint64) (*model.Contact, error) {
	var c model.Contact
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, email_opt_in, phone_opt_in, created_at
		 FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.EmailOptIn, &c.PhoneOptIn, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// EmailOptIn implements booking.OptInChecker. Unknown contacts count
// as opted out.
func (r *ContactRepo) EmailOptIn(ctx context.Context, contactID uint64) (bool, error) {
	return r.optIn(ctx, contactID, "email_opt_in")
}

// PhoneOptIn implements booking.OptInChecker.
func (r *ContactRepo) PhoneOptIn(ctx context.Context, contactID uint64) (bool, error) {
	return r.optIn(ctx, contactID, "phone_opt_in")
}

func (r *ContactRepo) optIn(ctx context.Context, contactID uint64, column string) (bool, error) {
	// column is one of the two literals above, never caller input.
	var ok bool
	err := r.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM contacts WHERE id = ?`, contactID,
	).Scan(&ok)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}
