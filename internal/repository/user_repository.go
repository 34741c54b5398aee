package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/localtours/booking-backend/internal/utils"
)

// User mirrors the 'users' table. Customer accounts carry the contact
// they book for; staff accounts have no contact.
type User struct {
	ID           uint64
	Email        string
	PasswordHash string
	Role         string
	ContactID    *uint64
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user and returns its ID. contactID is nil for
// staff accounts.
func (r *UserRepo) Create(ctx context.Context, email, password, role string, contactID *uint64, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	var cid interface{}
	if contactID != nil {
		cid = *contactID
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role, contact_id) VALUES (?,?,?,?)",
		email, hash, role, cid)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userCols = "id,email,password_hash,role,contact_id,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (User, error) {
	var u User
	var cid sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &cid, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if cid.Valid {
		id := uint64(cid.Int64)
		u.ContactID = &id
	}
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}
