package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/model"
)

// Store implements booking.Store on MySQL. All engine mutations run
// through InTx; the sweep candidate queries read outside transactions
// because each candidate is re-checked under its row lock anyway.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store bound to the given database.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// InTx runs fn inside one transaction and commits when it returns
// nil. Deadlock and lock-wait errors surface to the engine as
// booking.ErrConcurrencyConflict so callers know a retry is safe.
func (s *Store) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&storeTx{ctx: ctx, tx: tx}); err != nil {
		return mapErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapErr(err)
	}
	committed = true
	return nil
}

// ExpiredPendingReservations returns PENDING reservations whose hold
// lapsed at or before asOf.
func (s *Store) ExpiredPendingReservations(ctx context.Context, asOf time.Time) ([]uint64, error) {
	return s.ids(ctx,
		`SELECT id FROM reservations WHERE status = 'PENDING' AND expires_at <= ? ORDER BY id`,
		asOf)
}

// OverdueDeposits returns PENDING deposits past their due time.
func (s *Store) OverdueDeposits(ctx context.Context, asOf time.Time) ([]uint64, error) {
	return s.ids(ctx,
		`SELECT id FROM deposits WHERE status = 'PENDING' AND due_at <= ? ORDER BY id`,
		asOf)
}

// NoShowCandidates returns CONFIRMED reservations whose slot started
// at or before cutoff.
func (s *Store) NoShowCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	return s.ids(ctx,
		`SELECT r.id FROM reservations r
		 JOIN slots s ON s.id = r.slot_id
		 WHERE r.status = 'CONFIRMED' AND s.starts_at <= ?
		 ORDER BY r.id`,
		cutoff)
}

func (s *Store) ids(ctx context.Context, query string, args ...interface{}) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// mapErr translates driver errors into the engine's sentinel errors.
// MySQL 1213 is a deadlock victim, 1205 a lock wait timeout; both
// mean the caller lost a race and may retry.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return booking.ErrNotFound
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == 1213 || myErr.Number == 1205) {
		return booking.ErrConcurrencyConflict
	}
	return err
}

// storeTx implements booking.Tx over one *sql.Tx.
type storeTx struct {
	ctx context.Context
	tx  *sql.Tx
}

const experienceCols = `id, name, individual_price_cents, route_price_cents,
	deposit_required, deposit_type, deposit_value, deposit_ttl_hours,
	is_active, created_at, updated_at`

func scanExperience(row *sql.Row) (*model.Experience, error) {
	var e model.Experience
	err := row.Scan(
		&e.ID, &e.Name, &e.IndividualPriceCents, &e.RoutePriceCents,
		&e.DepositRequired, &e.DepositType, &e.DepositValue, &e.DepositTTLHours,
		&e.IsActive, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &e, nil
}

func (t *storeTx) Experience(id uint64) (*model.Experience, error) {
	return scanExperience(t.tx.QueryRowContext(t.ctx,
		`SELECT `+experienceCols+` FROM experiences WHERE id = ?`, id))
}

func (t *storeTx) PolicyForExperience(experienceID uint64) (*model.BookingPolicy, error) {
	var p model.BookingPolicy
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, experience_id, min_hours_before_booking,
		        modify_until_hours_before, cancel_until_hours_before
		 FROM booking_policies WHERE experience_id = ?`, experienceID,
	).Scan(&p.ID, &p.ExperienceID, &p.MinHoursBeforeBooking,
		&p.ModifyUntilHoursBefore, &p.CancelUntilHoursBefore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *storeTx) Contact(id uint64) (*model.Contact, error) {
	var c model.Contact
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, name, email, phone, email_opt_in, phone_opt_in, created_at
		 FROM contacts WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.EmailOptIn, &c.PhoneOptIn, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

const slotCols = `id, experience_id, starts_at, max_capacity, reserved_capacity, status, created_at, updated_at`

func scanSlot(row *sql.Row) (*model.Slot, error) {
	var s model.Slot
	err := row.Scan(&s.ID, &s.ExperienceID, &s.StartsAt, &s.MaxCapacity,
		&s.ReservedCapacity, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

func (t *storeTx) Slot(id uint64) (*model.Slot, error) {
	return scanSlot(t.tx.QueryRowContext(t.ctx,
		`SELECT `+slotCols+` FROM slots WHERE id = ?`, id))
}

// SlotForUpdate takes the row lock that serializes all capacity work
// on the slot.
func (t *storeTx) SlotForUpdate(id uint64) (*model.Slot, error) {
	return scanSlot(t.tx.QueryRowContext(t.ctx,
		`SELECT `+slotCols+` FROM slots WHERE id = ? FOR UPDATE`, id))
}

func (t *storeTx) InsertSlot(s *model.Slot) error {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO slots (experience_id, starts_at, max_capacity, reserved_capacity, status)
		 VALUES (?, ?, ?, 0, ?)`,
		s.ExperienceID, s.StartsAt, s.MaxCapacity, s.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// ReservedCapacity recomputes the committed capacity from the
// reservations table rather than trusting the persisted column.
func (t *storeTx) ReservedCapacity(slotID uint64) (int, error) {
	var total int
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT COALESCE(SUM(party_size), 0) FROM reservations
		 WHERE slot_id = ? AND status IN ('PENDING', 'CONFIRMED')`, slotID,
	).Scan(&total)
	return total, err
}

func (t *storeTx) UpdateSlotCapacity(id uint64, reserved int, status model.SlotStatus) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE slots SET reserved_capacity = ?, status = ? WHERE id = ?`,
		reserved, status, id)
	return err
}

const reservationCols = `id, contact_id, experience_id, slot_id, route_booking_id, stop_sequence,
	party_size, price_cents, deposit_required, deposit_amount_cents, expires_at, status,
	created_at, updated_at`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var r model.Reservation
	var rbID sql.NullInt64
	err := row.Scan(
		&r.ID, &r.ContactID, &r.ExperienceID, &r.SlotID, &rbID, &r.StopSequence,
		&r.PartySize, &r.PriceCents, &r.DepositRequired, &r.DepositAmountCents,
		&r.ExpiresAt, &r.Status, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if rbID.Valid {
		id := uint64(rbID.Int64)
		r.RouteBookingID = &id
	}
	return &r, nil
}

func (t *storeTx) Reservation(id uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(t.ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
}

func (t *storeTx) ReservationForUpdate(id uint64) (*model.Reservation, error) {
	return scanReservation(t.tx.QueryRowContext(t.ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, id))
}

func (t *storeTx) InsertReservation(r *model.Reservation) error {
	var rbID interface{}
	if r.RouteBookingID != nil {
		rbID = *r.RouteBookingID
	}
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO reservations (contact_id, experience_id, slot_id, route_booking_id,
		 stop_sequence, party_size, price_cents, deposit_required, deposit_amount_cents,
		 expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ContactID, r.ExperienceID, r.SlotID, rbID,
		r.StopSequence, r.PartySize, r.PriceCents, r.DepositRequired, r.DepositAmountCents,
		r.ExpiresAt, r.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = uint64(id)
	return nil
}

// SetReservationStatus is the compare-and-set every transition path
// funnels through. Zero rows affected means another writer changed
// the status first (or the row is gone).
func (t *storeTx) SetReservationStatus(id uint64, from, to model.ReservationStatus) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE reservations SET status = ? WHERE id = ? AND status = ?`,
		to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists int
	if err := t.tx.QueryRowContext(t.ctx,
		`SELECT 1 FROM reservations WHERE id = ?`, id).Scan(&exists); err != nil {
		return mapErr(err)
	}
	return booking.ErrConcurrencyConflict
}

func (t *storeTx) UpdateReservationBooking(r *model.Reservation) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE reservations SET slot_id = ?, party_size = ?, price_cents = ?,
		 deposit_required = ?, deposit_amount_cents = ?, expires_at = ?
		 WHERE id = ?`,
		r.SlotID, r.PartySize, r.PriceCents,
		r.DepositRequired, r.DepositAmountCents, r.ExpiresAt, r.ID)
	return err
}

func (t *storeTx) DeleteReservation(id uint64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM reservations WHERE id = ?`, id)
	return err
}

const depositCols = `id, owner_kind, owner_id, amount_required_cents, amount_paid_cents,
	due_at, paid_at, status, verification_method, evidence_json, created_at, updated_at`

func scanDeposit(row *sql.Row) (*model.Deposit, error) {
	var d model.Deposit
	var paidAt sql.NullTime
	var evidence sql.NullString
	err := row.Scan(
		&d.ID, &d.Owner.Kind, &d.Owner.ID, &d.AmountRequiredCents, &d.AmountPaidCents,
		&d.DueAt, &paidAt, &d.Status, &d.VerificationMethod, &evidence,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if paidAt.Valid {
		ts := paidAt.Time
		d.PaidAt = &ts
	}
	if evidence.Valid {
		d.EvidenceJSON = evidence.String
	}
	return &d, nil
}

func (t *storeTx) Deposit(id uint64) (*model.Deposit, error) {
	return scanDeposit(t.tx.QueryRowContext(t.ctx,
		`SELECT `+depositCols+` FROM deposits WHERE id = ?`, id))
}

func (t *storeTx) DepositForUpdate(id uint64) (*model.Deposit, error) {
	return scanDeposit(t.tx.QueryRowContext(t.ctx,
		`SELECT `+depositCols+` FROM deposits WHERE id = ? FOR UPDATE`, id))
}

func (t *storeTx) DepositByOwner(owner model.DepositOwner) (*model.Deposit, error) {
	return scanDeposit(t.tx.QueryRowContext(t.ctx,
		`SELECT `+depositCols+` FROM deposits WHERE owner_kind = ? AND owner_id = ?`,
		owner.Kind, owner.ID))
}

func verificationOrDefault(m model.VerificationMethod) model.VerificationMethod {
	if m == "" {
		return model.VerifyManual
	}
	return m
}

func (t *storeTx) InsertDeposit(d *model.Deposit) error {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO deposits (owner_kind, owner_id, amount_required_cents, amount_paid_cents,
		 due_at, paid_at, status, verification_method, evidence_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Owner.Kind, d.Owner.ID, d.AmountRequiredCents, d.AmountPaidCents,
		d.DueAt, d.PaidAt, d.Status, verificationOrDefault(d.VerificationMethod), d.EvidenceJSON)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	d.ID = uint64(id)
	return nil
}

func (t *storeTx) UpdateDeposit(d *model.Deposit) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE deposits SET amount_required_cents = ?, amount_paid_cents = ?, due_at = ?,
		 paid_at = ?, status = ?, verification_method = ?, evidence_json = ?
		 WHERE id = ?`,
		d.AmountRequiredCents, d.AmountPaidCents, d.DueAt,
		d.PaidAt, d.Status, verificationOrDefault(d.VerificationMethod), d.EvidenceJSON, d.ID)
	return err
}

func (t *storeTx) DeleteDeposit(id uint64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM deposits WHERE id = ?`, id)
	return err
}

func (t *storeTx) Route(id uint64) (*model.Route, error) {
	var r model.Route
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, name, status, price_mode, price_cents, deposit_required,
		        deposit_type, deposit_value, deposit_ttl_hours, created_at
		 FROM routes WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.Status, &r.PriceMode, &r.PriceCents, &r.DepositRequired,
		&r.DepositType, &r.DepositValue, &r.DepositTTLHours, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT id, route_id, sequence, experience_id FROM route_stops
		 WHERE route_id = ? ORDER BY sequence`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var stop model.RouteStop
		if err := rows.Scan(&stop.ID, &stop.RouteID, &stop.Sequence, &stop.ExperienceID); err != nil {
			return nil, err
		}
		r.Stops = append(r.Stops, stop)
	}
	return &r, rows.Err()
}

func (t *storeTx) BankAccountForRoute(routeID uint64) (*model.BankAccount, error) {
	var a model.BankAccount
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT id, route_id, holder, bank, account_ref, iban
		 FROM bank_accounts WHERE route_id = ?`, routeID,
	).Scan(&a.ID, &a.RouteID, &a.Holder, &a.Bank, &a.AccountRef, &a.IBAN)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

const routeBookingCols = `id, reference, contact_id, route_id, party_size, total_price_cents,
	deposit_required, deposit_amount_cents, expires_at, status, created_at, updated_at`

func scanRouteBooking(row *sql.Row) (*model.RouteBooking, error) {
	var rb model.RouteBooking
	err := row.Scan(
		&rb.ID, &rb.Reference, &rb.ContactID, &rb.RouteID, &rb.PartySize, &rb.TotalPriceCents,
		&rb.DepositRequired, &rb.DepositAmountCents, &rb.ExpiresAt, &rb.Status,
		&rb.CreatedAt, &rb.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &rb, nil
}

func (t *storeTx) RouteBooking(id uint64) (*model.RouteBooking, error) {
	return scanRouteBooking(t.tx.QueryRowContext(t.ctx,
		`SELECT `+routeBookingCols+` FROM route_bookings WHERE id = ?`, id))
}

func (t *storeTx) RouteBookingForUpdate(id uint64) (*model.RouteBooking, error) {
	return scanRouteBooking(t.tx.QueryRowContext(t.ctx,
		`SELECT `+routeBookingCols+` FROM route_bookings WHERE id = ? FOR UPDATE`, id))
}

func (t *storeTx) InsertRouteBooking(rb *model.RouteBooking) error {
	res, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO route_bookings (reference, contact_id, route_id, party_size,
		 total_price_cents, deposit_required, deposit_amount_cents, expires_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rb.Reference, rb.ContactID, rb.RouteID, rb.PartySize,
		rb.TotalPriceCents, rb.DepositRequired, rb.DepositAmountCents, rb.ExpiresAt, rb.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rb.ID = uint64(id)
	return nil
}

func (t *storeTx) SetRouteBookingStatus(id uint64, status model.RouteBookingStatus) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE route_bookings SET status = ? WHERE id = ?`, status, id)
	return err
}

func (t *storeTx) UpdateRouteBookingPrice(id uint64, totalCents, depositCents int64) error {
	_, err := t.tx.ExecContext(t.ctx,
		`UPDATE route_bookings SET total_price_cents = ?, deposit_amount_cents = ? WHERE id = ?`,
		totalCents, depositCents, id)
	return err
}

func (t *storeTx) DeleteRouteBooking(id uint64) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM route_bookings WHERE id = ?`, id)
	return err
}

func (t *storeTx) ChildReservations(routeBookingID uint64) ([]*model.Reservation, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE route_booking_id = ? ORDER BY stop_sequence`, routeBookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Reservation
	for rows.Next() {
		var r model.Reservation
		var rbID sql.NullInt64
		if err := rows.Scan(
			&r.ID, &r.ContactID, &r.ExperienceID, &r.SlotID, &rbID, &r.StopSequence,
			&r.PartySize, &r.PriceCents, &r.DepositRequired, &r.DepositAmountCents,
			&r.ExpiresAt, &r.Status, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if rbID.Valid {
			id := uint64(rbID.Int64)
			r.RouteBookingID = &id
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
