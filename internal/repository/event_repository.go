package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/model"
)

// EventRepo appends and reads the system_events audit trail. It
// implements booking.AuditLogger; the engine calls Log after commit
// and tolerates failures, so writes here never join a business
// transaction.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// Log appends one audit row. The payload is marshalled to JSON; a nil
// payload stores an empty object.
func (r *EventRepo) Log(ctx context.Context, ref booking.EntityRef, event, actor string, payload map[string]any) error {
	detail := []byte("{}")
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		detail = b
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO system_events (event_type, entity_kind, entity_id, actor, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		event, ref.Kind, ref.ID, actor, string(detail))
	return err
}

// ListByEntity returns the audit trail of one entity, newest first.
func (r *EventRepo) ListByEntity(ctx context.Context, entityKind string, entityID uint64, limit int) ([]model.SystemEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, event_type, entity_kind, entity_id, actor, detail, created_at
	           FROM system_events
	           WHERE entity_kind = ? AND entity_id = ?
	           ORDER BY id DESC LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, entityKind, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.SystemEvent, 0)
	for rows.Next() {
		var e model.SystemEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.EntityKind, &e.EntityID, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
