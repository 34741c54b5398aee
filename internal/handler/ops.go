package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/repository"
)

// OpsHandler is the staff operations surface: manual sweep triggers
// and the audit trail. The scheduler runs the same sweeps on a timer;
// these endpoints exist for support work and for forcing a pass after
// a config change.
type OpsHandler struct {
	Engine *booking.Engine
	Events *repository.EventRepo
}

func NewOpsHandler(e *booking.Engine, ev *repository.EventRepo) *OpsHandler {
	return &OpsHandler{Engine: e, Events: ev}
}

// RunExpirationSweep expires lapsed pending holds now.
func (h *OpsHandler) RunExpirationSweep(c echo.Context) error {
	return h.runSweep(c, h.Engine.RunExpirationSweep)
}

// RunOverdueDepositSweep flips overdue deposits and cancels their
// owners now.
func (h *OpsHandler) RunOverdueDepositSweep(c echo.Context) error {
	return h.runSweep(c, h.Engine.RunOverdueDepositSweep)
}

// RunNoShowSweep marks confirmed no-shows now.
func (h *OpsHandler) RunNoShowSweep(c echo.Context) error {
	return h.runSweep(c, h.Engine.RunNoShowSweep)
}

func (h *OpsHandler) runSweep(c echo.Context, sweep func(context.Context) (booking.SweepResult, error)) error {
	res, err := sweep(c.Request().Context())
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// ListEvents returns the audit trail of one entity, newest first,
// e.g. GET /v1/events?entity_kind=reservation&entity_id=7.
func (h *OpsHandler) ListEvents(c echo.Context) error {
	kind := c.QueryParam("entity_kind")
	switch kind {
	case booking.KindReservation, booking.KindRouteBooking, booking.KindDeposit, booking.KindSlot:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity_kind"})
	}
	entityID, ok := claimUint(c.QueryParam("entity_id"))
	if !ok || entityID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid entity_id"})
	}
	limit := 0
	if n, ok := claimUint(c.QueryParam("limit")); ok {
		limit = int(n)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.ListByEntity(ctx, kind, entityID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventView, 0, len(events))
	for _, ev := range events {
		out = append(out, eventView{
			ID:         ev.ID,
			EventType:  ev.EventType,
			EntityKind: ev.EntityKind,
			EntityID:   ev.EntityID,
			Actor:      ev.Actor,
			Detail:     json.RawMessage(ev.Detail),
			CreatedAt:  ev.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

type eventView struct {
	ID         uint64          `json:"id"`
	EventType  string          `json:"event_type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   uint64          `json:"entity_id"`
	Actor      string          `json:"actor"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
