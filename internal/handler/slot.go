package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
)

// SlotHandler is the staff surface for managing slots.
type SlotHandler struct {
	Engine *booking.Engine
}

func NewSlotHandler(e *booking.Engine) *SlotHandler {
	return &SlotHandler{Engine: e}
}

type createSlotReq struct {
	ExperienceID uint64    `json:"experience_id"`
	StartsAt     time.Time `json:"starts_at"`
	MaxCapacity  int       `json:"max_capacity"`
}

// Create opens a new bookable slot on an experience.
func (h *SlotHandler) Create(c echo.Context) error {
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	slot, err := h.Engine.CreateSlot(c.Request().Context(), principal(c), booking.CreateSlotInput{
		ExperienceID: req.ExperienceID,
		StartsAt:     req.StartsAt.UTC(),
		MaxCapacity:  req.MaxCapacity,
	})
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusCreated, newSlotView(slot))
}

// Block takes a slot off sale. The override sticks until Unblock.
func (h *SlotHandler) Block(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	slot, err := h.Engine.BlockSlot(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newSlotView(slot))
}

// Unblock lifts the manual override and recomputes the slot status
// from its live capacity.
func (h *SlotHandler) Unblock(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	slot, err := h.Engine.UnblockSlot(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newSlotView(slot))
}
