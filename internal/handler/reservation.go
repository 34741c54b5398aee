package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/model"
	"github.com/localtours/booking-backend/internal/utils"
)

// ReservationHandler exposes the reservation lifecycle over HTTP.
type ReservationHandler struct {
	Engine  *booking.Engine
	CheckIn *utils.CheckInTokenIssuer
}

func NewReservationHandler(e *booking.Engine, ci *utils.CheckInTokenIssuer) *ReservationHandler {
	return &ReservationHandler{Engine: e, CheckIn: ci}
}

type createReservationReq struct {
	ContactID    uint64 `json:"contact_id"`
	ExperienceID uint64 `json:"experience_id"`
	SlotID       uint64 `json:"slot_id"`
	PartySize    int    `json:"party_size"`
}

// Create books a party onto a slot. Customers book for their own
// contact; the contact_id in the body is only honored for staff.
func (h *ReservationHandler) Create(c echo.Context) error {
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p := principal(c)
	if !p.IsStaff() {
		req.ContactID = p.ContactID
	}
	res, err := h.Engine.CreateReservation(c.Request().Context(), p, booking.CreateReservationInput{
		ContactID:    req.ContactID,
		ExperienceID: req.ExperienceID,
		SlotID:       req.SlotID,
		PartySize:    req.PartySize,
	})
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusCreated, newReservationView(res))
}

// Get returns one reservation; customers only see their own.
func (h *ReservationHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.Engine.GetReservation(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

type modifyReservationReq struct {
	SlotID    *uint64 `json:"slot_id"`
	PartySize *int    `json:"party_size"`
}

// Modify changes the slot and/or party size of a live reservation.
func (h *ReservationHandler) Modify(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req modifyReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SlotID == nil && req.PartySize == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to modify"})
	}
	res, err := h.Engine.ModifyReservation(c.Request().Context(), principal(c), id, booking.ModifyReservationInput{
		SlotID:    req.SlotID,
		PartySize: req.PartySize,
	})
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

// Cancel ends a reservation on behalf of its owner or staff.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.Engine.CancelReservation(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

// CheckInToken issues the short-lived token a customer presents at
// the meeting point. Owner or staff only; the engine enforces access
// through GetReservation.
func (h *ReservationHandler) CheckInToken(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.Engine.GetReservation(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	token, err := h.CheckIn.Issue(res.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservation_id": res.ID, "token": token})
}

type checkInTokenReq struct {
	Token string `json:"token"`
}

// RedeemCheckIn validates a presented check-in token and marks the
// reservation CHECKED_IN.
func (h *ReservationHandler) RedeemCheckIn(c echo.Context) error {
	var req checkInTokenReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token required"})
	}
	res, err := h.Engine.CheckInWithToken(c.Request().Context(), principal(c), req.Token)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}

// ----- staff transitions -----

// Confirm moves a PENDING reservation to CONFIRMED.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.staffTransition(c, h.Engine.ConfirmReservation)
}

// Reject moves a PENDING reservation to REJECTED.
func (h *ReservationHandler) Reject(c echo.Context) error {
	return h.staffTransition(c, h.Engine.RejectReservation)
}

// StaffCheckIn marks a CONFIRMED reservation as arrived.
func (h *ReservationHandler) StaffCheckIn(c echo.Context) error {
	return h.staffTransition(c, h.Engine.CheckInReservation)
}

// Complete closes out a CHECKED_IN reservation.
func (h *ReservationHandler) Complete(c echo.Context) error {
	return h.staffTransition(c, h.Engine.CompleteReservation)
}

// NoShow marks a reservation whose party never arrived.
func (h *ReservationHandler) NoShow(c echo.Context) error {
	return h.staffTransition(c, h.Engine.MarkNoShow)
}

func (h *ReservationHandler) staffTransition(c echo.Context, op func(context.Context, booking.Principal, uint64) (*model.Reservation, error)) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := op(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newReservationView(res))
}
