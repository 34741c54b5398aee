package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/model"
)

// DepositHandler exposes the deposit ledger over HTTP.
type DepositHandler struct {
	Engine *booking.Engine
}

func NewDepositHandler(e *booking.Engine) *DepositHandler {
	return &DepositHandler{Engine: e}
}

// Get returns one deposit. Reading flips a lapsed PENDING deposit to
// OVERDUE before it is returned.
func (h *DepositHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	dep, err := h.Engine.GetDeposit(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newDepositView(dep))
}

// GetByOwner looks a deposit up by its owning entity, e.g.
// GET /v1/deposits?owner_kind=RESERVATION&owner_id=7.
func (h *DepositHandler) GetByOwner(c echo.Context) error {
	kind := model.OwnerKind(strings.ToUpper(c.QueryParam("owner_kind")))
	if kind != model.OwnerReservation && kind != model.OwnerRouteBooking {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "owner_kind must be RESERVATION or ROUTE_BOOKING"})
	}
	ownerID, ok := claimUint(c.QueryParam("owner_id"))
	if !ok || ownerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid owner_id"})
	}
	dep, err := h.Engine.GetDepositByOwner(c.Request().Context(), principal(c), model.DepositOwner{Kind: kind, ID: ownerID})
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newDepositView(dep))
}

type paymentReq struct {
	AmountCents int64           `json:"amount_cents"`
	Method      string          `json:"method"` // MANUAL | OCR
	Evidence    json.RawMessage `json:"evidence"`
}

// Pay records a (possibly partial) payment against a deposit.
func (h *DepositHandler) Pay(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req paymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	method := model.VerificationMethod(strings.ToUpper(req.Method))
	if method == "" {
		method = model.VerifyManual
	}
	if method != model.VerifyManual && method != model.VerifyOCR {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "method must be MANUAL or OCR"})
	}
	dep, err := h.Engine.RecordDepositPayment(c.Request().Context(), principal(c), id, req.AmountCents, method, string(req.Evidence))
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newDepositView(dep))
}

// Reconcile checks submitted payment evidence against the deposit and
// the route's bank account. Verdict only: the deposit is not touched.
func (h *DepositHandler) Reconcile(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil || len(raw) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "evidence body required"})
	}
	result, err := h.Engine.ReconcileDeposit(c.Request().Context(), principal(c), id, raw)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

type adjustReq struct {
	RefundCents int64  `json:"refund_cents"`
	Reason      string `json:"reason"`
}

// Adjust refunds part or all of a paid deposit. Staff only.
func (h *DepositHandler) Adjust(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req adjustReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	dep, err := h.Engine.AdjustDeposit(c.Request().Context(), principal(c), id, req.RefundCents, req.Reason)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newDepositView(dep))
}
