// Package handler defines the HTTP handlers of the booking backend.
// Handlers parse and validate the wire format, build a principal from
// the JWT claims, call into the booking engine and translate engine
// errors to HTTP status codes. No business rules live here.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
)

// principal builds the acting principal from the claims JWTAuth put
// in the context. Numeric claims arrive as float64 after JSON decode.
func principal(c echo.Context) booking.Principal {
	p := booking.Principal{}
	if uid, ok := claimUint(c.Get("user_id")); ok {
		p.UserID = uid
	}
	if role, ok := c.Get("role").(string); ok {
		p.Role = role
	}
	if cid, ok := claimUint(c.Get("contact_id")); ok {
		p.ContactID = cid
	}
	return p
}

func claimUint(v any) (uint64, bool) {
	switch t := v.(type) {
	case uint64:
		return t, true
	case int:
		return uint64(t), t >= 0
	case int64:
		return uint64(t), t >= 0
	case float64:
		return uint64(t), t >= 0
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// pathID parses a numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// engineErr translates booking engine errors into JSON error
// responses. Validation problems are 400, missing entities 404,
// authorization 403, policy-window violations 422, and every flavor
// of state or capacity conflict 409.
func engineErr(c echo.Context, err error) error {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": ve.Error(), "field": ve.Field})
	}
	var pe *booking.PolicyViolationError
	if errors.As(err, &pe) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": pe.Error()})
	}
	var te *booking.StateTransitionError
	if errors.As(err, &te) {
		return c.JSON(http.StatusConflict, echo.Map{"error": te.Error()})
	}
	switch {
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, booking.ErrCapacityExceeded):
		return c.JSON(http.StatusConflict, echo.Map{"error": "not enough capacity"})
	case errors.Is(err, booking.ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflicting update, retry"})
	case errors.Is(err, booking.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid state for this operation"})
	}
	c.Logger().Errorf("internal error: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
