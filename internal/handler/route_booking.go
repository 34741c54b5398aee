package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
)

// RouteBookingHandler exposes multi-stop route bookings over HTTP.
type RouteBookingHandler struct {
	Engine *booking.Engine
}

func NewRouteBookingHandler(e *booking.Engine) *RouteBookingHandler {
	return &RouteBookingHandler{Engine: e}
}

type createRouteBookingReq struct {
	ContactID uint64            `json:"contact_id"`
	RouteID   uint64            `json:"route_id"`
	PartySize int               `json:"party_size"`
	SlotIDs   map[string]uint64 `json:"slot_ids"` // stop sequence -> slot id
}

// parseSlotAssignments converts the wire slot_ids object into the
// stop-sequence keyed map the engine expects. Sequences start at 0.
func parseSlotAssignments(raw map[string]uint64) (map[int]uint64, error) {
	out := make(map[int]uint64, len(raw))
	for k, v := range raw {
		seq, err := strconv.Atoi(k)
		if err != nil || seq < 0 {
			return nil, errors.New("slot_ids keys must be stop sequences")
		}
		out[seq] = v
	}
	return out, nil
}

// Create books a whole route: one child reservation per stop, all of
// them or none. The slot_ids object is keyed by stop sequence.
func (h *RouteBookingHandler) Create(c echo.Context) error {
	var req createRouteBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p := principal(c)
	if !p.IsStaff() {
		req.ContactID = p.ContactID
	}
	slotIDs, err := parseSlotAssignments(req.SlotIDs)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rb, err := h.Engine.CreateRouteBooking(c.Request().Context(), p, booking.CreateRouteBookingInput{
		ContactID: req.ContactID,
		RouteID:   req.RouteID,
		PartySize: req.PartySize,
		SlotIDs:   slotIDs,
	})
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusCreated, newRouteBookingView(rb))
}

// Get returns a route booking; the derived status is refreshed on
// every read.
func (h *RouteBookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rb, err := h.Engine.GetRouteBooking(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newRouteBookingView(rb))
}

// Summary returns the booking plus its itinerary ordered by slot time.
func (h *RouteBookingHandler) Summary(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	sum, err := h.Engine.GetRouteBookingSummary(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking": newRouteBookingView(sum.Booking),
		"stops":   sum.Stops,
	})
}

type addStopsReq struct {
	Stops []struct {
		ExperienceID uint64 `json:"experience_id"`
		SlotID       uint64 `json:"slot_id"`
	} `json:"stops"`
}

// AddStops extends a PENDING route booking with more stops.
func (h *RouteBookingHandler) AddStops(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	var req addStopsReq
	if err := c.Bind(&req); err != nil || len(req.Stops) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "stops required"})
	}
	stops := make([]booking.AddStopInput, 0, len(req.Stops))
	for _, s := range req.Stops {
		stops = append(stops, booking.AddStopInput{ExperienceID: s.ExperienceID, SlotID: s.SlotID})
	}
	rb, err := h.Engine.AddStops(c.Request().Context(), principal(c), id, stops)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newRouteBookingView(rb))
}

// Cancel ends a route booking and every live child along with it.
func (h *RouteBookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rb, err := h.Engine.CancelRouteBooking(c.Request().Context(), principal(c), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, newRouteBookingView(rb))
}
