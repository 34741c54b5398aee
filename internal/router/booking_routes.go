package router

import (
	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/handler"
	"github.com/localtours/booking-backend/internal/middleware"
)

// RegisterBooking registers the authenticated booking surface shared
// by customers and staff: reservations, route bookings and deposits.
// Ownership is enforced inside the engine, so both roles share the
// same routes. The optional limiter (Redis token bucket) throttles
// the mutating endpoints; pass nil to run unthrottled.
func RegisterBooking(e *echo.Echo, res *handler.ReservationHandler, rb *handler.RouteBookingHandler, dep *handler.DepositHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(booking.RoleCustomer, booking.RoleStaff),
	)
	if limiter == nil {
		limiter = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	// ---- Reservations ----
	g.POST("/reservations", res.Create, limiter)
	g.GET("/reservations/:id", res.Get)
	g.PATCH("/reservations/:id", res.Modify, limiter)
	g.DELETE("/reservations/:id", res.Cancel, limiter)
	g.GET("/reservations/:id/checkin-token", res.CheckInToken)
	g.POST("/checkin", res.RedeemCheckIn, limiter)

	// ---- Route bookings ----
	g.POST("/route-bookings", rb.Create, limiter)
	g.GET("/route-bookings/:id", rb.Get)
	g.GET("/route-bookings/:id/summary", rb.Summary)
	g.POST("/route-bookings/:id/stops", rb.AddStops, limiter)
	g.DELETE("/route-bookings/:id", rb.Cancel, limiter)

	// ---- Deposits ----
	g.GET("/deposits", dep.GetByOwner)
	g.GET("/deposits/:id", dep.Get)
	g.POST("/deposits/:id/payments", dep.Pay, limiter)
	g.POST("/deposits/:id/reconcile", dep.Reconcile)
}
