package router

import (
	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/handler"
	"github.com/localtours/booking-backend/internal/middleware"
)

// RegisterStaff registers STAFF-only endpoints under /v1: reservation
// state overrides, deposit adjustments, slot management, manual sweep
// triggers and the audit trail.
func RegisterStaff(e *echo.Echo, res *handler.ReservationHandler, dep *handler.DepositHandler, slot *handler.SlotHandler, ops *handler.OpsHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(booking.RoleStaff),
	)

	// ---- Reservation transitions ----
	g.POST("/reservations/:id/confirm", res.Confirm)
	g.POST("/reservations/:id/reject", res.Reject)
	g.POST("/reservations/:id/checkin", res.StaffCheckIn)
	g.POST("/reservations/:id/complete", res.Complete)
	g.POST("/reservations/:id/no-show", res.NoShow)

	// ---- Deposits ----
	g.POST("/deposits/:id/adjust", dep.Adjust)

	// ---- Slots ----
	g.POST("/slots", slot.Create)
	g.POST("/slots/:id/block", slot.Block)
	g.POST("/slots/:id/unblock", slot.Unblock)

	// ---- Operations ----
	g.POST("/sweeps/expiration", ops.RunExpirationSweep)
	g.POST("/sweeps/overdue-deposits", ops.RunOverdueDepositSweep)
	g.POST("/sweeps/no-shows", ops.RunNoShowSweep)
	g.GET("/events", ops.ListEvents)
}
