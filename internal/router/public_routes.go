package router

import (
	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/handler"
)

// RegisterPublic registers the unauthenticated browse surface:
// experiences, their upcoming slots, and live slot availability.
// The optional cache middleware (Redis-backed) is applied to the
// whole group; pass nil to serve uncached.
func RegisterPublic(e *echo.Echo, h *handler.CatalogHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("/experiences", h.ListExperiences)
	g.GET("/experiences/:id", h.GetExperience)
	g.GET("/experiences/:id/slots", h.ListSlots)
	g.GET("/slots/:id/availability", h.SlotAvailability)
}
