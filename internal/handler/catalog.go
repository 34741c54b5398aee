package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/booking"
	"github.com/localtours/booking-backend/internal/repository"
)

// CatalogHandler serves the public browse surface: experiences and
// their upcoming slots. These endpoints sit behind the response cache.
type CatalogHandler struct {
	Experiences *repository.ExperienceRepo
	Slots       *repository.SlotRepo
	Engine      *booking.Engine
}

func NewCatalogHandler(exp *repository.ExperienceRepo, slots *repository.SlotRepo, e *booking.Engine) *CatalogHandler {
	return &CatalogHandler{Experiences: exp, Slots: slots, Engine: e}
}

// ListExperiences returns all bookable experiences.
func (h *CatalogHandler) ListExperiences(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exps, err := h.Experiences.ListActive(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]experienceView, 0, len(exps))
	for i := range exps {
		out = append(out, newExperienceView(&exps[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"experiences": out})
}

// GetExperience returns one experience.
func (h *CatalogHandler) GetExperience(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	exp, err := h.Experiences.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, newExperienceView(exp))
}

// ListSlots returns the upcoming slots of an experience with live
// availability.
func (h *CatalogHandler) ListSlots(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	slots, err := h.Slots.ListByExperience(ctx, id, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": slots})
}

// SlotAvailability returns the live availability of one slot. The
// reserved count is recomputed from reservations, not read from the
// persisted column.
func (h *CatalogHandler) SlotAvailability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	av, err := h.Engine.GetSlotAvailability(c.Request().Context(), id)
	if err != nil {
		return engineErr(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
