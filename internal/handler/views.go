package handler

import (
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// Wire representations of the domain entities. The model types carry
// no JSON tags on purpose; what goes over the wire is decided here.

type reservationView struct {
	ID                 uint64                  `json:"id"`
	ContactID          uint64                  `json:"contact_id"`
	ExperienceID       uint64                  `json:"experience_id"`
	SlotID             uint64                  `json:"slot_id"`
	RouteBookingID     *uint64                 `json:"route_booking_id,omitempty"`
	StopSequence       int                     `json:"stop_sequence,omitempty"`
	PartySize          int                     `json:"party_size"`
	PriceCents         int64                   `json:"price_cents"`
	DepositRequired    bool                    `json:"deposit_required"`
	DepositAmountCents int64                   `json:"deposit_amount_cents,omitempty"`
	ExpiresAt          time.Time               `json:"expires_at"`
	Status             model.ReservationStatus `json:"status"`
	CreatedAt          time.Time               `json:"created_at"`
}

func newReservationView(r *model.Reservation) reservationView {
	return reservationView{
		ID:                 r.ID,
		ContactID:          r.ContactID,
		ExperienceID:       r.ExperienceID,
		SlotID:             r.SlotID,
		RouteBookingID:     r.RouteBookingID,
		StopSequence:       r.StopSequence,
		PartySize:          r.PartySize,
		PriceCents:         r.PriceCents,
		DepositRequired:    r.DepositRequired,
		DepositAmountCents: r.DepositAmountCents,
		ExpiresAt:          r.ExpiresAt,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
	}
}

type depositView struct {
	ID                  uint64                   `json:"id"`
	OwnerKind           model.OwnerKind          `json:"owner_kind"`
	OwnerID             uint64                   `json:"owner_id"`
	AmountRequiredCents int64                    `json:"amount_required_cents"`
	AmountPaidCents     int64                    `json:"amount_paid_cents"`
	RemainingCents      int64                    `json:"remaining_cents"`
	DueAt               time.Time                `json:"due_at"`
	PaidAt              *time.Time               `json:"paid_at,omitempty"`
	Status              model.DepositStatus      `json:"status"`
	VerificationMethod  model.VerificationMethod `json:"verification_method,omitempty"`
}

func newDepositView(d *model.Deposit) depositView {
	return depositView{
		ID:                  d.ID,
		OwnerKind:           d.Owner.Kind,
		OwnerID:             d.Owner.ID,
		AmountRequiredCents: d.AmountRequiredCents,
		AmountPaidCents:     d.AmountPaidCents,
		RemainingCents:      d.RemainingCents(),
		DueAt:               d.DueAt,
		PaidAt:              d.PaidAt,
		Status:              d.Status,
		VerificationMethod:  d.VerificationMethod,
	}
}

type routeBookingView struct {
	ID                 uint64                   `json:"id"`
	Reference          string                   `json:"reference"`
	ContactID          uint64                   `json:"contact_id"`
	RouteID            uint64                   `json:"route_id"`
	PartySize          int                      `json:"party_size"`
	TotalPriceCents    int64                    `json:"total_price_cents"`
	DepositRequired    bool                     `json:"deposit_required"`
	DepositAmountCents int64                    `json:"deposit_amount_cents,omitempty"`
	ExpiresAt          time.Time                `json:"expires_at"`
	Status             model.RouteBookingStatus `json:"status"`
	CreatedAt          time.Time                `json:"created_at"`
}

func newRouteBookingView(rb *model.RouteBooking) routeBookingView {
	return routeBookingView{
		ID:                 rb.ID,
		Reference:          rb.Reference,
		ContactID:          rb.ContactID,
		RouteID:            rb.RouteID,
		PartySize:          rb.PartySize,
		TotalPriceCents:    rb.TotalPriceCents,
		DepositRequired:    rb.DepositRequired,
		DepositAmountCents: rb.DepositAmountCents,
		ExpiresAt:          rb.ExpiresAt,
		Status:             rb.Status,
		CreatedAt:          rb.CreatedAt,
	}
}

type slotView struct {
	ID                uint64           `json:"id"`
	ExperienceID      uint64           `json:"experience_id"`
	StartsAt          time.Time        `json:"starts_at"`
	MaxCapacity       int              `json:"max_capacity"`
	ReservedCapacity  int              `json:"reserved_capacity"`
	AvailableCapacity int              `json:"available_capacity"`
	Status            model.SlotStatus `json:"status"`
}

func newSlotView(s *model.Slot) slotView {
	return slotView{
		ID:                s.ID,
		ExperienceID:      s.ExperienceID,
		StartsAt:          s.StartsAt,
		MaxCapacity:       s.MaxCapacity,
		ReservedCapacity:  s.ReservedCapacity,
		AvailableCapacity: s.AvailableCapacity(),
		Status:            s.Status,
	}
}

type experienceView struct {
	ID                   uint64 `json:"id"`
	Name                 string `json:"name"`
	IndividualPriceCents int64  `json:"individual_price_cents"`
	DepositRequired      bool   `json:"deposit_required"`
	IsActive             bool   `json:"is_active"`
}

func newExperienceView(e *model.Experience) experienceView {
	return experienceView{
		ID:                   e.ID,
		Name:                 e.Name,
		IndividualPriceCents: e.IndividualPriceCents,
		DepositRequired:      e.DepositRequired,
		IsActive:             e.IsActive,
	}
}
