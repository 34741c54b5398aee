package booking

import (
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// PolicyAction names the booking action a policy window gates.
type PolicyAction string

const (
	PolicyBook   PolicyAction = "book"
	PolicyModify PolicyAction = "modify"
	PolicyCancel PolicyAction = "cancel"
)

// CheckPolicy enforces the experience's time windows against the slot
// start. A nil policy allows everything, as does a zero window for
// the given action. Hours remaining are fractional; an action exactly
// on the boundary is allowed.
func CheckPolicy(policy *model.BookingPolicy, slotStart time.Time, action PolicyAction, now time.Time) error {
	if policy == nil {
		return nil
	}
	var minHours int
	switch action {
	case PolicyBook:
		minHours = policy.MinHoursBeforeBooking
	case PolicyModify:
		minHours = policy.ModifyUntilHoursBefore
	case PolicyCancel:
		minHours = policy.CancelUntilHoursBefore
	}
	if minHours <= 0 {
		return nil
	}
	hoursLeft := slotStart.Sub(now).Hours()
	if hoursLeft < float64(minHours) {
		return &PolicyViolationError{Action: action, MinHours: minHours, HoursLeft: hoursLeft}
	}
	return nil
}
