package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

func TestCheckPolicy(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	policy := &model.BookingPolicy{
		MinHoursBeforeBooking:  48,
		ModifyUntilHoursBefore: 24,
		CancelUntilHoursBefore: 0, // unrestricted
	}

	cases := []struct {
		name      string
		policy    *model.BookingPolicy
		slotStart time.Time
		action    PolicyAction
		allowed   bool
	}{
		{"nil policy allows everything", nil, now.Add(time.Minute), PolicyBook, true},
		{"book well outside the window", policy, now.Add(72 * time.Hour), PolicyBook, true},
		{"book exactly on the boundary", policy, now.Add(48 * time.Hour), PolicyBook, true},
		{"book just inside the window", policy, now.Add(47 * time.Hour), PolicyBook, false},
		{"modify outside the window", policy, now.Add(25 * time.Hour), PolicyModify, true},
		{"modify inside the window", policy, now.Add(23 * time.Hour), PolicyModify, false},
		{"zero window is unrestricted", policy, now.Add(time.Minute), PolicyCancel, true},
		{"slot already started", policy, now.Add(-time.Hour), PolicyBook, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckPolicy(tc.policy, tc.slotStart, tc.action, now)
			if tc.allowed && err != nil {
				t.Errorf("CheckPolicy = %v, want nil", err)
			}
			if !tc.allowed {
				var perr *PolicyViolationError
				if !errors.As(err, &perr) {
					t.Errorf("CheckPolicy = %v, want PolicyViolationError", err)
				}
			}
		})
	}
}
