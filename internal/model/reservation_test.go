package model

import "testing"

func TestReservationTransitions(t *testing.T) {
	all := []ReservationStatus{
		ReservationPending, ReservationConfirmed, ReservationCheckedIn,
		ReservationCompleted, ReservationExpired, ReservationRejected,
		ReservationCancelled, ReservationNoShow,
	}
	allowed := map[[2]ReservationStatus]bool{
		{ReservationPending, ReservationConfirmed}:   true,
		{ReservationPending, ReservationExpired}:     true,
		{ReservationPending, ReservationRejected}:    true,
		{ReservationConfirmed, ReservationCheckedIn}: true,
		{ReservationConfirmed, ReservationCancelled}: true,
		{ReservationConfirmed, ReservationNoShow}:    true,
		{ReservationCheckedIn, ReservationCompleted}: true,
		{ReservationCheckedIn, ReservationNoShow}:    true,
	}
	// Every from/to pair, including self-loops, must agree with the
	// table above.
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]ReservationStatus{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestReservationTerminalStates(t *testing.T) {
	for st, want := range map[ReservationStatus]bool{
		ReservationPending:   false,
		ReservationConfirmed: false,
		ReservationCheckedIn: false,
		ReservationCompleted: true,
		ReservationExpired:   true,
		ReservationRejected:  true,
		ReservationCancelled: true,
		ReservationNoShow:    true,
	} {
		if got := st.IsTerminal(); got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", st, got, want)
		}
	}
}

func TestHoldsCapacity(t *testing.T) {
	for st, want := range map[ReservationStatus]bool{
		ReservationPending:   true,
		ReservationConfirmed: true,
		ReservationCheckedIn: false,
		ReservationCompleted: false,
		ReservationExpired:   false,
		ReservationRejected:  false,
		ReservationCancelled: false,
		ReservationNoShow:    false,
	} {
		if got := st.HoldsCapacity(); got != want {
			t.Errorf("HoldsCapacity(%s) = %v, want %v", st, got, want)
		}
	}
}
