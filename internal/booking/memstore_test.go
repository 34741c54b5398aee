package booking

import (
	"context"
	"sync"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// memStore is an in-memory Store used by the engine tests. InTx takes
// a full snapshot of the state and restores it when fn fails, giving
// the same all-or-nothing semantics as a database transaction. All
// loads return copies so in-flight mutations only become visible
// through the Insert/Update methods.
type memStore struct {
	mu sync.Mutex

	experiences   map[uint64]*model.Experience
	policies      map[uint64]*model.BookingPolicy // keyed by experience id
	contacts      map[uint64]*model.Contact
	slots         map[uint64]*model.Slot
	reservations  map[uint64]*model.Reservation
	deposits      map[uint64]*model.Deposit
	routes        map[uint64]*model.Route
	accounts      map[uint64]*model.BankAccount // keyed by route id
	routeBookings map[uint64]*model.RouteBooking

	nextID uint64
}

func newMemStore() *memStore {
	return &memStore{
		experiences:   map[uint64]*model.Experience{},
		policies:      map[uint64]*model.BookingPolicy{},
		contacts:      map[uint64]*model.Contact{},
		slots:         map[uint64]*model.Slot{},
		reservations:  map[uint64]*model.Reservation{},
		deposits:      map[uint64]*model.Deposit{},
		routes:        map[uint64]*model.Route{},
		accounts:      map[uint64]*model.BankAccount{},
		routeBookings: map[uint64]*model.RouteBooking{},
	}
}

func (s *memStore) id() uint64 {
	s.nextID++
	return s.nextID
}

func copyMap[V any](m map[uint64]*V) map[uint64]*V {
	out := make(map[uint64]*V, len(m))
	for k, v := range m {
		c := *v
		out[k] = &c
	}
	return out
}

type memSnapshot struct {
	experiences   map[uint64]*model.Experience
	policies      map[uint64]*model.BookingPolicy
	contacts      map[uint64]*model.Contact
	slots         map[uint64]*model.Slot
	reservations  map[uint64]*model.Reservation
	deposits      map[uint64]*model.Deposit
	routes        map[uint64]*model.Route
	accounts      map[uint64]*model.BankAccount
	routeBookings map[uint64]*model.RouteBooking
	nextID        uint64
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		experiences:   copyMap(s.experiences),
		policies:      copyMap(s.policies),
		contacts:      copyMap(s.contacts),
		slots:         copyMap(s.slots),
		reservations:  copyMap(s.reservations),
		deposits:      copyMap(s.deposits),
		routes:        copyMap(s.routes),
		accounts:      copyMap(s.accounts),
		routeBookings: copyMap(s.routeBookings),
		nextID:        s.nextID,
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.experiences = snap.experiences
	s.policies = snap.policies
	s.contacts = snap.contacts
	s.slots = snap.slots
	s.reservations = snap.reservations
	s.deposits = snap.deposits
	s.routes = snap.routes
	s.accounts = snap.accounts
	s.routeBookings = snap.routeBookings
	s.nextID = snap.nextID
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) ExpiredPendingReservations(ctx context.Context, asOf time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, r := range s.reservations {
		if r.Status == model.ReservationPending && !asOf.Before(r.ExpiresAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) OverdueDeposits(ctx context.Context, asOf time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, d := range s.deposits {
		if d.Status == model.DepositPending && !asOf.Before(d.DueAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) NoShowCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, r := range s.reservations {
		if r.Status != model.ReservationConfirmed {
			continue
		}
		slot, ok := s.slots[r.SlotID]
		if ok && !cutoff.Before(slot.StartsAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// memTx operates directly on the store; InTx already holds the lock
// and the snapshot provides rollback.
type memTx struct {
	s *memStore
}

func get[V any](m map[uint64]*V, id uint64) (*V, error) {
	v, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *v
	return &c, nil
}

func (t *memTx) Experience(id uint64) (*model.Experience, error) {
	return get(t.s.experiences, id)
}

func (t *memTx) PolicyForExperience(experienceID uint64) (*model.BookingPolicy, error) {
	p, ok := t.s.policies[experienceID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (t *memTx) Contact(id uint64) (*model.Contact, error) {
	return get(t.s.contacts, id)
}

func (t *memTx) Slot(id uint64) (*model.Slot, error)          { return get(t.s.slots, id) }
func (t *memTx) SlotForUpdate(id uint64) (*model.Slot, error) { return get(t.s.slots, id) }

func (t *memTx) InsertSlot(s *model.Slot) error {
	s.ID = t.s.id()
	c := *s
	t.s.slots[s.ID] = &c
	return nil
}

func (t *memTx) ReservedCapacity(slotID uint64) (int, error) {
	total := 0
	for _, r := range t.s.reservations {
		if r.SlotID == slotID && r.Status.HoldsCapacity() {
			total += r.PartySize
		}
	}
	return total, nil
}

func (t *memTx) UpdateSlotCapacity(id uint64, reserved int, status model.SlotStatus) error {
	slot, ok := t.s.slots[id]
	if !ok {
		return ErrNotFound
	}
	slot.ReservedCapacity = reserved
	slot.Status = status
	return nil
}

func (t *memTx) Reservation(id uint64) (*model.Reservation, error) {
	return get(t.s.reservations, id)
}

func (t *memTx) ReservationForUpdate(id uint64) (*model.Reservation, error) {
	return get(t.s.reservations, id)
}

func (t *memTx) InsertReservation(r *model.Reservation) error {
	r.ID = t.s.id()
	c := *r
	t.s.reservations[r.ID] = &c
	return nil
}

func (t *memTx) SetReservationStatus(id uint64, from, to model.ReservationStatus) error {
	r, ok := t.s.reservations[id]
	if !ok {
		return ErrNotFound
	}
	if r.Status != from {
		return ErrConcurrencyConflict
	}
	r.Status = to
	return nil
}

func (t *memTx) UpdateReservationBooking(r *model.Reservation) error {
	cur, ok := t.s.reservations[r.ID]
	if !ok {
		return ErrNotFound
	}
	cur.SlotID = r.SlotID
	cur.PartySize = r.PartySize
	cur.PriceCents = r.PriceCents
	cur.DepositRequired = r.DepositRequired
	cur.DepositAmountCents = r.DepositAmountCents
	cur.ExpiresAt = r.ExpiresAt
	return nil
}

func (t *memTx) DeleteReservation(id uint64) error {
	if _, ok := t.s.reservations[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.reservations, id)
	return nil
}

func (t *memTx) Deposit(id uint64) (*model.Deposit, error)          { return get(t.s.deposits, id) }
func (t *memTx) DepositForUpdate(id uint64) (*model.Deposit, error) { return get(t.s.deposits, id) }

func (t *memTx) DepositByOwner(owner model.DepositOwner) (*model.Deposit, error) {
	for _, d := range t.s.deposits {
		if d.Owner == owner {
			c := *d
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memTx) InsertDeposit(d *model.Deposit) error {
	d.ID = t.s.id()
	c := *d
	t.s.deposits[d.ID] = &c
	return nil
}

func (t *memTx) UpdateDeposit(d *model.Deposit) error {
	if _, ok := t.s.deposits[d.ID]; !ok {
		return ErrNotFound
	}
	c := *d
	t.s.deposits[d.ID] = &c
	return nil
}

func (t *memTx) DeleteDeposit(id uint64) error {
	if _, ok := t.s.deposits[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.deposits, id)
	return nil
}

func (t *memTx) Route(id uint64) (*model.Route, error) {
	r, ok := t.s.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *r
	c.Stops = append([]model.RouteStop(nil), r.Stops...)
	return &c, nil
}

func (t *memTx) BankAccountForRoute(routeID uint64) (*model.BankAccount, error) {
	a, ok := t.s.accounts[routeID]
	if !ok {
		return nil, nil
	}
	c := *a
	return &c, nil
}

func (t *memTx) RouteBooking(id uint64) (*model.RouteBooking, error) {
	return get(t.s.routeBookings, id)
}

func (t *memTx) RouteBookingForUpdate(id uint64) (*model.RouteBooking, error) {
	return get(t.s.routeBookings, id)
}

func (t *memTx) InsertRouteBooking(rb *model.RouteBooking) error {
	rb.ID = t.s.id()
	c := *rb
	t.s.routeBookings[rb.ID] = &c
	return nil
}

func (t *memTx) SetRouteBookingStatus(id uint64, status model.RouteBookingStatus) error {
	rb, ok := t.s.routeBookings[id]
	if !ok {
		return ErrNotFound
	}
	rb.Status = status
	return nil
}

func (t *memTx) UpdateRouteBookingPrice(id uint64, totalCents, depositCents int64) error {
	rb, ok := t.s.routeBookings[id]
	if !ok {
		return ErrNotFound
	}
	rb.TotalPriceCents = totalCents
	rb.DepositAmountCents = depositCents
	return nil
}

func (t *memTx) DeleteRouteBooking(id uint64) error {
	if _, ok := t.s.routeBookings[id]; !ok {
		return ErrNotFound
	}
	delete(t.s.routeBookings, id)
	return nil
}

func (t *memTx) ChildReservations(routeBookingID uint64) ([]*model.Reservation, error) {
	var out []*model.Reservation
	for _, r := range t.s.reservations {
		if r.RouteBookingID != nil && *r.RouteBookingID == routeBookingID {
			c := *r
			out = append(out, &c)
		}
	}
	// deterministic order for the callers that iterate
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].StopSequence < out[i].StopSequence {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}
