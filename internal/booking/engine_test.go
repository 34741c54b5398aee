package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

var baseTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock drives the engine's notion of now in tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recorder captures audit and notification calls.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Log(_ context.Context, ref EntityRef, event, actor string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Notify(_ context.Context, ref EntityRef, event string, _ map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "notify:"+event)
	return nil
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

type testEnv struct {
	store    *memStore
	eng      *Engine
	clock    *fakeClock
	recorder *recorder

	staff    Principal
	customer Principal
	contact  uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	clock := &fakeClock{t: baseTime}
	rec := &recorder{}
	eng := NewEngine(store, StandardPricer{}, rec, rec, nil)
	eng.now = clock.Now

	contact := &model.Contact{Name: "Dana Reyes", Email: "dana@example.com", EmailOptIn: true}
	store.mu.Lock()
	contact.ID = store.id()
	store.contacts[contact.ID] = contact
	store.mu.Unlock()

	return &testEnv{
		store:    store,
		eng:      eng,
		clock:    clock,
		recorder: rec,
		staff:    Principal{UserID: 1, Role: RoleStaff},
		customer: Principal{UserID: 2, ContactID: contact.ID, Role: RoleCustomer},
		contact:  contact.ID,
	}
}

// seedExperience inserts an experience and returns it. Mutate the
// returned struct before seeding slots to change pricing or deposit
// configuration via the opts callback.
func (env *testEnv) seedExperience(opts func(*model.Experience)) *model.Experience {
	exp := &model.Experience{
		Name:                 "Old Town Food Walk",
		IndividualPriceCents: 5000,
		IsActive:             true,
	}
	if opts != nil {
		opts(exp)
	}
	env.store.mu.Lock()
	exp.ID = env.store.id()
	env.store.experiences[exp.ID] = exp
	env.store.mu.Unlock()
	return exp
}

func (env *testEnv) seedPolicy(experienceID uint64, book, modify, cancel int) {
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	id := env.store.id()
	env.store.policies[experienceID] = &model.BookingPolicy{
		ID:                     id,
		ExperienceID:           experienceID,
		MinHoursBeforeBooking:  book,
		ModifyUntilHoursBefore: modify,
		CancelUntilHoursBefore: cancel,
	}
}

// seedSlot opens a slot 48 hours out by default.
func (env *testEnv) seedSlot(experienceID uint64, capacity int, startsIn time.Duration) *model.Slot {
	if startsIn == 0 {
		startsIn = 48 * time.Hour
	}
	slot := &model.Slot{
		ExperienceID: experienceID,
		StartsAt:     baseTime.Add(startsIn),
		MaxCapacity:  capacity,
		Status:       model.SlotOpen,
	}
	env.store.mu.Lock()
	slot.ID = env.store.id()
	env.store.slots[slot.ID] = slot
	env.store.mu.Unlock()
	return slot
}

func (env *testEnv) seedRoute(opts func(*model.Route), stopExperiences ...uint64) *model.Route {
	route := &model.Route{
		Name:      "Harbor Day Route",
		Status:    model.RouteOnline,
		PriceMode: model.PriceModeSum,
	}
	for i, expID := range stopExperiences {
		route.Stops = append(route.Stops, model.RouteStop{Sequence: i, ExperienceID: expID})
	}
	if opts != nil {
		opts(route)
	}
	env.store.mu.Lock()
	route.ID = env.store.id()
	for i := range route.Stops {
		route.Stops[i].ID = env.store.id()
		route.Stops[i].RouteID = route.ID
	}
	env.store.routes[route.ID] = route
	env.store.mu.Unlock()
	return route
}

func (env *testEnv) reservation(t *testing.T, id uint64) *model.Reservation {
	t.Helper()
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	r, ok := env.store.reservations[id]
	if !ok {
		t.Fatalf("reservation %d not found", id)
	}
	c := *r
	return &c
}

func (env *testEnv) slot(t *testing.T, id uint64) *model.Slot {
	t.Helper()
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	s, ok := env.store.slots[id]
	if !ok {
		t.Fatalf("slot %d not found", id)
	}
	c := *s
	return &c
}

func (env *testEnv) deposit(t *testing.T, owner model.DepositOwner) *model.Deposit {
	t.Helper()
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	for _, d := range env.store.deposits {
		if d.Owner == owner {
			c := *d
			return &c
		}
	}
	t.Fatalf("no deposit for %s %d", owner.Kind, owner.ID)
	return nil
}

func (env *testEnv) routeBooking(t *testing.T, id uint64) *model.RouteBooking {
	t.Helper()
	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	rb, ok := env.store.routeBookings[id]
	if !ok {
		t.Fatalf("route booking %d not found", id)
	}
	c := *rb
	return &c
}
