package booking

import (
	"context"
	"time"

	"github.com/localtours/booking-backend/internal/model"
)

// Store is the persistence boundary of the engine. The production
// implementation lives in internal/repository and is backed by MySQL;
// tests use an in-memory implementation. All business mutations run
// through InTx so that a status change, the slot capacity it affects
// and the owning route booking's derived status commit atomically.
type Store interface {
	// InTx runs fn inside one transaction. A non-nil error from fn
	// rolls everything back and is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// ExpiredPendingReservations returns ids of PENDING reservations
	// whose expiry is at or before asOf.
	ExpiredPendingReservations(ctx context.Context, asOf time.Time) ([]uint64, error)
	// OverdueDeposits returns ids of PENDING deposits whose due time
	// is at or before asOf.
	OverdueDeposits(ctx context.Context, asOf time.Time) ([]uint64, error)
	// NoShowCandidates returns ids of CONFIRMED reservations whose
	// slot started at or before cutoff.
	NoShowCandidates(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// Tx is the set of operations available inside a Store transaction.
// Load methods return ErrNotFound when the row does not exist; the
// ...ForUpdate variants additionally take the row lock that serializes
// concurrent writers.
type Tx interface {
	Experience(id uint64) (*model.Experience, error)
	// PolicyForExperience returns (nil, nil) when the experience has
	// no policy row; a nil policy means every action is allowed.
	PolicyForExperience(experienceID uint64) (*model.BookingPolicy, error)
	Contact(id uint64) (*model.Contact, error)

	Slot(id uint64) (*model.Slot, error)
	SlotForUpdate(id uint64) (*model.Slot, error)
	InsertSlot(s *model.Slot) error
	// ReservedCapacity sums party sizes over reservations currently
	// holding capacity on the slot.
	ReservedCapacity(slotID uint64) (int, error)
	UpdateSlotCapacity(id uint64, reserved int, status model.SlotStatus) error

	Reservation(id uint64) (*model.Reservation, error)
	ReservationForUpdate(id uint64) (*model.Reservation, error)
	InsertReservation(r *model.Reservation) error
	// SetReservationStatus is a compare-and-set: it fails with
	// ErrConcurrencyConflict when the row's status is no longer from.
	SetReservationStatus(id uint64, from, to model.ReservationStatus) error
	// UpdateReservationBooking rewrites the mutable booking fields of
	// a reservation (slot, party size, price, deposit amount, expiry).
	UpdateReservationBooking(r *model.Reservation) error
	DeleteReservation(id uint64) error

	Deposit(id uint64) (*model.Deposit, error)
	DepositForUpdate(id uint64) (*model.Deposit, error)
	// DepositByOwner returns the deposit attached to the given owner,
	// or ErrNotFound when the owner has none.
	DepositByOwner(owner model.DepositOwner) (*model.Deposit, error)
	InsertDeposit(d *model.Deposit) error
	UpdateDeposit(d *model.Deposit) error
	DeleteDeposit(id uint64) error

	Route(id uint64) (*model.Route, error)
	// BankAccountForRoute returns (nil, nil) when the route has no
	// configured account.
	BankAccountForRoute(routeID uint64) (*model.BankAccount, error)
	RouteBooking(id uint64) (*model.RouteBooking, error)
	RouteBookingForUpdate(id uint64) (*model.RouteBooking, error)
	InsertRouteBooking(rb *model.RouteBooking) error
	SetRouteBookingStatus(id uint64, status model.RouteBookingStatus) error
	// UpdateRouteBookingPrice rewrites the total price and deposit
	// amount after stops are added.
	UpdateRouteBookingPrice(id uint64, totalCents, depositCents int64) error
	DeleteRouteBooking(id uint64) error
	// ChildReservations returns the reservations belonging to a route
	// booking ordered by stop sequence.
	ChildReservations(routeBookingID uint64) ([]*model.Reservation, error)
}
