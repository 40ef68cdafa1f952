package reservation

import (
	"context"
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Catalog is the read-only view of the external resource catalog.  Get
// returns an error wrapping ErrNotFound for unknown ids.
type Catalog interface {
	Get(ctx context.Context, id uint64) (model.ServiceInstance, error)
	List(ctx context.Context, t model.ServiceType) ([]model.ServiceInstance, error)
}

// BookingStore persists bookings.  Each write is expected to be atomic on
// its own (one row or one transaction).  Lookups return an error wrapping
// ErrNotFound for unknown ids.  Stores that can detect an overlapping row
// themselves return ErrOverlap from CreateBooking.
type BookingStore interface {
	CreateBooking(ctx context.Context, b model.Booking) error
	CancelDetail(ctx context.Context, detailID string, at time.Time) error
	GetDetail(ctx context.Context, detailID string) (model.BookingDetail, uint64, error) // detail and booking owner
	ActiveDetails(ctx context.Context, serviceID uint64) ([]model.BookingDetail, error)
	ListBookings(ctx context.Context, ownerID uint64) ([]model.Booking, error)
}

// EventStore persists events and their enrollments.  SaveEnrollment and
// DeleteEnrollment write the enrollment row and the event's seat counter in
// one transaction; prevRemaining is the counter value the ledger based its
// decision on, and stores that can compare-and-set must return
// ErrLedgerConflict when the stored value differs.
type EventStore interface {
	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	ListEnrollments(ctx context.Context, eventID uint64) ([]model.Enrollment, error)
	SaveEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error
	DeleteEnrollment(ctx context.Context, en model.Enrollment, prevRemaining, newRemaining int) error
}
