package model

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Overlaps reports whether iv and o share at least one instant.  Touching
// endpoints (iv.End == o.Start) do not overlap.
func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Equal reports whether both bounds denote the same instants.
func (iv Interval) Equal(o Interval) bool {
	return iv.Start.Equal(o.Start) && iv.End.Equal(o.End)
}

// DetailStatus is the lifecycle state of a booking detail.
type DetailStatus string

const (
	DetailActive    DetailStatus = "ACTIVE"
	DetailCancelled DetailStatus = "CANCELLED"
)

// BookingDetail holds one interval against one service instance.  It is
// immutable once committed except for cancellation.
//
// Fields:
//
//	ID          – uuid of the detail; the public reservation id.
//	BookingID   – owning booking.
//	ServiceID   – booked service instance.
//	Interval    – committed [start, end).
//	Status      – ACTIVE or CANCELLED.
//	CancelledAt – set when the detail is cancelled.
type BookingDetail struct {
	ID          string       `json:"id"`                     // booking_details.id
	BookingID   string       `json:"booking_id"`             // booking_details.booking_id
	ServiceID   uint64       `json:"service_id"`             // booking_details.service_id
	Interval    Interval     `json:"interval"`               // booking_details.starts_at / ends_at
	Status      DetailStatus `json:"status"`                 // booking_details.status
	CancelledAt *time.Time   `json:"cancelled_at,omitempty"` // booking_details.cancelled_at (nullable)
}

// Active reports whether the detail still holds its interval.
func (d BookingDetail) Active() bool { return d.Status == DetailActive }

// Booking groups the details a user submitted together.
//
// Fields:
//
//	ID        – uuid of the booking.
//	OwnerID   – user the booking belongs to.
//	CreatedAt – commit timestamp.
//	Details   – details ordered as submitted.
type Booking struct {
	ID        string          `json:"id"`         // bookings.id
	OwnerID   uint64          `json:"owner_id"`   // bookings.owner_id
	CreatedAt time.Time       `json:"created_at"` // bookings.created_at
	Details   []BookingDetail `json:"details"`
}
