// Package queue carries domain events over RabbitMQ.  Handlers publish an
// event after each commit and the audit consumer appends one line per
// event to the audit log.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// AuditQueue is the durable queue every domain event is routed to.
const AuditQueue = "resort.audit"

// EventType names a domain event.
type EventType string

const (
	ReservationCreated   EventType = "reservation.created"
	ReservationCancelled EventType = "reservation.cancelled"
	EnrollmentUpdated    EventType = "enrollment.updated"
	EnrollmentCancelled  EventType = "enrollment.cancelled"
)

// DomainEvent is the message published after a commit.  It carries enough
// for consumers to log or notify without querying the primary store; which
// fields are set depends on Type.
type DomainEvent struct {
	Type           EventType `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	ActorID        uint64    `json:"actor_id"`
	BookingID      string    `json:"booking_id,omitempty"`
	DetailIDs      []string  `json:"detail_ids,omitempty"`
	ServiceIDs     []uint64  `json:"service_ids,omitempty"`
	EventID        uint64    `json:"event_id,omitempty"`
	UserID         uint64    `json:"user_id,omitempty"`
	Participants   int       `json:"participants,omitempty"`
	SeatsRemaining int       `json:"seats_remaining"`
}

// BookingCreated describes a committed booking.
func BookingCreated(b model.Booking, actorID uint64) DomainEvent {
	ev := DomainEvent{
		Type:       ReservationCreated,
		OccurredAt: b.CreatedAt.UTC(),
		ActorID:    actorID,
		BookingID:  b.ID,
		UserID:     b.OwnerID,
	}
	for _, d := range b.Details {
		ev.DetailIDs = append(ev.DetailIDs, d.ID)
		ev.ServiceIDs = append(ev.ServiceIDs, d.ServiceID)
	}
	return ev
}

// DetailCancelled describes a cancelled booking detail.
func DetailCancelled(d model.BookingDetail, ownerID, actorID uint64) DomainEvent {
	at := time.Now().UTC()
	if d.CancelledAt != nil {
		at = d.CancelledAt.UTC()
	}
	return DomainEvent{
		Type:       ReservationCancelled,
		OccurredAt: at,
		ActorID:    actorID,
		BookingID:  d.BookingID,
		DetailIDs:  []string{d.ID},
		ServiceIDs: []uint64{d.ServiceID},
		UserID:     ownerID,
	}
}

// EnrollmentChanged describes a created or resized enrollment.
func EnrollmentChanged(res reservation.EnrollResult) DomainEvent {
	return DomainEvent{
		Type:           EnrollmentUpdated,
		OccurredAt:     res.Enrollment.UpdatedAt.UTC(),
		ActorID:        res.Enrollment.UserID,
		EventID:        res.Enrollment.EventID,
		UserID:         res.Enrollment.UserID,
		Participants:   res.Enrollment.Participants,
		SeatsRemaining: res.SeatsRemaining,
	}
}

// EnrollmentRemoved describes a cancelled enrollment.  Participants holds
// the seats that were returned.
func EnrollmentRemoved(res reservation.CancelResult) DomainEvent {
	return DomainEvent{
		Type:           EnrollmentCancelled,
		OccurredAt:     res.CancelledAt.UTC(),
		ActorID:        res.Enrollment.UserID,
		EventID:        res.Enrollment.EventID,
		UserID:         res.Enrollment.UserID,
		Participants:   res.Enrollment.Participants,
		SeatsRemaining: res.SeatsRemaining,
	}
}

// AuditLine renders ev as one human-friendly log line, newline terminated.
func (ev DomainEvent) AuditLine() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | actor_id=%d", ev.OccurredAt.Format(time.RFC3339), ev.Type, ev.ActorID)
	switch ev.Type {
	case ReservationCreated, ReservationCancelled:
		fmt.Fprintf(&b, " | user_id=%d | booking_id=%s | details=[%s] | services=[%s]",
			ev.UserID, ev.BookingID, strings.Join(ev.DetailIDs, ","), joinIDs(ev.ServiceIDs))
	case EnrollmentUpdated, EnrollmentCancelled:
		fmt.Fprintf(&b, " | event_id=%d | user_id=%d | participants=%d | seats_remaining=%d",
			ev.EventID, ev.UserID, ev.Participants, ev.SeatsRemaining)
	}
	b.WriteByte('\n')
	return b.String()
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}
