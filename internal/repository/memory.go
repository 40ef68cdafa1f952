package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// MemoryStore keeps the catalog, bookings, events and enrollments in
// process memory.  It backs the dev profile and the tests, and it enforces
// the same backstops as the SQL stores: overlapping active details are
// refused and the seat counter is compare-and-set.
type MemoryStore struct {
	mu          sync.RWMutex
	services    map[uint64]model.ServiceInstance
	bookings    map[string]model.Booking // details are stored separately
	details     map[string]model.BookingDetail
	events      map[uint64]model.Event
	enrollments map[uint64]map[uint64]model.Enrollment // event id -> user id
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		services:    make(map[uint64]model.ServiceInstance),
		bookings:    make(map[string]model.Booking),
		details:     make(map[string]model.BookingDetail),
		events:      make(map[uint64]model.Event),
		enrollments: make(map[uint64]map[uint64]model.Enrollment),
	}
}

// PutService adds or replaces a catalog entry.
func (s *MemoryStore) PutService(inst model.ServiceInstance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[inst.ID] = inst
}

// PutEvent adds or replaces an event.  A zero SeatsRemaining on a new event
// is read as "nothing taken yet".
func (s *MemoryStore) PutEvent(ev model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok && ev.SeatsRemaining == 0 {
		ev.SeatsRemaining = ev.SeatsTotal
	}
	s.events[ev.ID] = ev
}

// PutEnrollment writes an enrollment row without touching the event
// counter.  It exists to stage inconsistent data in tests.
func (s *MemoryStore) PutEnrollment(en model.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollmentsOf(en.EventID)[en.UserID] = en
}

// PutDetail writes a detail row without any overlap check.  It exists to
// stage data written by another process in tests.
func (s *MemoryStore) PutDetail(ownerID uint64, d model.BookingDetail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[d.BookingID]
	if !ok {
		b = model.Booking{ID: d.BookingID, OwnerID: ownerID, CreatedAt: d.Interval.Start}
	}
	s.bookings[d.BookingID] = b
	s.details[d.ID] = d
}

// Get implements reservation.Catalog.
func (s *MemoryStore) Get(_ context.Context, id uint64) (model.ServiceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.services[id]
	if !ok {
		return model.ServiceInstance{}, serviceNotFound(id)
	}
	return inst, nil
}

// List implements reservation.Catalog.  An empty type lists everything.
func (s *MemoryStore) List(_ context.Context, t model.ServiceType) ([]model.ServiceInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.ServiceInstance, 0, len(s.services))
	for _, inst := range s.services {
		if t == "" || inst.Type == t {
			out = append(out, inst)
		}
	}
	slices.SortFunc(out, func(a, b model.ServiceInstance) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// CreateBooking implements reservation.BookingStore.
func (s *MemoryStore) CreateBooking(_ context.Context, b model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range b.Details {
		if _, ok := s.services[d.ServiceID]; !ok {
			return serviceNotFound(d.ServiceID)
		}
		for _, other := range s.details {
			if other.Active() && other.ServiceID == d.ServiceID && other.Interval.Overlaps(d.Interval) {
				return fmt.Errorf("%w: detail %s already holds service %d", reservation.ErrOverlap, other.ID, d.ServiceID)
			}
		}
	}
	stored := b
	stored.Details = nil
	s.bookings[b.ID] = stored
	for _, d := range b.Details {
		s.details[d.ID] = d
	}
	return nil
}

// CancelDetail implements reservation.BookingStore.
func (s *MemoryStore) CancelDetail(_ context.Context, detailID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[detailID]
	if !ok {
		return detailNotFound(detailID)
	}
	if !d.Active() {
		return nil
	}
	d.Status = model.DetailCancelled
	d.CancelledAt = &at
	s.details[detailID] = d
	return nil
}

// GetDetail implements reservation.BookingStore.
func (s *MemoryStore) GetDetail(_ context.Context, detailID string) (model.BookingDetail, uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.details[detailID]
	if !ok {
		return model.BookingDetail{}, 0, detailNotFound(detailID)
	}
	return d, s.bookings[d.BookingID].OwnerID, nil
}

// ActiveDetails implements reservation.BookingStore.
func (s *MemoryStore) ActiveDetails(_ context.Context, serviceID uint64) ([]model.BookingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.BookingDetail
	for _, d := range s.details {
		if d.ServiceID == serviceID && d.Active() {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b model.BookingDetail) int { return a.Interval.Start.Compare(b.Interval.Start) })
	return out, nil
}

// ListBookings implements reservation.BookingStore.
func (s *MemoryStore) ListBookings(_ context.Context, ownerID uint64) ([]model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := make(map[string]*model.Booking)
	for id, b := range s.bookings {
		if b.OwnerID == ownerID {
			cp := b
			cp.Details = nil
			byID[id] = &cp
		}
	}
	for _, d := range s.details {
		if b, ok := byID[d.BookingID]; ok {
			b.Details = append(b.Details, d)
		}
	}
	out := make([]model.Booking, 0, len(byID))
	for _, b := range byID {
		slices.SortFunc(b.Details, func(x, y model.BookingDetail) int { return x.Interval.Start.Compare(y.Interval.Start) })
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b model.Booking) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// GetEvent implements reservation.EventStore.
func (s *MemoryStore) GetEvent(_ context.Context, id uint64) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return model.Event{}, eventNotFound(id)
	}
	return ev, nil
}

// ListEnrollments implements reservation.EventStore.
func (s *MemoryStore) ListEnrollments(_ context.Context, eventID uint64) ([]model.Enrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Enrollment, 0, len(s.enrollments[eventID]))
	for _, en := range s.enrollments[eventID] {
		out = append(out, en)
	}
	slices.SortFunc(out, func(a, b model.Enrollment) int { return cmp.Compare(a.UserID, b.UserID) })
	return out, nil
}

// SaveEnrollment implements reservation.EventStore.
func (s *MemoryStore) SaveEnrollment(_ context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, err := s.casEvent(en.EventID, prevRemaining, newRemaining)
	if err != nil {
		return err
	}
	s.enrollmentsOf(en.EventID)[en.UserID] = en
	s.events[ev.ID] = ev
	return nil
}

// DeleteEnrollment implements reservation.EventStore.
func (s *MemoryStore) DeleteEnrollment(_ context.Context, en model.Enrollment, prevRemaining, newRemaining int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, err := s.casEvent(en.EventID, prevRemaining, newRemaining)
	if err != nil {
		return err
	}
	delete(s.enrollmentsOf(en.EventID), en.UserID)
	s.events[ev.ID] = ev
	return nil
}

// SetSeatsRemaining overwrites the stored counter of an event, as another
// process would.  Tests use it to provoke a compare-and-set failure.
func (s *MemoryStore) SetSeatsRemaining(eventID uint64, remaining int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[eventID]
	ev.SeatsRemaining = remaining
	s.events[eventID] = ev
}

// casEvent checks the stored counter and returns the event with the new
// counter applied.  The caller holds s.mu and writes the event back.
func (s *MemoryStore) casEvent(eventID uint64, prev, next int) (model.Event, error) {
	ev, ok := s.events[eventID]
	if !ok {
		return model.Event{}, eventNotFound(eventID)
	}
	if ev.SeatsRemaining != prev {
		return model.Event{}, counterMoved(eventID, prev)
	}
	if next < 0 || next > ev.SeatsTotal {
		return model.Event{}, fmt.Errorf("%w: seats_remaining %d out of range for event %d", reservation.ErrLedgerConflict, next, eventID)
	}
	ev.SeatsRemaining = next
	return ev, nil
}

func (s *MemoryStore) enrollmentsOf(eventID uint64) map[uint64]model.Enrollment {
	m, ok := s.enrollments[eventID]
	if !ok {
		m = make(map[uint64]model.Enrollment)
		s.enrollments[eventID] = m
	}
	return m
}
