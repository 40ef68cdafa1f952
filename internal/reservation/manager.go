package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/clock"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/telemetry"
)

// DetailRequest asks for one interval on one service instance.
type DetailRequest struct {
	ServiceID uint64
	Interval  model.Interval
}

// Manager is the reservation transaction manager.  It is the only writer
// of the interval index; every check-then-insert runs inside the exclusive
// section of the affected service instance.
type Manager struct {
	catalog  Catalog
	store    BookingStore
	index    *IntervalIndex
	sections *sections[uint64]
	clock    clock.Clock
	log      *zap.Logger
	newID    func() string
}

// Option configures a Manager or a Ledger.
type Option func(*options)

type options struct {
	clock clock.Clock
	log   *zap.Logger
	newID func() string
}

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithIDGenerator overrides uuid generation for booking, detail and
// enrollment ids.
func WithIDGenerator(f func() string) Option {
	return func(o *options) {
		if f != nil {
			o.newID = f
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock: clock.NewSystem(),
		log:   zap.NewNop(),
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewManager builds a Manager over the given catalog and store.  The index
// starts empty and is filled lazily from the store.
func NewManager(catalog Catalog, store BookingStore, opts ...Option) *Manager {
	o := buildOptions(opts)
	return &Manager{
		catalog:  catalog,
		store:    store,
		index:    NewIntervalIndex(),
		sections: newSections[uint64](),
		clock:    o.clock,
		log:      o.log,
		newID:    o.newID,
	}
}

// Reserve books iv on one service instance for owner.
func (m *Manager) Reserve(ctx context.Context, serviceID uint64, iv model.Interval, ownerID uint64) (model.Booking, error) {
	return m.ReserveBooking(ctx, ownerID, []DetailRequest{{ServiceID: serviceID, Interval: iv}})
}

// ReserveBooking commits every requested detail as one booking, or none of
// them.  Catalog lookups and policy validation run before any section is
// entered; the overlap check, the durable write and the index insert run
// inside the sections of all affected instances.
func (m *Manager) ReserveBooking(ctx context.Context, ownerID uint64, reqs []DetailRequest) (booking model.Booking, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.reserve",
		attribute.Int64("owner_id", int64(ownerID)),
		attribute.Int("details", len(reqs)),
	)
	defer func() { telemetry.EndSpan(span, err, IsRejection(err)) }()

	if len(reqs) == 0 {
		return model.Booking{}, fmt.Errorf("%w: at least one booking detail is required", ErrMalformedInput)
	}
	reqs = wholeSeconds(reqs)
	keys := make([]uint64, 0, len(reqs))
	for i, r := range reqs {
		inst, err := m.catalog.Get(ctx, r.ServiceID)
		if err != nil {
			return model.Booking{}, err
		}
		if !inst.Bookable() {
			return model.Booking{}, fmt.Errorf("%w: service %d is under maintenance", ErrUnavailable, r.ServiceID)
		}
		if err := Validate(inst.Type, r.Interval); err != nil {
			return model.Booking{}, err
		}
		for _, prev := range reqs[:i] {
			if prev.ServiceID == r.ServiceID && prev.Interval.Overlaps(r.Interval) {
				return model.Booking{}, fmt.Errorf("%w: request books service %d twice for overlapping times", ErrOverlap, r.ServiceID)
			}
		}
		keys = append(keys, r.ServiceID)
	}

	release, err := m.sections.acquireAll(ctx, keys)
	if err != nil {
		return model.Booking{}, err
	}
	defer release()
	// Inside the section the operation runs to completion.
	ctx = context.WithoutCancel(ctx)

	for _, id := range keys {
		if err := m.hydrate(ctx, id); err != nil {
			return model.Booking{}, err
		}
	}
	for _, r := range reqs {
		if slot, ok := m.index.Conflict(r.ServiceID, r.Interval); ok {
			m.log.Debug("reservation rejected",
				zap.Uint64("service_id", r.ServiceID),
				zap.Time("start", r.Interval.Start),
				zap.Time("end", r.Interval.End),
				zap.String("conflicting_detail", slot.DetailID),
			)
			return model.Booking{}, fmt.Errorf("%w: service %d is booked from %s to %s",
				ErrOverlap, r.ServiceID, slot.Interval.Start.Format(timeLayouts[0]), slot.Interval.End.Format(timeLayouts[0]))
		}
	}

	booking = model.Booking{
		ID:        m.newID(),
		OwnerID:   ownerID,
		CreatedAt: m.clock.Now(),
		Details:   make([]model.BookingDetail, 0, len(reqs)),
	}
	for _, r := range reqs {
		booking.Details = append(booking.Details, model.BookingDetail{
			ID:        m.newID(),
			BookingID: booking.ID,
			ServiceID: r.ServiceID,
			Interval:  r.Interval,
			Status:    model.DetailActive,
		})
	}
	if err := m.store.CreateBooking(ctx, booking); err != nil {
		if errors.Is(err, ErrOverlap) {
			// The store saw a row this index does not know about.
			for _, id := range keys {
				m.index.reset(id)
			}
			return model.Booking{}, err
		}
		return model.Booking{}, fmt.Errorf("persist booking: %w", err)
	}
	for _, d := range booking.Details {
		m.index.Insert(d.ServiceID, Slot{DetailID: d.ID, Interval: d.Interval})
	}
	m.log.Debug("booking committed",
		zap.String("booking_id", booking.ID),
		zap.Uint64("owner_id", ownerID),
		zap.Int("details", len(booking.Details)),
	)
	return booking, nil
}

// Detail returns a booking detail and the owner of its booking.
func (m *Manager) Detail(ctx context.Context, detailID string) (model.BookingDetail, uint64, error) {
	return m.store.GetDetail(ctx, detailID)
}

// wholeSeconds returns a copy of reqs with sub-second precision dropped,
// so the index holds exactly what the SQL columns store.
func wholeSeconds(reqs []DetailRequest) []DetailRequest {
	out := make([]DetailRequest, len(reqs))
	for i, r := range reqs {
		r.Interval = model.Interval{
			Start: r.Interval.Start.Truncate(time.Second),
			End:   r.Interval.End.Truncate(time.Second),
		}
		out[i] = r
	}
	return out
}

// Cancel releases a booking detail.  Cancelling an already cancelled
// detail is a no-op; the returned bool reports whether this call changed
// anything.  Unknown ids return ErrNotFound.
func (m *Manager) Cancel(ctx context.Context, detailID string) (d model.BookingDetail, changed bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "reservation.cancel", attribute.String("detail_id", detailID))
	defer func() { telemetry.EndSpan(span, err, IsRejection(err)) }()

	d, _, err = m.store.GetDetail(ctx, detailID)
	if err != nil {
		return model.BookingDetail{}, false, err
	}
	release, err := m.sections.acquire(ctx, d.ServiceID)
	if err != nil {
		return model.BookingDetail{}, false, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	if err := m.hydrate(ctx, d.ServiceID); err != nil {
		return model.BookingDetail{}, false, err
	}
	// Re-read inside the section: a concurrent cancel may have won.
	d, _, err = m.store.GetDetail(ctx, detailID)
	if err != nil {
		return model.BookingDetail{}, false, err
	}
	if !d.Active() {
		return d, false, nil
	}
	now := m.clock.Now()
	if err := m.store.CancelDetail(ctx, detailID, now); err != nil {
		return model.BookingDetail{}, false, fmt.Errorf("persist cancellation: %w", err)
	}
	if !m.index.Remove(d.ServiceID, d.ID) {
		m.log.Warn("cancelled detail was not in the interval index",
			zap.String("detail_id", d.ID),
			zap.Uint64("service_id", d.ServiceID),
		)
	}
	d.Status = model.DetailCancelled
	d.CancelledAt = &now
	return d, true, nil
}

// Schedule returns the committed slots of a service instance that
// intersect window (all slots for a zero window).
func (m *Manager) Schedule(ctx context.Context, serviceID uint64, window model.Interval) ([]Slot, error) {
	if _, err := m.catalog.Get(ctx, serviceID); err != nil {
		return nil, err
	}
	release, err := m.sections.acquire(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	defer release()
	if err := m.hydrate(ctx, serviceID); err != nil {
		return nil, err
	}
	return m.index.Slots(serviceID, window), nil
}

// Bookings lists the bookings of owner, newest first.
func (m *Manager) Bookings(ctx context.Context, ownerID uint64) ([]model.Booking, error) {
	return m.store.ListBookings(ctx, ownerID)
}

// Catalog exposes the catalog the manager reads from.
func (m *Manager) Catalog() Catalog { return m.catalog }

// hydrate loads the committed intervals of serviceID on first use.  The
// caller holds the instance's section.
func (m *Manager) hydrate(ctx context.Context, serviceID uint64) error {
	if m.index.loaded(serviceID) {
		return nil
	}
	details, err := m.store.ActiveDetails(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("load bookings of service %d: %w", serviceID, err)
	}
	for _, d := range details {
		if slot, ok := m.index.Conflict(serviceID, d.Interval); ok {
			m.index.reset(serviceID)
			m.log.Error("stored bookings overlap",
				zap.Uint64("service_id", serviceID),
				zap.String("detail_id", d.ID),
				zap.String("conflicting_detail", slot.DetailID),
			)
			return fmt.Errorf("%w: details %s and %s overlap on service %d", ErrLedgerConflict, d.ID, slot.DetailID, serviceID)
		}
		m.index.Insert(serviceID, Slot{DetailID: d.ID, Interval: d.Interval})
	}
	m.index.markLoaded(serviceID)
	return nil
}
