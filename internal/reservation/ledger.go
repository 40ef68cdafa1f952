package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/iliyamo/resort-reservation/internal/clock"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/telemetry"
)

// Seats is a consistent snapshot of one event's capacity.
type Seats struct {
	Event       model.Event
	Held        int // Σ participants of active enrollments
	Enrollments int
}

// Consistent reports whether the snapshot satisfies
// remaining + held == total with 0 <= remaining <= total.
func (s Seats) Consistent() bool {
	ev := s.Event
	return ev.SeatsRemaining >= 0 &&
		ev.SeatsRemaining <= ev.SeatsTotal &&
		ev.SeatsRemaining+s.Held == ev.SeatsTotal
}

// EnrollResult is the outcome of an accepted enroll request.
type EnrollResult struct {
	Enrollment     model.Enrollment
	SeatsRemaining int
	Created        bool // false when participants were added to an existing enrollment
}

// CancelResult is the outcome of a cancel that released seats.
// SeatsRemaining is the counter as committed by this cancel.
type CancelResult struct {
	Enrollment     model.Enrollment
	SeatsRemaining int
	CancelledAt    time.Time
}

// eventState is the in-memory copy of one event's seat counter and
// enrollments.  Only the holder of the event's section touches it.
type eventState struct {
	event       model.Event
	enrollments map[uint64]model.Enrollment // by user id
}

func (st *eventState) seats() Seats {
	s := Seats{Event: st.event, Enrollments: len(st.enrollments)}
	for _, en := range st.enrollments {
		s.Held += en.Participants
	}
	return s
}

// Ledger is the event seat ledger: count-based capacity guarded by one
// exclusive section per event.
type Ledger struct {
	store    EventStore
	sections *sections[uint64]
	clock    clock.Clock
	log      *zap.Logger
	newID    func() string

	mu     sync.Mutex
	states map[uint64]*eventState
}

// NewLedger builds a Ledger over store.
func NewLedger(store EventStore, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{
		store:    store,
		sections: newSections[uint64](),
		clock:    o.clock,
		log:      o.log,
		newID:    o.newID,
		states:   make(map[uint64]*eventState),
	}
}

// Enroll takes participants seats of eventID for userID.  A repeat enroll
// by the same user adds participants to the existing enrollment.  Requests
// for more seats than remain are rejected with ErrInsufficientSeats and
// change nothing.
func (l *Ledger) Enroll(ctx context.Context, eventID, userID uint64, participants int) (res EnrollResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.enroll",
		attribute.Int64("event_id", int64(eventID)),
		attribute.Int64("user_id", int64(userID)),
		attribute.Int("participants", participants),
	)
	defer func() { telemetry.EndSpan(span, err, IsRejection(err)) }()

	if participants < 1 {
		return EnrollResult{}, fmt.Errorf("%w: participants must be at least 1", ErrMalformedInput)
	}
	release, err := l.sections.acquire(ctx, eventID)
	if err != nil {
		return EnrollResult{}, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	st, err := l.load(ctx, eventID)
	if err != nil {
		return EnrollResult{}, err
	}
	prev := st.event.SeatsRemaining
	if participants > prev {
		return EnrollResult{}, fmt.Errorf("%w: requested %d, %d remaining", ErrInsufficientSeats, participants, prev)
	}

	current, enrolled := st.enrollments[userID]
	if _, ok := stateOf(enrolled).Next(EventEnroll); !ok {
		return EnrollResult{}, fmt.Errorf("enroll not allowed from state %s", stateOf(enrolled))
	}
	now := l.clock.Now()
	next := current
	if !enrolled {
		next = model.Enrollment{
			ID:        l.newID(),
			EventID:   eventID,
			UserID:    userID,
			CreatedAt: now,
		}
	}
	next.Participants += participants
	next.UpdatedAt = now
	remaining := prev - participants

	if err := l.store.SaveEnrollment(ctx, next, prev, remaining); err != nil {
		return EnrollResult{}, l.storeFailed(eventID, "save enrollment", err)
	}
	st.enrollments[userID] = next
	st.event.SeatsRemaining = remaining

	l.log.Debug("enrollment committed",
		zap.Uint64("event_id", eventID),
		zap.Uint64("user_id", userID),
		zap.Int("participants", next.Participants),
		zap.Int("seats_remaining", remaining),
	)
	return EnrollResult{Enrollment: next, SeatsRemaining: remaining, Created: !enrolled}, nil
}

// Cancel removes the enrollment of userID and returns every seat it held.
// Cancelling when no enrollment exists is a no-op; the returned bool
// reports whether anything changed.  Unknown events return ErrNotFound.
func (l *Ledger) Cancel(ctx context.Context, eventID, userID uint64) (res CancelResult, changed bool, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ledger.cancel",
		attribute.Int64("event_id", int64(eventID)),
		attribute.Int64("user_id", int64(userID)),
	)
	defer func() { telemetry.EndSpan(span, err, IsRejection(err)) }()

	release, err := l.sections.acquire(ctx, eventID)
	if err != nil {
		return CancelResult{}, false, err
	}
	defer release()
	ctx = context.WithoutCancel(ctx)

	st, err := l.load(ctx, eventID)
	if err != nil {
		return CancelResult{}, false, err
	}
	en, enrolled := st.enrollments[userID]
	if _, ok := stateOf(enrolled).Next(EventCancel); !ok {
		return CancelResult{}, false, nil
	}
	prev := st.event.SeatsRemaining
	remaining := prev + en.Participants
	if err := l.store.DeleteEnrollment(ctx, en, prev, remaining); err != nil {
		return CancelResult{}, false, l.storeFailed(eventID, "delete enrollment", err)
	}
	delete(st.enrollments, userID)
	st.event.SeatsRemaining = remaining

	l.log.Debug("enrollment cancelled",
		zap.Uint64("event_id", eventID),
		zap.Uint64("user_id", userID),
		zap.Int("released", en.Participants),
		zap.Int("seats_remaining", remaining),
	)
	return CancelResult{Enrollment: en, SeatsRemaining: remaining, CancelledAt: l.clock.Now()}, true, nil
}

// Snapshot returns the seat state of eventID as of one instant.
func (l *Ledger) Snapshot(ctx context.Context, eventID uint64) (Seats, error) {
	release, err := l.sections.acquire(ctx, eventID)
	if err != nil {
		return Seats{}, err
	}
	defer release()
	st, err := l.load(ctx, eventID)
	if err != nil {
		return Seats{}, err
	}
	return st.seats(), nil
}

// Enrollment returns the enrollment of userID in eventID, if any.
func (l *Ledger) Enrollment(ctx context.Context, eventID, userID uint64) (model.Enrollment, bool, error) {
	release, err := l.sections.acquire(ctx, eventID)
	if err != nil {
		return model.Enrollment{}, false, err
	}
	defer release()
	st, err := l.load(ctx, eventID)
	if err != nil {
		return model.Enrollment{}, false, err
	}
	en, ok := st.enrollments[userID]
	return en, ok, nil
}

// load returns the state of eventID, reading it from the store on first
// use.  The caller holds the event's section.
func (l *Ledger) load(ctx context.Context, eventID uint64) (*eventState, error) {
	l.mu.Lock()
	st, ok := l.states[eventID]
	l.mu.Unlock()
	if ok {
		return st, nil
	}

	ev, err := l.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	list, err := l.store.ListEnrollments(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load enrollments of event %d: %w", eventID, err)
	}
	st = &eventState{event: ev, enrollments: make(map[uint64]model.Enrollment, len(list))}
	for _, en := range list {
		st.enrollments[en.UserID] = en
	}
	if seats := st.seats(); !seats.Consistent() {
		l.log.Error("stored seat counter does not match enrollments",
			zap.Uint64("event_id", eventID),
			zap.Int("seats_total", ev.SeatsTotal),
			zap.Int("seats_remaining", ev.SeatsRemaining),
			zap.Int("held", seats.Held),
		)
		return nil, fmt.Errorf("%w: event %d has %d remaining and %d held of %d",
			ErrLedgerConflict, eventID, ev.SeatsRemaining, seats.Held, ev.SeatsTotal)
	}

	l.mu.Lock()
	l.states[eventID] = st
	l.mu.Unlock()
	return st, nil
}

// storeFailed drops the cached state of eventID when the store reports a
// conflict, so the next request starts from durable state.
func (l *Ledger) storeFailed(eventID uint64, op string, err error) error {
	if errors.Is(err, ErrLedgerConflict) {
		l.mu.Lock()
		delete(l.states, eventID)
		l.mu.Unlock()
		l.log.Warn("seat counter changed outside the ledger", zap.Uint64("event_id", eventID), zap.Error(err))
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}
