package reservation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/clock"
	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/repository"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

const (
	roomID       = 1
	tableID      = 3
	chairID      = 5
	brokenID     = 6
	playgroundID = 7
)

var now = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2025, time.June, d, 0, 0, 0, 0, time.UTC) }

func clockAt(d, h, m int) time.Time { return time.Date(2025, time.June, d, h, m, 0, 0, time.UTC) }

func iv(start, end time.Time) model.Interval { return model.Interval{Start: start, End: end} }

func newManager(t *testing.T) (*reservation.Manager, *repository.MemoryStore) {
	t.Helper()
	store := repository.NewMemoryStore()
	store.Seed(repository.DemoServices(), nil)
	return reservation.NewManager(store, store, reservation.WithClock(clock.NewFixed(now))), store
}

func TestManager_RoomScenario(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	first, err := m.Reserve(ctx, roomID, iv(day(10), day(12)), 100)
	require.NoError(t, err)
	require.Len(t, first.Details, 1)
	assert.Equal(t, model.DetailActive, first.Details[0].Status)
	assert.Equal(t, now, first.CreatedAt)

	_, err = m.Reserve(ctx, roomID, iv(day(11), day(13)), 101)
	assert.ErrorIs(t, err, reservation.ErrOverlap)

	_, err = m.Reserve(ctx, roomID, iv(day(12), day(14)), 101)
	assert.NoError(t, err, "check-out day is free for the next check-in")

	slots, err := m.Schedule(ctx, roomID, model.Interval{})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
}

func TestManager_RestaurantScenario(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Reserve(ctx, tableID, iv(clockAt(10, 18, 0), clockAt(10, 20, 30)), 100)
	assert.ErrorIs(t, err, reservation.ErrInvalidDuration)

	_, err = m.Reserve(ctx, tableID, iv(clockAt(10, 18, 0), clockAt(10, 20, 0)), 100)
	assert.NoError(t, err)
}

func TestManager_RejectsBadInput(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Reserve(ctx, 999, iv(clockAt(10, 8, 0), clockAt(10, 9, 0)), 1)
	assert.ErrorIs(t, err, reservation.ErrNotFound)

	_, err = m.Reserve(ctx, roomID, iv(clockAt(10, 14, 0), day(12)), 1)
	assert.ErrorIs(t, err, reservation.ErrInvalidDuration)

	_, err = m.ReserveBooking(ctx, 1, nil)
	assert.ErrorIs(t, err, reservation.ErrMalformedInput)

	_, err = m.Reserve(ctx, brokenID, iv(clockAt(10, 8, 0), clockAt(10, 9, 0)), 1)
	assert.ErrorIs(t, err, reservation.ErrUnavailable)
}

func TestManager_ConcurrentOverlappingReservesCommitOnce(t *testing.T) {
	m, store := newManager(t)
	const n = 32

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(owner uint64) {
			defer wg.Done()
			// Every request overlaps every other one on the same chair.
			start := clockAt(10, 9, int(owner%30))
			_, err := m.Reserve(context.Background(), chairID, iv(start, start.Add(time.Hour)), owner)
			errs <- err
		}(uint64(i))
	}
	wg.Wait()
	close(errs)

	var ok, overlap int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, reservation.ErrOverlap):
			overlap++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, overlap)

	active, err := store.ActiveDetails(context.Background(), chairID)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestManager_ConcurrentDisjointReservesAllCommit(t *testing.T) {
	m, _ := newManager(t)
	var wg sync.WaitGroup
	for h := 8; h < 20; h++ {
		wg.Add(1)
		go func(h int) {
			defer wg.Done()
			_, err := m.Reserve(context.Background(), playgroundID, iv(clockAt(10, h, 0), clockAt(10, h+1, 0)), uint64(h))
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	slots, err := m.Schedule(context.Background(), playgroundID, iv(day(10), day(11)))
	require.NoError(t, err)
	assert.Len(t, slots, 12)
}

func TestManager_CancelIsIdempotent(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	b, err := m.Reserve(ctx, roomID, iv(day(10), day(12)), 100)
	require.NoError(t, err)
	detailID := b.Details[0].ID

	d, changed, err := m.Cancel(ctx, detailID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, model.DetailCancelled, d.Status)
	require.NotNil(t, d.CancelledAt)

	d, changed, err = m.Cancel(ctx, detailID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, model.DetailCancelled, d.Status)

	_, err = m.Reserve(ctx, roomID, iv(day(11), day(12)), 101)
	assert.NoError(t, err, "cancelled interval is bookable again")

	_, _, err = m.Cancel(ctx, "no-such-detail")
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestManager_ConcurrentCancelsChangeOnce(t *testing.T) {
	m, _ := newManager(t)
	b, err := m.Reserve(context.Background(), roomID, iv(day(10), day(12)), 100)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	changes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, changed, err := m.Cancel(context.Background(), b.Details[0].ID)
			assert.NoError(t, err)
			if changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changes)
}

func TestManager_MultiDetailBookingIsAtomic(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	_, err := m.Reserve(ctx, tableID, iv(clockAt(10, 19, 0), clockAt(10, 20, 0)), 1)
	require.NoError(t, err)

	_, err = m.ReserveBooking(ctx, 2, []reservation.DetailRequest{
		{ServiceID: roomID, Interval: iv(day(10), day(11))},
		{ServiceID: tableID, Interval: iv(clockAt(10, 18, 0), clockAt(10, 19, 30))},
	})
	assert.ErrorIs(t, err, reservation.ErrOverlap)

	rooms, err := store.ActiveDetails(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, rooms, "no detail of a rejected booking is committed")

	b, err := m.ReserveBooking(ctx, 2, []reservation.DetailRequest{
		{ServiceID: roomID, Interval: iv(day(10), day(11))},
		{ServiceID: tableID, Interval: iv(clockAt(10, 20, 0), clockAt(10, 21, 0))},
	})
	require.NoError(t, err)
	require.Len(t, b.Details, 2)
	assert.Equal(t, b.ID, b.Details[0].BookingID)
	assert.Equal(t, b.ID, b.Details[1].BookingID)

	list, err := m.Bookings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Details, 2)
}

func TestManager_RequestMayNotOverlapItself(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.ReserveBooking(context.Background(), 1, []reservation.DetailRequest{
		{ServiceID: chairID, Interval: iv(clockAt(10, 9, 0), clockAt(10, 10, 0))},
		{ServiceID: chairID, Interval: iv(clockAt(10, 9, 30), clockAt(10, 10, 30))},
	})
	assert.ErrorIs(t, err, reservation.ErrOverlap)
}

func TestManager_AbandonedRequestChangesNothing(t *testing.T) {
	m, store := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Reserve(ctx, chairID, iv(clockAt(10, 9, 0), clockAt(10, 10, 0)), 1)
	assert.ErrorIs(t, err, context.Canceled)

	active, err := store.ActiveDetails(context.Background(), chairID)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestManager_HydratesFromStore(t *testing.T) {
	store := repository.NewMemoryStore()
	store.Seed(repository.DemoServices(), nil)
	store.PutDetail(50, model.BookingDetail{
		ID: "d-1", BookingID: "b-1", ServiceID: roomID,
		Interval: iv(day(10), day(12)), Status: model.DetailActive,
	})

	m := reservation.NewManager(store, store)
	_, err := m.Reserve(context.Background(), roomID, iv(day(11), day(13)), 1)
	assert.ErrorIs(t, err, reservation.ErrOverlap)

	d, owner, err := m.Detail(context.Background(), "d-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), owner)
	assert.Equal(t, roomID, int(d.ServiceID))
}

func TestManager_HydrationDetectsOverlappingRows(t *testing.T) {
	store := repository.NewMemoryStore()
	store.Seed(repository.DemoServices(), nil)
	for _, id := range []string{"d-1", "d-2"} {
		store.PutDetail(50, model.BookingDetail{
			ID: id, BookingID: "b-" + id, ServiceID: roomID,
			Interval: iv(day(10), day(12)), Status: model.DetailActive,
		})
	}

	m := reservation.NewManager(store, store)
	_, err := m.Reserve(context.Background(), roomID, iv(day(20), day(21)), 1)
	assert.ErrorIs(t, err, reservation.ErrLedgerConflict)
	assert.False(t, reservation.IsRejection(err))
}

func TestManager_StoreOverlapResetsIndex(t *testing.T) {
	m, store := newManager(t)
	ctx := context.Background()

	_, err := m.Schedule(ctx, roomID, model.Interval{})
	require.NoError(t, err)

	// Another process books after this one hydrated.
	store.PutDetail(77, model.BookingDetail{
		ID: "foreign", BookingID: "b-foreign", ServiceID: roomID,
		Interval: iv(day(15), day(16)), Status: model.DetailActive,
	})

	_, err = m.Reserve(ctx, roomID, iv(day(15), day(17)), 1)
	assert.ErrorIs(t, err, reservation.ErrOverlap)

	slots, err := m.Schedule(ctx, roomID, model.Interval{})
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, "foreign", slots[0].DetailID)
}

func TestManager_ScheduleUnknownService(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.Schedule(context.Background(), 404, model.Interval{})
	assert.ErrorIs(t, err, reservation.ErrNotFound)
}

// microsecondStore stores timestamps at the precision of the DATETIME(6)
// and TIMESTAMPTZ columns.
type microsecondStore struct {
	*repository.MemoryStore
}

func (s microsecondStore) CreateBooking(ctx context.Context, b model.Booking) error {
	details := make([]model.BookingDetail, len(b.Details))
	for i, d := range b.Details {
		d.Interval = iv(d.Interval.Start.Round(time.Microsecond), d.Interval.End.Round(time.Microsecond))
		details[i] = d
	}
	b.Details = details
	return s.MemoryStore.CreateBooking(ctx, b)
}

func TestManager_CancelFreesSlotWithSubSecondInput(t *testing.T) {
	mem := repository.NewMemoryStore()
	mem.Seed(repository.DemoServices(), nil)
	store := microsecondStore{mem}
	m := reservation.NewManager(store, store, reservation.WithClock(clock.NewFixed(now)))
	ctx := context.Background()

	window := iv(clockAt(10, 18, 0).Add(100*time.Nanosecond), clockAt(10, 19, 0))
	b, err := m.Reserve(ctx, tableID, window, 100)
	require.NoError(t, err)
	assert.True(t, b.Details[0].Interval.Start.Equal(clockAt(10, 18, 0)), "sub-second precision is dropped")

	_, changed, err := m.Cancel(ctx, b.Details[0].ID)
	require.NoError(t, err)
	require.True(t, changed)

	slots, err := m.Schedule(ctx, tableID, model.Interval{})
	require.NoError(t, err)
	assert.Empty(t, slots)

	_, err = m.Reserve(ctx, tableID, window, 101)
	assert.NoError(t, err, "the cancelled slot is free again")
}
