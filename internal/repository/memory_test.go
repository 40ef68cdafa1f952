package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/model"
)

func TestMemoryStore_Contract(t *testing.T) {
	s := NewMemoryStore()
	seed := func(_ context.Context, services []model.ServiceInstance, events []model.Event) error {
		s.Seed(services, events)
		return nil
	}
	runStoreContract(t, s, seed, 1000)
}

func TestMemoryStore_PutEventDefaultsRemaining(t *testing.T) {
	s := NewMemoryStore()
	s.PutEvent(model.Event{ID: 1, SeatsTotal: 8})
	ev, err := s.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 8, ev.SeatsRemaining)
}

func TestMemoryStore_ListFiltersAndSorts(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(DemoServices(), nil)

	all, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, len(DemoServices()))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}

	rooms, err := s.List(context.Background(), model.ServiceRoom)
	require.NoError(t, err)
	assert.Len(t, rooms, 2)
}

func TestMemoryStore_ListBookingsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	s.Seed(DemoServices(), nil)
	ctx := context.Background()
	for i, id := range []string{"old", "new"} {
		start := time.Date(2025, 7, 10+2*i, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.CreateBooking(ctx, model.Booking{
			ID: id, OwnerID: 9, CreatedAt: time.Date(2025, 6, 1+i, 0, 0, 0, 0, time.UTC),
			Details: []model.BookingDetail{{
				ID: id + "-d", BookingID: id, ServiceID: 1, Status: model.DetailActive,
				Interval: model.Interval{Start: start, End: start.AddDate(0, 0, 1)},
			}},
		}))
	}
	list, err := s.ListBookings(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	none, err := s.ListBookings(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
