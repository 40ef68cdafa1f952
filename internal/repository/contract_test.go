package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/model"
	"github.com/iliyamo/resort-reservation/internal/reservation"
)

// contractStore is what every backend offers the engine.
type contractStore interface {
	reservation.Catalog
	reservation.BookingStore
	reservation.EventStore
}

type seedFunc func(ctx context.Context, services []model.ServiceInstance, events []model.Event) error

// runStoreContract exercises the behaviour the engine relies on.  ids are
// derived from base so repeated runs against a shared database do not
// collide.
func runStoreContract(t *testing.T, s contractStore, seed seedFunc, base uint64) {
	ctx := context.Background()
	roomID, eventID := base+1, base+2
	require.NoError(t, seed(ctx,
		[]model.ServiceInstance{{ID: roomID, Type: model.ServiceRoom, Code: "R" + uuid.NewString()[:8], MaxCapacity: 2, Status: model.StatusAvailable}},
		[]model.Event{{ID: eventID, Name: "contract", StartsAt: time.Date(2025, 7, 1, 18, 0, 0, 0, time.UTC), SeatsTotal: 5, SeatsRemaining: 5}},
	))

	t.Run("catalog", func(t *testing.T) {
		inst, err := s.Get(ctx, roomID)
		require.NoError(t, err)
		assert.Equal(t, model.ServiceRoom, inst.Type)

		_, err = s.Get(ctx, base+999)
		assert.ErrorIs(t, err, reservation.ErrNotFound)

		list, err := s.List(ctx, model.ServiceRoom)
		require.NoError(t, err)
		assert.NotEmpty(t, list)
		for _, inst := range list {
			assert.Equal(t, model.ServiceRoom, inst.Type)
		}
	})

	t.Run("bookings", func(t *testing.T) {
		start := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
		b := model.Booking{
			ID:        uuid.NewString(),
			OwnerID:   base,
			CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
			Details: []model.BookingDetail{{
				ID: uuid.NewString(), ServiceID: roomID, Status: model.DetailActive,
				Interval: model.Interval{Start: start, End: start.AddDate(0, 0, 2)},
			}},
		}
		b.Details[0].BookingID = b.ID
		require.NoError(t, s.CreateBooking(ctx, b))

		clash := b
		clash.ID = uuid.NewString()
		clash.Details = []model.BookingDetail{{
			ID: uuid.NewString(), BookingID: clash.ID, ServiceID: roomID, Status: model.DetailActive,
			Interval: model.Interval{Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 3)},
		}}
		assert.ErrorIs(t, s.CreateBooking(ctx, clash), reservation.ErrOverlap)

		d, owner, err := s.GetDetail(ctx, b.Details[0].ID)
		require.NoError(t, err)
		assert.Equal(t, base, owner)
		assert.True(t, d.Interval.Equal(b.Details[0].Interval))

		active, err := s.ActiveDetails(ctx, roomID)
		require.NoError(t, err)
		assert.Len(t, active, 1)

		list, err := s.ListBookings(ctx, base)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Len(t, list[0].Details, 1)

		at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.CancelDetail(ctx, d.ID, at))
		require.NoError(t, s.CancelDetail(ctx, d.ID, at), "cancelling twice is harmless")
		d, _, err = s.GetDetail(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, model.DetailCancelled, d.Status)
		require.NotNil(t, d.CancelledAt)

		active, err = s.ActiveDetails(ctx, roomID)
		require.NoError(t, err)
		assert.Empty(t, active)
		assert.NoError(t, s.CreateBooking(ctx, clash), "cancelled details free their interval")

		_, _, err = s.GetDetail(ctx, uuid.NewString())
		assert.ErrorIs(t, err, reservation.ErrNotFound)
		assert.ErrorIs(t, s.CancelDetail(ctx, uuid.NewString(), at), reservation.ErrNotFound)
	})

	t.Run("enrollments", func(t *testing.T) {
		ev, err := s.GetEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 5, ev.SeatsRemaining)

		now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
		en := model.Enrollment{ID: uuid.NewString(), EventID: eventID, UserID: base, Participants: 3, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.SaveEnrollment(ctx, en, 5, 2))

		en.Participants = 4
		assert.ErrorIs(t, s.SaveEnrollment(ctx, en, 5, 1), reservation.ErrLedgerConflict, "stale counter")
		require.NoError(t, s.SaveEnrollment(ctx, en, 2, 1))

		list, err := s.ListEnrollments(ctx, eventID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, 4, list[0].Participants)

		require.NoError(t, s.DeleteEnrollment(ctx, en, 1, 5))
		ev, err = s.GetEvent(ctx, eventID)
		require.NoError(t, err)
		assert.Equal(t, 5, ev.SeatsRemaining)

		list, err = s.ListEnrollments(ctx, eventID)
		require.NoError(t, err)
		assert.Empty(t, list)

		_, err = s.GetEvent(ctx, base+999)
		assert.ErrorIs(t, err, reservation.ErrNotFound)
		assert.ErrorIs(t, s.SaveEnrollment(ctx, model.Enrollment{EventID: base + 999, UserID: 1, Participants: 1}, 1, 0), reservation.ErrNotFound)
	})
}
