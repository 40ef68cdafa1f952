package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/resort-reservation/internal/model"
)

func at(day, hour, min int) time.Time {
	return time.Date(2025, time.June, day, hour, min, 0, 0, time.UTC)
}

func between(start, end time.Time) model.Interval {
	return model.Interval{Start: start, End: end}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		typ  model.ServiceType
		iv   model.Interval
		want error
	}{
		{"room one night", model.ServiceRoom, between(at(10, 0, 0), at(11, 0, 0)), nil},
		{"room three nights", model.ServiceRoom, between(at(10, 0, 0), at(13, 0, 0)), nil},
		{"room same day", model.ServiceRoom, between(at(10, 0, 0), at(10, 0, 0)), ErrInvalidDuration},
		{"room end before start", model.ServiceRoom, between(at(12, 0, 0), at(10, 0, 0)), ErrInvalidDuration},
		{"room not midnight", model.ServiceRoom, between(at(10, 14, 0), at(11, 10, 0)), ErrInvalidDuration},
		{"table two hours", model.ServiceRestaurantTable, between(at(10, 18, 0), at(10, 20, 0)), nil},
		{"table two and a half hours", model.ServiceRestaurantTable, between(at(10, 18, 0), at(10, 20, 30)), ErrInvalidDuration},
		{"table zero length", model.ServiceRestaurantTable, between(at(10, 18, 0), at(10, 18, 0)), ErrInvalidDuration},
		{"table across midnight", model.ServiceRestaurantTable, between(at(10, 23, 0), at(11, 0, 30)), ErrInvalidDuration},
		{"table ending at midnight", model.ServiceRestaurantTable, between(at(10, 23, 0), at(11, 0, 0)), ErrInvalidDuration},
		{"pool chair short", model.ServicePoolChair, between(at(10, 9, 0), at(10, 9, 30)), nil},
		{"playground inverted", model.ServicePlayground, between(at(10, 11, 0), at(10, 10, 0)), ErrInvalidDuration},
		{"animal activity max", model.ServiceAnimalActivity, between(at(10, 8, 0), at(10, 10, 0)), nil},
		{"unknown type", model.ServiceType("SPA"), between(at(10, 8, 0), at(10, 9, 0)), ErrMalformedInput},
		{"missing start", model.ServicePoolChair, model.Interval{End: at(10, 9, 0)}, ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.typ, tt.iv)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsRejection(err))
		})
	}
}

func TestPolicyFor_EveryServiceType(t *testing.T) {
	for _, typ := range model.ServiceTypes {
		p, ok := PolicyFor(typ)
		require.True(t, ok, typ)
		if typ == model.ServiceRoom {
			assert.Equal(t, GranularityDay, p.Granularity)
			continue
		}
		assert.Equal(t, GranularityTimeOfDay, p.Granularity)
		assert.Equal(t, MaxSlotDuration, p.MaxDuration)
		assert.True(t, p.SameDay)
	}
}

func TestParseInterval(t *testing.T) {
	t.Run("room dates", func(t *testing.T) {
		iv, err := ParseInterval(model.ServiceRoom, "2025-06-10", "2025-06-12")
		require.NoError(t, err)
		assert.Equal(t, at(10, 0, 0), iv.Start)
		assert.Equal(t, at(12, 0, 0), iv.End)
	})

	t.Run("room rfc3339", func(t *testing.T) {
		iv, err := ParseInterval(model.ServiceRoom, "2025-06-10T00:00:00Z", "2025-06-11T00:00:00Z")
		require.NoError(t, err)
		assert.NoError(t, Validate(model.ServiceRoom, iv))
	})

	t.Run("slot layouts", func(t *testing.T) {
		for _, raw := range [][2]string{
			{"2025-06-10T18:00", "2025-06-10T20:00"},
			{"2025-06-10 18:00", "2025-06-10 20:00"},
			{"2025-06-10T18:00:00Z", "2025-06-10T20:00:00Z"},
			{"2025-06-10 18:00:00", "2025-06-10 20:00:00"},
		} {
			iv, err := ParseInterval(model.ServiceRestaurantTable, raw[0], raw[1])
			require.NoError(t, err, raw)
			assert.True(t, iv.Start.Equal(at(10, 18, 0)), raw)
			assert.True(t, iv.End.Equal(at(10, 20, 0)), raw)
		}
	})

	t.Run("offset is kept", func(t *testing.T) {
		iv, err := ParseInterval(model.ServicePoolChair, "2025-06-10T10:00:00+02:00", "2025-06-10T11:00:00+02:00")
		require.NoError(t, err)
		assert.True(t, iv.Start.Equal(at(10, 8, 0)))
	})

	t.Run("fractional seconds are dropped", func(t *testing.T) {
		iv, err := ParseInterval(model.ServiceRestaurantTable, "2025-06-10T18:00:00.0000001Z", "2025-06-10T19:00:00.999Z")
		require.NoError(t, err)
		assert.True(t, iv.Start.Equal(at(10, 18, 0)))
		assert.True(t, iv.End.Equal(at(10, 19, 0)))
		assert.Zero(t, iv.Start.Nanosecond())
	})

	t.Run("slot types do not accept bare dates", func(t *testing.T) {
		_, err := ParseInterval(model.ServicePoolChair, "2025-06-10", "2025-06-10")
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseInterval(model.ServiceRoom, "tomorrow", "2025-06-12")
		assert.ErrorIs(t, err, ErrMalformedInput)
		_, err = ParseInterval(model.ServiceRoom, "2025-06-10", "")
		assert.ErrorIs(t, err, ErrMalformedInput)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ParseInterval("SPA", "2025-06-10", "2025-06-11")
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}
