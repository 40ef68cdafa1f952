package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(h int) time.Time { return time.Date(2025, time.July, 1, h, 0, 0, 0, time.UTC) }

func TestIntervalOverlaps(t *testing.T) {
	base := Interval{Start: at(10), End: at(12)}
	tests := []struct {
		name  string
		other Interval
		want  bool
	}{
		{"identical", Interval{at(10), at(12)}, true},
		{"inside", Interval{at(10).Add(30 * time.Minute), at(11)}, true},
		{"straddles start", Interval{at(9), at(11)}, true},
		{"straddles end", Interval{at(11), at(13)}, true},
		{"touches end", Interval{at(12), at(13)}, false},
		{"touches start", Interval{at(8), at(10)}, false},
		{"disjoint", Interval{at(14), at(15)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(base), "overlap is symmetric")
		})
	}
}

func TestIntervalEqualAcrossZones(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	a := Interval{Start: at(10), End: at(12)}
	b := Interval{Start: at(10).In(bangkok), End: at(12).In(bangkok)}
	assert.True(t, a.Equal(b))
	assert.Equal(t, 2*time.Hour, b.Duration())
}

func TestParseServiceType(t *testing.T) {
	got, ok := ParseServiceType(" pool_chair ")
	assert.True(t, ok)
	assert.Equal(t, ServicePoolChair, got)

	_, ok = ParseServiceType("spa")
	assert.False(t, ok)
}

func TestBookable(t *testing.T) {
	assert.True(t, ServiceInstance{Status: StatusAvailable}.Bookable())
	assert.True(t, ServiceInstance{Status: StatusOccupied}.Bookable())
	assert.False(t, ServiceInstance{Status: StatusMaintenance}.Bookable())
	assert.True(t, BookingDetail{Status: DetailActive}.Active())
	assert.False(t, BookingDetail{Status: DetailCancelled}.Active())
}
