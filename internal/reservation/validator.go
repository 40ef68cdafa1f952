package reservation

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Granularity is the unit a service type is booked in.
type Granularity int

const (
	// GranularityDay books whole calendar days (midnight to midnight).
	GranularityDay Granularity = iota
	// GranularityTimeOfDay books clock times within a single day.
	GranularityTimeOfDay
)

// Policy is the booking rule set for one service type.
type Policy struct {
	Granularity Granularity
	MinDuration time.Duration // zero means any positive length
	MaxDuration time.Duration // zero means uncapped
	SameDay     bool
}

// MaxSlotDuration caps every time-of-day booking.
const MaxSlotDuration = 2 * time.Hour

var slotPolicy = Policy{
	Granularity: GranularityTimeOfDay,
	MaxDuration: MaxSlotDuration,
	SameDay:     true,
}

var policies = map[model.ServiceType]Policy{
	model.ServiceRoom:            {Granularity: GranularityDay},
	model.ServiceRestaurantTable: slotPolicy,
	model.ServicePoolChair:       slotPolicy,
	model.ServicePlayground:      slotPolicy,
	model.ServiceAnimalActivity:  slotPolicy,
}

// PolicyFor returns the booking policy for t.
func PolicyFor(t model.ServiceType) (Policy, bool) {
	p, ok := policies[t]
	return p, ok
}

// Validate checks iv against the policy of service type t.  It performs no
// I/O and takes no locks.
func Validate(t model.ServiceType, iv model.Interval) error {
	p, ok := policies[t]
	if !ok {
		return fmt.Errorf("%w: unknown service type %q", ErrMalformedInput, t)
	}
	if iv.Start.IsZero() || iv.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrMalformedInput)
	}
	switch p.Granularity {
	case GranularityDay:
		if !isMidnight(iv.Start) || !isMidnight(iv.End) {
			return fmt.Errorf("%w: %s bookings must cover whole days", ErrInvalidDuration, t)
		}
		if iv.End.Before(iv.Start.AddDate(0, 0, 1)) {
			return fmt.Errorf("%w: %s bookings last at least one day", ErrInvalidDuration, t)
		}
	case GranularityTimeOfDay:
		if !iv.End.After(iv.Start) {
			return fmt.Errorf("%w: end must be after start", ErrInvalidDuration)
		}
		if p.SameDay && !sameDay(iv.Start, iv.End) {
			return fmt.Errorf("%w: %s bookings must fall on a single day", ErrInvalidDuration, t)
		}
		if p.MaxDuration > 0 && iv.Duration() > p.MaxDuration {
			return fmt.Errorf("%w: %s bookings last at most %s", ErrInvalidDuration, t, p.MaxDuration)
		}
	}
	if p.MinDuration > 0 && iv.Duration() < p.MinDuration {
		return fmt.Errorf("%w: %s bookings last at least %s", ErrInvalidDuration, t, p.MinDuration)
	}
	return nil
}

const dateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseInterval turns raw request values into an interval for service
// type t.  Day-granular types take YYYY-MM-DD (or an RFC3339 instant);
// others take a date and clock time.  Values without an offset are read
// in UTC.  Fractions of a second are dropped.
func ParseInterval(t model.ServiceType, rawStart, rawEnd string) (model.Interval, error) {
	p, ok := policies[t]
	if !ok {
		return model.Interval{}, fmt.Errorf("%w: unknown service type %q", ErrMalformedInput, t)
	}
	start, err := parseInstant(p.Granularity, rawStart)
	if err != nil {
		return model.Interval{}, fmt.Errorf("%w: start %q", ErrMalformedInput, rawStart)
	}
	end, err := parseInstant(p.Granularity, rawEnd)
	if err != nil {
		return model.Interval{}, fmt.Errorf("%w: end %q", ErrMalformedInput, rawEnd)
	}
	return model.Interval{Start: start, End: end}, nil
}

func parseInstant(g Granularity, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty value")
	}
	if g == GranularityDay {
		if d, err := time.ParseInLocation(dateLayout, raw, time.UTC); err == nil {
			return d, nil
		}
	}
	var lastErr error
	for _, layout := range timeLayouts {
		v, err := time.ParseInLocation(layout, raw, time.UTC)
		if err == nil {
			return v.Truncate(time.Second), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
