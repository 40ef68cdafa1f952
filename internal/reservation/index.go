package reservation

import (
	"slices"
	"sort"
	"sync"

	"github.com/iliyamo/resort-reservation/internal/model"
)

// Slot is one committed interval in the index together with the booking
// detail that holds it.
type Slot struct {
	DetailID string
	Interval model.Interval
}

// slotSet is the ordered, disjoint set of slots of one service instance.
// It has no lock of its own: every access happens inside the instance's
// exclusive section.
type slotSet struct {
	loaded bool
	slots  []Slot // sorted by Interval.Start, pairwise disjoint
}

// IntervalIndex stores committed booking intervals per service instance.
// The map itself is guarded by mu; each set is guarded by the caller's
// per-instance section.
type IntervalIndex struct {
	mu   sync.Mutex
	sets map[uint64]*slotSet
}

// NewIntervalIndex returns an empty index.
func NewIntervalIndex() *IntervalIndex {
	return &IntervalIndex{sets: make(map[uint64]*slotSet)}
}

func (x *IntervalIndex) set(serviceID uint64) *slotSet {
	x.mu.Lock()
	defer x.mu.Unlock()
	s, ok := x.sets[serviceID]
	if !ok {
		s = &slotSet{}
		x.sets[serviceID] = s
	}
	return s
}

// Overlaps reports whether any committed interval of serviceID intersects
// iv under half-open semantics.
func (x *IntervalIndex) Overlaps(serviceID uint64, iv model.Interval) bool {
	_, ok := x.set(serviceID).conflict(iv)
	return ok
}

// Conflict returns the committed slot that intersects iv, if any.
func (x *IntervalIndex) Conflict(serviceID uint64, iv model.Interval) (Slot, bool) {
	return x.set(serviceID).conflict(iv)
}

// Insert adds a slot.  The caller must have checked Overlaps inside the
// same exclusive section.
func (x *IntervalIndex) Insert(serviceID uint64, slot Slot) {
	s := x.set(serviceID)
	i := sort.Search(len(s.slots), func(i int) bool {
		return !s.slots[i].Interval.Start.Before(slot.Interval.Start)
	})
	s.slots = slices.Insert(s.slots, i, slot)
}

// Remove deletes the slot of detailID.  Detail ids are unique, so the
// interval read back from a store (possibly at coarser precision) is not
// needed to find it.  It reports false when no such slot exists.
func (x *IntervalIndex) Remove(serviceID uint64, detailID string) bool {
	s := x.set(serviceID)
	for i, sl := range s.slots {
		if sl.DetailID == detailID {
			s.slots = slices.Delete(s.slots, i, i+1)
			return true
		}
	}
	return false
}

// Slots returns a copy of the slots of serviceID that intersect window.
// A zero window returns every slot.
func (x *IntervalIndex) Slots(serviceID uint64, window model.Interval) []Slot {
	s := x.set(serviceID)
	out := make([]Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		if (window.Start.IsZero() && window.End.IsZero()) || sl.Interval.Overlaps(window) {
			out = append(out, sl)
		}
	}
	return out
}

// Len returns the number of committed slots of serviceID.
func (x *IntervalIndex) Len(serviceID uint64) int {
	return len(x.set(serviceID).slots)
}

func (x *IntervalIndex) loaded(serviceID uint64) bool {
	return x.set(serviceID).loaded
}

func (x *IntervalIndex) markLoaded(serviceID uint64) {
	x.set(serviceID).loaded = true
}

// reset drops everything known about serviceID so the next access reloads
// it from the store.
func (x *IntervalIndex) reset(serviceID uint64) {
	s := x.set(serviceID)
	s.loaded = false
	s.slots = nil
}

// conflict finds the only candidate that can intersect iv: the last slot
// starting before iv.End.  Slots are disjoint and sorted, so their ends are
// sorted too and no earlier slot can reach past that candidate.
func (s *slotSet) conflict(iv model.Interval) (Slot, bool) {
	i := sort.Search(len(s.slots), func(i int) bool {
		return !s.slots[i].Interval.Start.Before(iv.End)
	})
	if i == 0 {
		return Slot{}, false
	}
	cand := s.slots[i-1]
	if cand.Interval.End.After(iv.Start) {
		return cand, true
	}
	return Slot{}, false
}
