package reservation

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// sections hands out exclusive sections keyed by a single resource (one
// service instance or one event).  Waiting for a key never blocks holders
// of other keys, and a waiter whose context ends gives up without having
// touched any state.
type sections[K cmp.Ordered] struct {
	mu    sync.Mutex
	locks map[K]*sectionLock
}

type sectionLock struct {
	sem  chan struct{}
	refs int
}

func newSections[K cmp.Ordered]() *sections[K] {
	return &sections[K]{locks: make(map[K]*sectionLock)}
}

// acquire enters the section for key.  The returned release must be called
// exactly once.
func (s *sections[K]) acquire(ctx context.Context, key K) (release func(), err error) {
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sectionLock{sem: make(chan struct{}, 1)}
		s.locks[key] = l
	}
	l.refs++
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		s.unref(key, l)
		return nil, err
	}
	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			s.unref(key, l)
		}, nil
	case <-ctx.Done():
		s.unref(key, l)
		return nil, ctx.Err()
	}
}

// acquireAll enters the sections of every key in ascending order so that
// two multi-key callers can never wait on each other in a cycle.
func (s *sections[K]) acquireAll(ctx context.Context, keys []K) (release func(), err error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range sorted {
		rel, err := s.acquire(ctx, k)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releaseAll, nil
}

func (s *sections[K]) unref(key K, l *sectionLock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(s.locks, key)
	}
}

// held returns the number of keys with at least one holder or waiter.
func (s *sections[K]) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
