// Package decision implements the keyed cache for asynchronous fetch results
// that every evaluator reads through. Entries carry a staleness window, a
// garbage-collection window, and a pluggable retry predicate. The store is an
// explicit, injectable object rather than ambient package state so tests can
// construct an isolated instance per case.
package decision

import (
	"context"
	"sync"
	"time"

	"github.com/daconrilcy/horoscope-front-sub002/internal/types"
)

// Fetcher loads the value for one key from the network.
type Fetcher[T any] func(ctx context.Context) (T, error)

// RetryPredicate decides whether a failed fetch attempt should be retried.
// failureCount is the number of attempts that have already failed.
type RetryPredicate func(failureCount int, err error) bool

// Options configures one Get call. The windows are recorded on the entry, so
// the most recent caller's windows govern eviction.
type Options struct {
	// StaleAfter is the age beyond which cached data is eligible for refetch.
	StaleAfter time.Duration
	// GCAfter is the duration of inactivity after which the entry is evicted.
	GCAfter time.Duration
	// Retry is consulted between attempts inside a single in-flight fetch.
	// Nil means no retries.
	Retry RetryPredicate
}

// Result is a point-in-time snapshot of one cache entry.
type Result[T any] struct {
	Data      T
	HasData   bool
	Err       error
	Loading   bool // a fetch is in flight and no data has ever been observed
	FetchedAt time.Time
}

type entry[T any] struct {
	data      T
	hasData   bool
	err       error
	fetchedAt time.Time
	lastUsed  time.Time
	gcAfter   time.Duration

	// gen guards against late responses mutating state that was invalidated
	// or evicted while the fetch was outstanding.
	gen uint64

	// inflight is non-nil while a fetch is running and closed on completion.
	// At most one fetch per key is outstanding; concurrent callers attach to it.
	inflight chan struct{}

	invalid bool
}

// Store is a namespaced keyed cache. All mutation goes through the single
// fetch path in Get; components never write entries directly.
type Store[T any] struct {
	mu        sync.Mutex
	clock     types.Clock
	entries   map[string]map[string]*entry[T]
	lastSweep time.Time

	// sweepEvery bounds how often opportunistic GC runs on the hot path.
	sweepEvery time.Duration
}

// NewStore creates an empty store. A nil clock falls back to the real clock.
func NewStore[T any](clock types.Clock) *Store[T] {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Store[T]{
		clock:      clock,
		entries:    make(map[string]map[string]*entry[T]),
		sweepEvery: 10 * time.Second,
	}
}

// Get returns the current state of (ns, key) immediately. If the entry is
// missing, invalidated, or older than opts.StaleAfter and no fetch is in
// flight, exactly one background fetch is started; concurrent callers share
// it. Data younger than the staleness window is served without a network call.
func (s *Store[T]) Get(ns, key string, fetch Fetcher[T], opts Options) Result[T] {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.maybeSweepLocked(now)

	keys, ok := s.entries[ns]
	if !ok {
		keys = make(map[string]*entry[T])
		s.entries[ns] = keys
	}
	e, ok := keys[key]
	if !ok {
		e = &entry[T]{}
		keys[key] = e
	}
	e.lastUsed = now
	if opts.GCAfter > 0 {
		e.gcAfter = opts.GCAfter
	}

	stale := e.invalid || now.Sub(e.fetchedAt) >= opts.StaleAfter
	if stale && e.inflight == nil && fetch != nil {
		ch := make(chan struct{})
		e.inflight = ch
		gen := e.gen
		go s.runFetch(ns, key, gen, ch, fetch, opts.Retry)
	}

	return Result[T]{
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		Loading:   e.inflight != nil && !e.hasData,
		FetchedAt: e.fetchedAt,
	}
}

// Peek returns the current state of (ns, key) without triggering a fetch.
func (s *Store[T]) Peek(ns, key string) (Result[T], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ns][key]
	if !ok {
		return Result[T]{}, false
	}
	return Result[T]{
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		Loading:   e.inflight != nil && !e.hasData,
		FetchedAt: e.fetchedAt,
	}, true
}

// Wait blocks until the in-flight fetch for (ns, key), if any, completes or
// ctx is done. It returns immediately when nothing is in flight.
func (s *Store[T]) Wait(ctx context.Context, ns, key string) error {
	s.mu.Lock()
	var ch chan struct{}
	if e, ok := s.entries[ns][key]; ok {
		ch = e.inflight
	}
	s.mu.Unlock()

	if ch == nil {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate marks (ns, key) for refetch on the next Get. A response from a
// fetch that was outstanding at invalidation time is discarded.
func (s *Store[T]) Invalidate(ns, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[ns][key]; ok {
		e.invalid = true
		e.gen++
	}
}

// InvalidateNamespace marks every entry in ns for refetch.
func (s *Store[T]) InvalidateNamespace(ns string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries[ns] {
		e.invalid = true
		e.gen++
	}
}

// Sweep evicts entries unused for longer than their GC window. It runs
// opportunistically on Get; long-lived owners may also call it directly.
func (s *Store[T]) Sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked(now)
}

// Len reports the number of live entries across all namespaces.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, keys := range s.entries {
		n += len(keys)
	}
	return n
}

func (s *Store[T]) maybeSweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepEvery {
		return
	}
	s.sweepLocked(now)
}

func (s *Store[T]) sweepLocked(now time.Time) {
	s.lastSweep = now
	for ns, keys := range s.entries {
		for key, e := range keys {
			if e.gcAfter <= 0 || e.inflight != nil {
				continue
			}
			if now.Sub(e.lastUsed) >= e.gcAfter {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(s.entries, ns)
		}
	}
}

// runFetch executes the fetch (with predicate-driven retries) and applies the
// outcome, unless the entry moved to a newer generation in the meantime.
func (s *Store[T]) runFetch(ns, key string, gen uint64, ch chan struct{}, fetch Fetcher[T], retry RetryPredicate) {
	defer close(ch)

	var data T
	var err error
	failures := 0
	for {
		data, err = fetch(context.Background())
		if err == nil {
			break
		}
		failures++
		if retry == nil || !retry(failures, err) {
			break
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[ns][key]
	if !ok {
		return
	}
	if e.inflight == ch {
		e.inflight = nil
	}
	if e.gen != gen {
		// Invalidated while outstanding; this response belongs to a dead
		// generation and must not resurrect state.
		return
	}
	e.fetchedAt = s.clock.Now()
	e.invalid = false
	if err == nil {
		e.data = data
		e.hasData = true
		e.err = nil
	} else {
		// Keep any stale data; callers decide whether to show it.
		e.err = err
	}
}
