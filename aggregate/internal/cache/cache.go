// Package cache provides the process-wide TTL store used by the fallback
// chain: fresh reads honor the TTL, stale reads ignore it.
//
// Entries are idempotent best-effort snapshots, never correctness-critical
// state, so per-key atomic overwrite under a single mutex is all the
// consistency the callers need. Entries live until overwritten; unbounded
// growth within one process lifetime is acceptable for this workload
// (the key space is one key per module plus one warm-seed key per module).
package cache

import (
	"sync"
	"time"
)

// Store is an in-memory key→entry map with write timestamps.
// Construct one at process start and inject it; there is no global instance.
type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]entry[V]
	now   func() time.Time
}

type entry[V any] struct {
	value     V
	writtenAt time.Time
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithNow overrides the clock. Tests use this to cross TTL boundaries
// without sleeping.
func WithNow[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) { s.now = now }
}

// New creates an empty Store.
func New[V any](opts ...Option[V]) *Store[V] {
	s := &Store[V]{
		items: make(map[string]entry[V]),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set overwrites key unconditionally and stamps the current time.
func (s *Store[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = entry[V]{value: value, writtenAt: s.now()}
}

// GetFresh returns the value for key only if its age is within ttl.
func (s *Store[V]) GetFresh(key string, ttl time.Duration) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	if s.now().Sub(e.writtenAt) > ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetStale returns the value for key regardless of age, along with its
// write time, or false if the key was never set.
func (s *Store[V]) GetStale(key string) (V, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		var zero V
		return zero, time.Time{}, false
	}
	return e.value, e.writtenAt, true
}

// Age returns how old the entry for key is, or false if absent.
func (s *Store[V]) Age(key string) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[key]
	if !ok {
		return 0, false
	}
	return s.now().Sub(e.writtenAt), true
}

// Delete removes key. Used by the nocache refresh path in tests; absent
// keys are a no-op.
func (s *Store[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Keys returns all present keys. Read-only debug surface.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	return keys
}
