package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps keys in process memory. Expired entries are swept on
// write.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Reserve(_ context.Context, key, fingerprint string, ttl time.Duration) (*Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)
	if e, ok := s.entries[key]; ok {
		rec := e.record
		return &rec, false, nil
	}
	s.entries[key] = memoryEntry{
		record:    Record{State: StatePending, Fingerprint: fingerprint},
		expiresAt: now.Add(ttl),
	}
	return nil, true, nil
}

func (s *InMemoryStore) Complete(_ context.Context, key string, rec Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; !ok {
		return ErrNotReserved
	}
	s.entries[key] = memoryEntry{record: rec, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len reports the number of live keys.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	return len(s.entries)
}

func (s *InMemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}
