package store

import (
	"context"
	"sync"
	"time"
)

// pruneEvery is how many writes pass between sweeps of expired keys.
const pruneEvery = 128

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = never
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryStore is a concurrency-safe in-memory KV. State does not survive a
// restart; use the Redis or SQLite store for that. Expired keys are dropped
// on read and swept periodically on write, so keys that are never read
// again do not pile up.
type MemoryStore struct {
	mu sync.RWMutex

	data   map[string]memoryEntry
	writes int
	now    func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// Get returns a copy of the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(s.now()) {
		s.mu.Lock()
		if cur, ok := s.data[key]; ok && cur.expired(s.now()) {
			delete(s.data, key)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores a copy of value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry := memoryEntry{value: v}
	if ttl > 0 {
		entry.expiresAt = now.Add(ttl)
	}
	s.data[key] = entry

	s.writes++
	if s.writes%pruneEvery == 0 {
		s.pruneLocked(now)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for k, e := range s.data {
		if e.expired(now) {
			delete(s.data, k)
		}
	}
}
