package cache

import (
	"sync"
	"time"
)

// MemoryStore is the in-memory cache backend. It is safe for concurrent use
// across requests; population is serialized per key via in-flight tracking.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
	// inflight maps keys to channels closed when their population finishes.
	inflight map[string]chan struct{}
	// now is replaceable for tests.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]*Entry),
		inflight: make(map[string]chan struct{}),
		now:      time.Now,
	}
}

// Get returns the live entry for key. Expired entries are evicted here,
// bounded by lookup frequency.
func (s *MemoryStore) Get(key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.getLocked(key)
}

// getLocked looks up and lazily evicts. Caller must hold s.mu.
func (s *MemoryStore) getLocked(key string) (*Entry, bool, error) {
	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(s.now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return entry, true, nil
}

// Put writes an entry, overwriting any existing one.
func (s *MemoryStore) Put(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.putLocked(key, value, ttl)
	return nil
}

func (s *MemoryStore) putLocked(key string, value []byte, ttl time.Duration) {
	s.entries[key] = &Entry{
		Key:       key,
		Value:     append([]byte(nil), value...),
		CreatedAt: s.now(),
		TTL:       ttl,
	}
}

// GetOrCompute returns the cached value or populates it via compute.
// A concurrent miss on the same key waits for the in-flight population and
// then re-reads, so the store ends with exactly one entry per key.
func (s *MemoryStore) GetOrCompute(key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error) {
	for {
		s.mu.Lock()
		if entry, ok, _ := s.getLocked(key); ok {
			s.mu.Unlock()
			return entry.Value, true, nil
		}

		if wait, busy := s.inflight[key]; busy {
			// Another goroutine is populating this key; wait and re-check.
			s.mu.Unlock()
			<-wait
			continue
		}

		done := make(chan struct{})
		s.inflight[key] = done
		s.mu.Unlock()

		value, err := compute()

		s.mu.Lock()
		delete(s.inflight, key)
		close(done)
		if err != nil {
			s.mu.Unlock()
			return nil, false, err
		}
		s.putLocked(key, value, ttl)
		s.mu.Unlock()

		return value, false, nil
	}
}

// Stats reports live and expired entry counts.
func (s *MemoryStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	now := s.now()
	for _, entry := range s.entries {
		if entry.Expired(now) {
			stats.Expired++
			continue
		}
		stats.Entries++
		stats.Bytes += int64(len(entry.Value))
	}
	return stats, nil
}

// Purge removes expired entries.
func (s *MemoryStore) Purge() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if entry.Expired(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }
