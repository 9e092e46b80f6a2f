// Package cache provides the process-wide TTL cache store for retrieval
// results. Entries are lazily evicted on lookup, never proactively swept,
// and population is single-writer-per-key.
package cache

import "time"

// Entry is a cached value with its TTL metadata.
type Entry struct {
	// Key is the cache key.
	Key string
	// Value is the cached payload.
	Value []byte
	// CreatedAt is when the entry was written.
	CreatedAt time.Time
	// TTL is the time-to-live after CreatedAt.
	TTL time.Duration
}

// Expired returns true once now is past CreatedAt+TTL. An expired entry is
// never returned from a lookup.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Stats summarizes cache contents for operator inspection.
type Stats struct {
	// Entries is the number of live (non-expired) entries.
	Entries int
	// Expired is the number of expired entries not yet evicted.
	Expired int
	// Bytes is the total payload size of live entries.
	Bytes int64
}

// Store is the cache contract shared by the in-memory and SQLite backends.
type Store interface {
	// Get returns the live entry for key, lazily evicting it if expired.
	Get(key string) (*Entry, bool, error)
	// Put writes an entry, overwriting any existing one (last-writer-wins).
	Put(key string, value []byte, ttl time.Duration) error
	// GetOrCompute returns the cached value for key, or runs compute and
	// caches its result. Concurrent misses on the same key wait for the
	// in-flight population rather than computing twice. The bool reports
	// whether the value came from cache.
	GetOrCompute(key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error)
	// Stats reports cache contents.
	Stats() (Stats, error)
	// Purge removes expired entries and returns how many were removed.
	// This is an explicit operator action, never called by lookups.
	Purge() (int, error)
	// Close releases backend resources.
	Close() error
}
