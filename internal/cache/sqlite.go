package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the persistent cache backend. It keeps retrieval results
// across process restarts so repeated queries within the TTL cost zero I/O.
type SQLiteStore struct {
	conn *sql.DB
	path string
	mu   sync.Mutex
	// inflight serializes population per key, same discipline as MemoryStore.
	inflight map[string]chan struct{}
	now      func() time.Time
}

// DefaultCachePath returns the project-local cache database path.
func DefaultCachePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".waypoint", "cache", "retrieval.db")
}

// OpenSQLite opens (creating if needed) the SQLite cache at the given path.
// WAL mode is enabled for concurrent reads.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS cache_entries (
			key         TEXT PRIMARY KEY,
			value       BLOB NOT NULL,
			created_at  INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL
		)
	`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}

	return &SQLiteStore{
		conn:     conn,
		path:     path,
		inflight: make(map[string]chan struct{}),
		now:      time.Now,
	}, nil
}

// Get returns the live entry for key, deleting it if expired.
func (s *SQLiteStore) Get(key string) (*Entry, bool, error) {
	var value []byte
	var createdAt, ttlSeconds int64

	err := s.conn.QueryRow(`
		SELECT value, created_at, ttl_seconds FROM cache_entries WHERE key = ?
	`, key).Scan(&value, &createdAt, &ttlSeconds)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache lookup: %w", err)
	}

	entry := &Entry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Unix(createdAt, 0),
		TTL:       time.Duration(ttlSeconds) * time.Second,
	}

	if entry.Expired(s.now()) {
		// Lazy eviction on lookup only.
		if _, err := s.conn.Exec(`DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return nil, false, fmt.Errorf("evict expired entry: %w", err)
		}
		return nil, false, nil
	}

	return entry, true, nil
}

// Put writes an entry, overwriting any existing one. The upsert keeps the
// primary key unique, so concurrent writers still end with one entry per key.
func (s *SQLiteStore) Put(key string, value []byte, ttl time.Duration) error {
	_, err := s.conn.Exec(`
		INSERT INTO cache_entries (key, value, created_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			ttl_seconds = excluded.ttl_seconds
	`, key, value, s.now().Unix(), int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

// GetOrCompute returns the cached value or populates it via compute,
// serializing concurrent misses on the same key within this process.
func (s *SQLiteStore) GetOrCompute(key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, bool, error) {
	for {
		if entry, ok, err := s.Get(key); err != nil {
			return nil, false, err
		} else if ok {
			return entry.Value, true, nil
		}

		s.mu.Lock()
		if wait, busy := s.inflight[key]; busy {
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
		s.mu.Unlock()

		if err != nil {
			return nil, false, err
		}
		if err := s.Put(key, value, ttl); err != nil {
			return nil, false, err
		}
		return value, false, nil
	}
}

// Stats reports live and expired entry counts.
func (s *SQLiteStore) Stats() (Stats, error) {
	rows, err := s.conn.Query(`SELECT length(value), created_at, ttl_seconds FROM cache_entries`)
	if err != nil {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	now := s.now()
	for rows.Next() {
		var size, createdAt, ttlSeconds int64
		if err := rows.Scan(&size, &createdAt, &ttlSeconds); err != nil {
			return Stats{}, fmt.Errorf("scan cache row: %w", err)
		}
		expiresAt := time.Unix(createdAt, 0).Add(time.Duration(ttlSeconds) * time.Second)
		if now.After(expiresAt) {
			stats.Expired++
			continue
		}
		stats.Entries++
		stats.Bytes += size
	}
	return stats, rows.Err()
}

// Purge removes expired entries.
func (s *SQLiteStore) Purge() (int, error) {
	res, err := s.conn.Exec(`
		DELETE FROM cache_entries WHERE created_at + ttl_seconds < ?
	`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
