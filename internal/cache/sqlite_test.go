package cache

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "retrieval.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := openTestSQLite(t)

	if err := store.Put("k", []byte("persisted"), time.Hour); err != nil {
		t.Fatal(err)
	}
	entry, ok, err := store.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if !bytes.Equal(entry.Value, []byte("persisted")) {
		t.Errorf("value = %q", entry.Value)
	}
}

func TestSQLiteOverwrite(t *testing.T) {
	store := openTestSQLite(t)

	store.Put("k", []byte("old"), time.Hour)
	if err := store.Put("k", []byte("new"), time.Hour); err != nil {
		t.Fatal(err)
	}

	entry, ok, _ := store.Get("k")
	if !ok {
		t.Fatal("expected a hit")
	}
	if !bytes.Equal(entry.Value, []byte("new")) {
		t.Errorf("value = %q, want %q", entry.Value, "new")
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 {
		t.Errorf("entries = %d, want 1", stats.Entries)
	}
}

func TestSQLiteExpiredEntryMisses(t *testing.T) {
	store := openTestSQLite(t)

	if err := store.Put("k", []byte("v"), -time.Second); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Fatal("expected a miss for an already-expired entry")
	}

	// The miss deletes the row.
	stats, _ := store.Stats()
	if stats.Entries != 0 {
		t.Errorf("entries = %d, want 0 after lazy eviction", stats.Entries)
	}
}

func TestSQLitePurge(t *testing.T) {
	store := openTestSQLite(t)

	store.Put("live", []byte("a"), time.Hour)
	store.Put("stale", []byte("b"), -time.Second)

	removed, err := store.Purge()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("purged %d, want 1", removed)
	}
	if _, ok, _ := store.Get("live"); !ok {
		t.Error("live entry should survive the purge")
	}
}

func TestSQLiteGetOrCompute(t *testing.T) {
	store := openTestSQLite(t)

	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	value, hit, err := store.GetOrCompute("k", time.Hour, compute)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first lookup should be a miss")
	}
	if !bytes.Equal(value, []byte("computed")) {
		t.Errorf("value = %q", value)
	}

	value, hit, err = store.GetOrCompute("k", time.Hour, compute)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second lookup should be a hit")
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
	if !bytes.Equal(value, []byte("computed")) {
		t.Errorf("value = %q", value)
	}
}
