package cache

import (
	"bytes"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	if err := store.Put("k", []byte("value"), time.Hour); err != nil {
		t.Fatal(err)
	}

	entry, ok, err := store.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a cache hit within TTL")
	}
	if !bytes.Equal(entry.Value, []byte("value")) {
		t.Errorf("value = %q, want %q", entry.Value, "value")
	}
}

func TestMemoryStoreLookupIdempotent(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put("k", []byte("payload"), time.Hour); err != nil {
		t.Fatal(err)
	}

	first, ok, _ := store.Get("k")
	if !ok {
		t.Fatal("expected a hit")
	}
	second, ok, _ := store.Get("k")
	if !ok {
		t.Fatal("expected a second hit with no intervening write")
	}
	if !bytes.Equal(first.Value, second.Value) {
		t.Error("two lookups with no intervening write returned different content")
	}
}

func TestMemoryStoreExpiryIsLazy(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	if err := store.Put("k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	// Within TTL: hit.
	if _, ok, _ := store.Get("k"); !ok {
		t.Fatal("expected a hit before expiry")
	}

	// Past TTL: miss, and the entry is evicted by the lookup itself.
	current = current.Add(2 * time.Minute)
	if _, ok, _ := store.Get("k"); ok {
		t.Fatal("expected a miss after TTL")
	}

	stats, _ := store.Stats()
	if stats.Entries != 0 || stats.Expired != 0 {
		t.Errorf("expected empty store after lazy eviction, got %+v", stats)
	}
}

func TestMemoryStoreConcurrentMissSingleEntry(t *testing.T) {
	store := NewMemoryStore()

	var computes atomic.Int32
	compute := func() ([]byte, error) {
		computes.Add(1)
		time.Sleep(10 * time.Millisecond)
		return []byte("result"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, _, err := store.GetOrCompute("shared", time.Hour, compute)
			if err != nil {
				t.Errorf("GetOrCompute: %v", err)
				return
			}
			if !bytes.Equal(value, []byte("result")) {
				t.Errorf("value = %q", value)
			}
		}()
	}
	wg.Wait()

	if n := computes.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1 (single-writer-per-key)", n)
	}

	stats, _ := store.Stats()
	if stats.Entries != 1 {
		t.Errorf("expected exactly one entry, got %d", stats.Entries)
	}
}

func TestMemoryStoreComputeErrorNotCached(t *testing.T) {
	store := NewMemoryStore()

	wantErr := errors.New("boom")
	_, _, err := store.GetOrCompute("k", time.Hour, func() ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}

	if _, ok, _ := store.Get("k"); ok {
		t.Error("failed compute should not populate the cache")
	}
}

func TestMemoryStorePurge(t *testing.T) {
	store := NewMemoryStore()
	current := time.Now()
	store.now = func() time.Time { return current }

	store.Put("live", []byte("a"), time.Hour)
	store.Put("stale", []byte("b"), time.Minute)

	current = current.Add(10 * time.Minute)
	removed, err := store.Purge()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("purged %d entries, want 1", removed)
	}
	if _, ok, _ := store.Get("live"); !ok {
		t.Error("live entry should survive the purge")
	}
}
