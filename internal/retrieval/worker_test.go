package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ShayCichocki/waypoint/internal/cache"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/internal/knowledge"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

func testRetrievalConfig() config.RetrievalConfig {
	return config.RetrievalConfig{
		Timeout:             5 * time.Second,
		MemoryCeiling:       256 * 1024 * 1024,
		MaxFiles:            20,
		MaxFileBytes:        500 * 1024,
		ExcerptBytes:        10 * 1024,
		FallbackMaxFiles:    5,
		FallbackSampleBytes: 50 * 1024,
		ConfigVersion:       "1",
	}
}

func TestRetrieveCachesIdenticalQueries(t *testing.T) {
	var passes atomic.Int32
	stub := func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		passes.Add(1)
		return &models.RetrievalResult{
			SourceFiles: []string{"doc.md"},
			Excerpts:    map[string]string{"doc.md": "content"},
		}, nil
	}

	w := NewWorker(testRetrievalConfig(), time.Hour, cache.NewMemoryStore(),
		config.KnowledgeConfig{Roots: []string{t.TempDir()}}, WithIsolation(stub))

	req := models.Request{ID: "r1", Description: "analyze caching layer"}

	first, hit, err := w.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first retrieval should be a miss")
	}

	second, hit, err := w.Retrieve(context.Background(), models.Request{ID: "r2", Description: "analyze caching layer"})
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("identical query within TTL should hit the cache")
	}
	if passes.Load() != 1 {
		t.Errorf("gathering ran %d times, want 1", passes.Load())
	}
	if first.Excerpts["doc.md"] != second.Excerpts["doc.md"] {
		t.Error("cached result differs from the original")
	}
}

func TestRetrieveDifferentQueriesMiss(t *testing.T) {
	var passes atomic.Int32
	stub := func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		passes.Add(1)
		return &models.RetrievalResult{Excerpts: map[string]string{}}, nil
	}

	w := NewWorker(testRetrievalConfig(), time.Hour, cache.NewMemoryStore(),
		config.KnowledgeConfig{Roots: []string{t.TempDir()}}, WithIsolation(stub))

	w.Retrieve(context.Background(), models.Request{ID: "a", Description: "scheduler deadlines"})
	w.Retrieve(context.Background(), models.Request{ID: "b", Description: "database migrations"})

	if passes.Load() != 2 {
		t.Errorf("gathering ran %d times, want 2 for distinct queries", passes.Load())
	}
}

func TestRetrieveNoSourcesIsSuccessWithGaps(t *testing.T) {
	stub := func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		return gather(ctx, knowledge.Multi{}, req.Keywords, limits{
			MaxFiles:     req.MaxFiles,
			MaxFileBytes: req.MaxFileBytes,
			ExcerptBytes: req.ExcerptBytes,
		})
	}

	w := NewWorker(testRetrievalConfig(), time.Hour, cache.NewMemoryStore(),
		config.KnowledgeConfig{Roots: []string{t.TempDir()}}, WithIsolation(stub))

	result, _, err := w.Retrieve(context.Background(), models.Request{ID: "r", Description: "quantum flux capacitor"})
	if err != nil {
		t.Fatalf("empty coverage is not a failure: %v", err)
	}
	if !result.Empty() {
		t.Errorf("excerpts = %v, want none", result.Excerpts)
	}
	if len(result.Gaps) == 0 {
		t.Error("every derived keyword should be recorded as a gap")
	}
	for _, kw := range []string{"quantum", "flux", "capacitor"} {
		if !result.HasGap(kw) {
			t.Errorf("missing gap for %q", kw)
		}
	}
}

func TestRetrieveDegradesOnIsolationFailure(t *testing.T) {
	dir := knowledgeDir(t, map[string]string{
		"caching.md": "# Caching\n\ncaching fallback content\n",
	})
	stub := func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		return nil, ErrIsolationFailure
	}

	w := NewWorker(testRetrievalConfig(), time.Hour, cache.NewMemoryStore(),
		config.KnowledgeConfig{Roots: []string{dir}}, WithIsolation(stub))

	result, _, err := w.Retrieve(context.Background(), models.Request{ID: "r", Description: "caching behavior"})
	if err != nil {
		t.Fatalf("isolation failure should degrade, not fail: %v", err)
	}
	if !result.Degraded {
		t.Error("fallback result should be flagged degraded")
	}
	if !result.Truncated {
		t.Error("fallback result should be flagged truncated")
	}
	if result.Empty() {
		t.Error("fallback should still gather from the knowledge roots")
	}
}

func TestRetrieveTimeout(t *testing.T) {
	cfg := testRetrievalConfig()
	cfg.Timeout = 20 * time.Millisecond

	stub := func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	w := NewWorker(cfg, time.Hour, cache.NewMemoryStore(),
		config.KnowledgeConfig{Roots: []string{t.TempDir()}}, WithIsolation(stub))

	result, hit, err := w.Retrieve(context.Background(), models.Request{ID: "r", Description: "slow caching question"})
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	if hit {
		t.Error("timeout must not be a cache hit")
	}
	if result == nil || len(result.Gaps) == 0 {
		t.Error("timed-out retrieval should report all keywords as gaps")
	}

	// The failure was not cached: a retry attempts a fresh pass.
	var retried atomic.Bool
	w.isolate = func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error) {
		retried.Store(true)
		return &models.RetrievalResult{Excerpts: map[string]string{}}, nil
	}
	if _, _, err := w.Retrieve(context.Background(), models.Request{ID: "r2", Description: "slow caching question"}); err != nil {
		t.Fatal(err)
	}
	if !retried.Load() {
		t.Error("retry after timeout should run a fresh pass")
	}
}

func TestRunWorkerRoundTrip(t *testing.T) {
	dir := knowledgeDir(t, map[string]string{
		"caching.md": "# Caching\n\nworker process content about caching\n",
	})

	req := workerRequest{
		Keywords:     []string{"caching"},
		Roots:        []string{dir},
		MaxFiles:     5,
		MaxFileBytes: 1024,
		ExcerptBytes: 1024,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := RunWorker(context.Background(), bytes.NewReader(payload), &out); err != nil {
		t.Fatal(err)
	}

	var resp workerResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "" {
		t.Fatalf("worker error: %s", resp.Error)
	}
	if resp.Result == nil || resp.Result.Empty() {
		t.Fatal("worker returned no excerpts")
	}
	if !strings.Contains(resp.Result.Excerpts["caching.md"], "caching") {
		t.Errorf("excerpt = %q", resp.Result.Excerpts["caching.md"])
	}
}

func TestRunWorkerMalformedInput(t *testing.T) {
	var out bytes.Buffer
	if err := RunWorker(context.Background(), strings.NewReader("not json"), &out); err != nil {
		t.Fatal(err)
	}
	var resp workerResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" {
		t.Error("malformed input should be reported in-band")
	}
}
