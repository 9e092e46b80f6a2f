package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/waypoint/internal/cache"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/internal/knowledge"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Common errors for retrieval passes.
var (
	// ErrTimedOut indicates the isolated worker exceeded its wall-clock ceiling.
	ErrTimedOut = errors.New("retrieval timed out")
	// ErrIsolationFailure indicates the worker process could not be spawned.
	ErrIsolationFailure = errors.New("retrieval worker isolation failed")
)

// isolateFunc runs a gathering pass under process isolation. The
// default spawns a worker subprocess; tests substitute their own.
type isolateFunc func(ctx context.Context, req workerRequest) (*models.RetrievalResult, error)

// Worker coordinates retrieval passes: keyword derivation, cache
// lookup, isolated gathering, and the degraded in-process fallback.
type Worker struct {
	cfg       config.RetrievalConfig
	ttl       time.Duration
	cache     cache.Store
	roots     []string
	mapIndex  string
	isolate   isolateFunc
	artifacts *ArtifactWriter
}

// Option configures a Worker.
type Option func(*Worker)

// WithIsolation overrides how the gathering pass is isolated.
func WithIsolation(fn isolateFunc) Option {
	return func(w *Worker) { w.isolate = fn }
}

// WithArtifacts enables writing the latest retrieval result to disk
// for inspection.
func WithArtifacts(aw *ArtifactWriter) Option {
	return func(w *Worker) { w.artifacts = aw }
}

// NewWorker creates a retrieval worker. The cache store is shared with
// the rest of the process; ttl bounds how long cached results live.
func NewWorker(cfg config.RetrievalConfig, ttl time.Duration, store cache.Store, kn config.KnowledgeConfig, opts ...Option) *Worker {
	w := &Worker{
		cfg:      cfg,
		ttl:      ttl,
		cache:    store,
		roots:    kn.Roots,
		mapIndex: kn.MapIndex,
	}
	w.isolate = w.isolateSubprocess
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Retrieve runs a retrieval pass for the request. Identical queries
// within the cache TTL return the cached result without re-running the
// pass; the bool reports a cache hit. On isolation failure the pass
// degrades to a tightly bounded in-process search rather than failing
// the request. A timeout is returned as ErrTimedOut with a gap-only
// result so the caller can still proceed.
func (w *Worker) Retrieve(ctx context.Context, req models.Request) (*models.RetrievalResult, bool, error) {
	keywords := DeriveKeywords(req.Description, req.ContextHints)
	key := w.cacheKey(keywords)

	value, hit, err := w.cache.GetOrCompute(key, w.ttl, func() ([]byte, error) {
		result, err := w.runPass(ctx, keywords)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		if errors.Is(err, ErrTimedOut) {
			// Not cached: the next identical query gets a fresh attempt.
			return &models.RetrievalResult{Gaps: keywords, Truncated: true}, false, err
		}
		return nil, false, err
	}

	var result models.RetrievalResult
	if err := json.Unmarshal(value, &result); err != nil {
		return nil, false, fmt.Errorf("decoding cached retrieval: %w", err)
	}
	if result.Excerpts == nil {
		result.Excerpts = make(map[string]string)
	}

	if w.artifacts != nil {
		w.artifacts.WriteLatest(req.ID, keywords, &result)
	}
	return &result, hit, nil
}

// runPass executes one gathering pass under isolation, falling back to
// the degraded in-process path when the worker cannot be spawned.
func (w *Worker) runPass(ctx context.Context, keywords []string) (*models.RetrievalResult, error) {
	passCtx, cancel := context.WithTimeout(ctx, w.cfg.Timeout)
	defer cancel()

	result, err := w.isolate(passCtx, workerRequest{
		Keywords:      keywords,
		Roots:         w.roots,
		MapIndexPath:  w.mapIndex,
		MaxFiles:      w.cfg.MaxFiles,
		MaxFileBytes:  int(w.cfg.MaxFileBytes),
		ExcerptBytes:  w.cfg.ExcerptBytes,
		MemoryCeiling: w.cfg.MemoryCeiling,
	})
	if err == nil {
		return result, nil
	}
	if passCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s", ErrTimedOut, w.cfg.Timeout)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Isolation failed for a reason other than time: degrade to the
	// in-process path with tighter ceilings.
	return w.degraded(passCtx, keywords)
}

// degraded runs the fallback in-process search: fewer files, smaller
// samples, same result shape. Results are flagged so downstream
// consumers know coverage is reduced.
func (w *Worker) degraded(ctx context.Context, keywords []string) (*models.RetrievalResult, error) {
	store := w.openStore()
	result, err := gather(ctx, store, keywords, limits{
		MaxFiles:     w.cfg.FallbackMaxFiles,
		MaxFileBytes: int(w.cfg.FallbackSampleBytes),
		ExcerptBytes: w.cfg.ExcerptBytes,
		TotalBytes:   int64(w.cfg.FallbackMaxFiles) * w.cfg.FallbackSampleBytes,
	})
	if err != nil {
		return nil, err
	}
	result.Degraded = true
	result.Truncated = true
	return result, nil
}

// openStore builds the knowledge store view for this worker's roots,
// preferring the curated map index when present.
func (w *Worker) openStore() knowledge.Store {
	fs := knowledge.NewFSStore(w.roots, 1024)
	if w.mapIndex != "" {
		if indexed, err := knowledge.LoadMapIndex(w.mapIndex); err == nil {
			return knowledge.Multi{indexed, fs}
		}
	}
	return fs
}

// cacheKey derives the cache key for a keyword set. The ceiling
// version is folded in so configuration changes invalidate prior
// results.
func (w *Worker) cacheKey(keywords []string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(keywords, ",")))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(w.roots, ",")))
	h.Write([]byte("|"))
	h.Write([]byte(w.cfg.ConfigVersion))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
