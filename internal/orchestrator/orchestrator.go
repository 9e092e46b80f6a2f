package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ShayCichocki/waypoint/internal/cache"
	"github.com/ShayCichocki/waypoint/internal/capability"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/internal/llm"
	"github.com/ShayCichocki/waypoint/internal/registry"
	"github.com/ShayCichocki/waypoint/internal/retrieval"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Retriever is the retrieval surface the coordinator depends on.
// *retrieval.Worker satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, req models.Request) (*models.RetrievalResult, bool, error)
}

// Coordinator runs requests end to end: retrieval, plan building,
// phased execution, synthesis. One Coordinator serves many requests;
// each Execute call is independent.
type Coordinator struct {
	cfg       *config.Config
	retriever Retriever
	registry  *registry.Registry
	planner   *Planner
	reporter  *Reporter
	synth     *Synthesizer
	logger    *DebugLogger
	closers   []io.Closer
}

// New creates a Coordinator from configuration. Options override the
// default collaborators; the defaults build the full production stack
// (SQLite or in-memory cache, subprocess-isolated retrieval, builtin
// capability catalogue, heuristic or LLM second opinion).
func New(cfg *config.Config, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		cfg:    cfg,
		synth:  NewSynthesizer(),
		logger: NopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}
	setPackageLogger(c.logger)

	if c.registry == nil {
		reg, err := registry.LoadCatalogue(cfg.Knowledge.CatalogueDir, capability.Builtins())
		if err != nil {
			return nil, fmt.Errorf("loading capability catalogue: %w", err)
		}
		c.registry = reg
	}
	// Frozen before any execution: a plan's capability set cannot
	// shift underneath the scheduler.
	c.registry.Freeze()

	if c.retriever == nil {
		store, err := openCache(cfg)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store)
		c.retriever = retrieval.NewWorker(cfg.Retrieval, cfg.Cache.TTL, store, cfg.Knowledge,
			retrieval.WithArtifacts(retrieval.NewArtifactWriter(".")))
	}

	if c.planner == nil {
		c.planner = NewPlanner(cfg, defaultOpinion(cfg))
	}

	if c.reporter == nil {
		c.reporter = NewReporter(nil, cfg.Scheduler.EventQueueSize, cfg.Scheduler.AuditRingSize)
	}

	return c, nil
}

// Execute runs one request through the pipeline and returns the
// synthesized findings along with the executed plan. The request-wide
// timeout behaves exactly like external cancellation: unstarted work
// is skipped and a partial synthesis is still produced.
func (c *Coordinator) Execute(ctx context.Context, description string, hints []string) (*models.SynthesizedFindings, *models.ExecutionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Scheduler.RequestTimeout)
	defer cancel()

	req := models.Request{
		ID:           shortID(),
		Description:  description,
		ContextHints: hints,
	}
	c.logger.Log("request %s accepted: %.80s", req.ID, description)

	rr, hit, err := c.retriever.Retrieve(ctx, req)
	switch {
	case err == nil:
		c.logger.Log("request %s retrieval done: %d sources, %d gaps, cache hit=%v", req.ID, len(rr.SourceFiles), len(rr.Gaps), hit)
	case errors.Is(err, retrieval.ErrTimedOut) && rr != nil:
		// Proceed on the gap-only result; the synthesis will carry
		// the reduced-coverage caveat.
		c.logger.Log("request %s retrieval timed out, proceeding with gaps only", req.ID)
	default:
		return nil, nil, fmt.Errorf("retrieval for request %s: %w", req.ID, err)
	}

	plan, selection, err := c.planner.BuildPlan(ctx, req, rr)
	if err != nil {
		return nil, nil, err
	}
	c.logger.Log("request %s planned: tier=%s confidence=%.2f phases=%d", req.ID, selection.Tier, selection.Confidence, len(plan.Phases))

	budget := NewBudgetHandler(plan.Budget.WorkUnits)
	scheduler := NewScheduler(c.registry, budget, c.reporter, c.cfg.Scheduler.Parallelism, c.cfg.Scheduler.TaskTimeout)
	results := scheduler.Run(ctx, plan, req, rr)

	used, total, pct := budget.GetUsage()
	c.logger.Log("request %s executed: %d results, budget %d/%d (%.0f%%)", req.ID, len(results), used, total, pct*100)

	findings := c.synth.Synthesize(req, plan, results, rr)
	c.logger.Log("request %s synthesized: status=%s confidence=%.2f", req.ID, findings.Status, findings.Confidence)
	return findings, plan, nil
}

// Registry exposes the frozen capability registry (for the CLI).
func (c *Coordinator) Registry() *registry.Registry {
	return c.registry
}

// Reporter exposes the progress reporter (for audit access).
func (c *Coordinator) Reporter() *Reporter {
	return c.reporter
}

// Close releases the coordinator's resources: the reporter drain, the
// cache store, and the debug logger.
func (c *Coordinator) Close() error {
	c.reporter.Close()
	var firstErr error
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.logger.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// openCache selects the cache backend: SQLite when a path is
// configured, in-memory otherwise.
func openCache(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.Path != "" {
		store, err := cache.OpenSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("opening cache at %s: %w", cfg.Cache.Path, err)
		}
		return store, nil
	}
	return cache.NewMemoryStore(), nil
}

// defaultOpinion picks the second-opinion backend: LLM when
// credentials are configured, the coverage heuristic otherwise.
func defaultOpinion(cfg *config.Config) OpinionProvider {
	if cfg.Anthropic.APIKey != "" || cfg.Anthropic.UseBedrock {
		client, err := llm.NewClient(llm.ClientConfig{
			APIKey:        cfg.Anthropic.APIKey,
			UseAWSBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:     cfg.Anthropic.AWSRegion,
			AWSProfile:    cfg.Anthropic.AWSProfile,
		})
		if err == nil {
			return trackedOpinion{
				inner:   capability.NewLLMOpinion(client),
				tracker: client.Tracker(),
			}
		}
	}
	return capability.HeuristicOpinion{}
}

// trackedOpinion logs cumulative API token usage after each consult.
type trackedOpinion struct {
	inner   OpinionProvider
	tracker *llm.TokenTracker
}

func (o trackedOpinion) Review(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error) {
	op, err := o.inner.Review(ctx, req)
	in, out := o.tracker.Total()
	debugLog("[llm] token usage: %d input / %d output over %d calls", in, out, o.tracker.Calls())
	return op, err
}
