package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/waypoint/internal/capability"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scheduler.TaskTimeout = 5 * time.Second
	cfg.Scheduler.RequestTimeout = 30 * time.Second
	cfg.Scheduler.OpinionTimeout = 100 * time.Millisecond
	return cfg
}

// stubOpinion is a controllable OpinionProvider.
type stubOpinion struct {
	opinion *capability.Opinion
	err     error
	delay   time.Duration
}

func (s *stubOpinion) Review(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.opinion, s.err
}

func emptyRetrieval() *models.RetrievalResult {
	return &models.RetrievalResult{Excerpts: map[string]string{}}
}

func TestBuildPlanRequiresRetrieval(t *testing.T) {
	p := NewPlanner(testConfig(), nil)
	_, _, err := p.BuildPlan(context.Background(), models.Request{ID: "r"}, nil)
	if !errors.Is(err, ErrPlanPrecondition) {
		t.Errorf("err = %v, want ErrPlanPrecondition", err)
	}
}

func TestBuildPlanEmptyRetrievalSatisfiesPrecondition(t *testing.T) {
	p := NewPlanner(testConfig(), nil)
	plan, _, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "tune the widget"}, emptyRetrieval())
	if err != nil {
		t.Fatalf("empty retrieval is a valid attempt: %v", err)
	}
	if plan == nil {
		t.Fatal("no plan built")
	}
}

func TestBuildPlanTopology(t *testing.T) {
	tests := []struct {
		name         string
		description  string
		wantTier     models.Tier
		wantPhases   []string
		wantParallel int // tasks in the widest phase
	}{
		{
			name:         "light is retrieval only",
			description:  "where are the docs for uploads",
			wantTier:     models.TierLight,
			wantPhases:   []string{"retrieval"},
			wantParallel: 1,
		},
		{
			name:         "medium adds two single-task phases",
			description:  "add retry handling to the upload path",
			wantTier:     models.TierMedium,
			wantPhases:   []string{"retrieval", "pattern-application", "implementation-bridge"},
			wantParallel: 1,
		},
		{
			name:         "full runs the parallel battery",
			description:  "plan the database migration",
			wantTier:     models.TierFull,
			wantPhases:   []string{"retrieval", "parallel-analysis", "doc-planning", "cross-reference"},
			wantParallel: 3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: true}})
			plan, sel, err := p.BuildPlan(context.Background(),
				models.Request{ID: "r", Description: tt.description}, emptyRetrieval())
			if err != nil {
				t.Fatal(err)
			}
			if sel.Tier != tt.wantTier {
				t.Errorf("tier = %s, want %s", sel.Tier, tt.wantTier)
			}
			if len(plan.Phases) != len(tt.wantPhases) {
				t.Fatalf("got %d phases, want %d", len(plan.Phases), len(tt.wantPhases))
			}
			widest := 0
			for i, phase := range plan.Phases {
				if phase.Name != tt.wantPhases[i] {
					t.Errorf("phase[%d] = %s, want %s", i, phase.Name, tt.wantPhases[i])
				}
				if n := len(phase.Tasks()); n > widest {
					widest = n
				}
			}
			if widest != tt.wantParallel {
				t.Errorf("widest phase has %d tasks, want %d", widest, tt.wantParallel)
			}
			// Phase 0 is always retrieval, alone.
			first := plan.Phases[0].Tasks()
			if len(first) != 1 || first[0].Capability != capability.Retrieval {
				t.Error("phase 0 must be the lone retrieval task")
			}
		})
	}
}

func TestBuildPlanFullCoverageForcesLight(t *testing.T) {
	// The wording alone would classify full; complete knowledge
	// coverage with no gaps outranks it.
	p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: true}})
	rr := &models.RetrievalResult{
		Excerpts: map[string]string{"docs/migrations.md": "run migrations through the schema tool"},
	}
	plan, sel, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "plan the database migration"}, rr)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Tier != models.TierLight {
		t.Errorf("tier = %s, want %s (reason: %s)", sel.Tier, models.TierLight, sel.Reason)
	}
	if len(plan.Phases) != 1 {
		t.Errorf("got %d phases, want retrieval only", len(plan.Phases))
	}
}

func TestBuildPlanNoCoverageForcesFull(t *testing.T) {
	// Every keyword came back a gap: the knowledge base knows nothing
	// about this request, so it gets the full battery regardless of
	// phrasing.
	p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: true}})
	rr := &models.RetrievalResult{
		Excerpts: map[string]string{},
		Gaps:     []string{"x"},
	}
	plan, sel, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "x"}, rr)
	if err != nil {
		t.Fatal(err)
	}
	if sel.Tier != models.TierFull {
		t.Errorf("tier = %s, want %s (reason: %s)", sel.Tier, models.TierFull, sel.Reason)
	}
	if len(plan.Phases) != 4 {
		t.Errorf("got %d phases, want the full topology", len(plan.Phases))
	}
}

func TestBuildPlanBudgetsByTier(t *testing.T) {
	cfg := testConfig()
	p := NewPlanner(cfg, &stubOpinion{opinion: &capability.Opinion{Agree: true}})

	tests := []struct {
		description string
		want        int64
	}{
		{"where are the docs", cfg.Budgets.Light},
		{"tune the widget", cfg.Budgets.Medium},
		{"database migration", cfg.Budgets.Full},
	}
	for _, tt := range tests {
		plan, _, err := p.BuildPlan(context.Background(),
			models.Request{ID: "r", Description: tt.description}, emptyRetrieval())
		if err != nil {
			t.Fatal(err)
		}
		if plan.Budget.WorkUnits != tt.want {
			t.Errorf("%q: work units = %d, want %d", tt.description, plan.Budget.WorkUnits, tt.want)
		}
	}
}

func TestSecondOpinionAgreement(t *testing.T) {
	p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: true, Note: "fits"}})
	plan, _, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "database migration"}, emptyRetrieval())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.OpinionConsulted {
		t.Error("consult should be recorded")
	}
	if !strings.Contains(plan.OpinionNote, "concurs") {
		t.Errorf("note = %q", plan.OpinionNote)
	}
}

func TestSecondOpinionDisagreementKeepsPlan(t *testing.T) {
	p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: false, Note: "too heavy"}})
	plan, _, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "database migration"}, emptyRetrieval())
	if err != nil {
		t.Fatal(err)
	}
	if !plan.OpinionConsulted {
		t.Error("consult should be recorded")
	}
	if !strings.Contains(plan.OpinionNote, "disagrees") {
		t.Errorf("note = %q", plan.OpinionNote)
	}
	// The disagreement never reshapes the plan.
	if len(plan.Phases) != 4 {
		t.Errorf("plan has %d phases; disagreement must not change topology", len(plan.Phases))
	}
}

func TestSecondOpinionTimeout(t *testing.T) {
	p := NewPlanner(testConfig(), &stubOpinion{
		opinion: &capability.Opinion{Agree: true},
		delay:   time.Second, // past the 100ms consult timeout
	})
	start := time.Now()
	plan, _, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "database migration"}, emptyRetrieval())
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("plan building waited %s on a slow consult", elapsed)
	}
	if plan.OpinionConsulted {
		t.Error("a timed-out consult is not a consult")
	}
	if !strings.Contains(plan.OpinionNote, "timed out") {
		t.Errorf("note = %q", plan.OpinionNote)
	}
}

func TestSecondOpinionSkippedForNonFullTiers(t *testing.T) {
	called := false
	p := NewPlanner(testConfig(), &stubOpinion{opinion: &capability.Opinion{Agree: true}})
	p.opinion = opinionFunc(func(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error) {
		called = true
		return &capability.Opinion{Agree: true}, nil
	})

	_, _, err := p.BuildPlan(context.Background(),
		models.Request{ID: "r", Description: "tune the widget"}, emptyRetrieval())
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("medium tier must not consult the second opinion")
	}
}

type opinionFunc func(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error)

func (f opinionFunc) Review(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error) {
	return f(ctx, req)
}
