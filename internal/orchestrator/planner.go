package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/waypoint/internal/capability"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// ErrPlanPrecondition indicates plan building was attempted without a
// completed retrieval attempt. Plans are always knowledge-grounded;
// even an empty retrieval result satisfies the precondition, a missing
// one does not.
var ErrPlanPrecondition = errors.New("plan requires a retrieval attempt")

// OpinionProvider reviews a proposed full-tier plan. The consult is
// advisory: the original plan is authoritative regardless of verdict.
type OpinionProvider interface {
	Review(ctx context.Context, req capability.OpinionRequest) (*capability.Opinion, error)
}

// Planner builds execution plans from a classified request and its
// retrieval context.
type Planner struct {
	budgets        config.BudgetsConfig
	timeTotal      time.Duration
	memoryTotal    int64
	opinion        OpinionProvider
	opinionTimeout time.Duration
}

// NewPlanner creates a planner. opinion may be nil, in which case full
// tier plans skip the consult and record the omission.
func NewPlanner(cfg *config.Config, opinion OpinionProvider) *Planner {
	return &Planner{
		budgets:        cfg.Budgets,
		timeTotal:      cfg.Scheduler.RequestTimeout,
		memoryTotal:    cfg.Retrieval.MemoryCeiling,
		opinion:        opinion,
		opinionTimeout: cfg.Scheduler.OpinionTimeout,
	}
}

// BuildPlan classifies the request against its retrieval outcome and
// builds the phase topology. Phase 0 is always the retrieval phase,
// alone. rr must be the outcome of a retrieval attempt; an empty
// result is acceptable, nil is not.
func (p *Planner) BuildPlan(ctx context.Context, req models.Request, rr *models.RetrievalResult) (*models.ExecutionPlan, TierSelection, error) {
	if rr == nil {
		return nil, TierSelection{}, fmt.Errorf("%w: request %s", ErrPlanPrecondition, req.ID)
	}

	selection := ClassifyWithRetrieval(req.Description, rr)
	debugLog("[planner] request %s classified %s (%.2f): %s", req.ID, selection.Tier, selection.Confidence, selection.Reason)

	plan := &models.ExecutionPlan{
		RequestID: req.ID,
		Tier:      selection.Tier,
		Budget: models.Budget{
			TimeTotal:   p.timeTotal,
			MemoryTotal: p.memoryTotal,
			WorkUnits:   p.budgets.WorkUnits(selection.Tier),
		},
	}

	plan.Phases = append(plan.Phases, singleTaskPhase("retrieval", capability.Retrieval))

	switch selection.Tier {
	case models.TierLight:
		// Retrieval and synthesis only.
	case models.TierMedium:
		plan.Phases = append(plan.Phases,
			singleTaskPhase("pattern-application", capability.PatternApplication),
			singleTaskPhase("implementation-bridge", capability.ImplementationBridge),
		)
	case models.TierFull:
		plan.Phases = append(plan.Phases,
			groupPhase("parallel-analysis",
				capability.PatternApplication,
				capability.GapAnalysis,
				capability.DeepAnalysis,
			),
			singleTaskPhase("doc-planning", capability.DocPlanning),
			singleTaskPhase("cross-reference", capability.CrossReference),
		)
	}

	if selection.Tier == models.TierFull {
		p.consultOpinion(ctx, req, rr, plan)
	}

	return plan, selection, nil
}

// consultOpinion runs the second-opinion consult with its own timeout.
// A timeout or error leaves the plan unchanged with the omission
// recorded; a disagreement is logged, never applied.
func (p *Planner) consultOpinion(ctx context.Context, req models.Request, rr *models.RetrievalResult, plan *models.ExecutionPlan) {
	if p.opinion == nil {
		plan.OpinionNote = "second opinion unavailable; proceeding with original plan"
		return
	}

	consultCtx, cancel := context.WithTimeout(ctx, p.opinionTimeout)
	defer cancel()

	var caps []string
	for _, task := range plan.AllTasks() {
		caps = append(caps, task.Capability)
	}

	type outcome struct {
		opinion *capability.Opinion
		err     error
	}
	ch := make(chan outcome, 1)
	go func() {
		op, err := p.opinion.Review(consultCtx, capability.OpinionRequest{
			Description:  req.Description,
			Tier:         string(plan.Tier),
			Capabilities: caps,
			Gaps:         rr.Gaps,
		})
		ch <- outcome{op, err}
	}()

	select {
	case out := <-ch:
		if out.err != nil {
			debugLog("[planner] second opinion failed for %s: %v", req.ID, out.err)
			plan.OpinionNote = "second opinion failed; proceeding with original plan"
			return
		}
		plan.OpinionConsulted = true
		if out.opinion.Agree {
			plan.OpinionNote = "second opinion concurs: " + out.opinion.Note
		} else {
			// The original plan stays authoritative; the disagreement
			// is recorded for the findings.
			debugLog("[planner] second opinion disagrees for %s: %s", req.ID, out.opinion.Note)
			plan.OpinionNote = "second opinion disagrees (plan unchanged): " + out.opinion.Note
		}
	case <-consultCtx.Done():
		debugLog("[planner] second opinion timed out for %s", req.ID)
		plan.OpinionNote = "second opinion timed out; proceeding with original plan"
	}
}

func singleTaskPhase(name, capabilityName string) *models.Phase {
	return &models.Phase{
		ID:   shortID(),
		Name: name,
		Groups: []models.ParallelGroup{
			{Tasks: []*models.Task{newTask(capabilityName)}},
		},
	}
}

func groupPhase(name string, capabilityNames ...string) *models.Phase {
	group := models.ParallelGroup{}
	for _, c := range capabilityNames {
		group.Tasks = append(group.Tasks, newTask(c))
	}
	return &models.Phase{
		ID:     shortID(),
		Name:   name,
		Groups: []models.ParallelGroup{group},
	}
}

func newTask(capabilityName string) *models.Task {
	return &models.Task{
		ID:         shortID(),
		Capability: capabilityName,
		State:      models.TaskPending,
	}
}

// shortID returns an 8-character identifier.
func shortID() string {
	return uuid.New().String()[:8]
}
