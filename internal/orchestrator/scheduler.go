package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/waypoint/internal/registry"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Scheduler executes plans phase by phase. Phases are strict barriers:
// every task in a phase reaches a terminal state before the next phase
// starts. Within a phase all groups start concurrently under a global
// parallelism ceiling. A failed task never short-circuits its
// siblings; its failure is recorded and the phase simply completes
// with mixed outcomes.
type Scheduler struct {
	registry    *registry.Registry
	budget      *BudgetHandler
	reporter    *Reporter
	parallelism int
	taskTimeout time.Duration
}

// NewScheduler creates a scheduler executing against the given
// capability registry.
func NewScheduler(reg *registry.Registry, budget *BudgetHandler, reporter *Reporter, parallelism int, taskTimeout time.Duration) *Scheduler {
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Scheduler{
		registry:    reg,
		budget:      budget,
		reporter:    reporter,
		parallelism: parallelism,
		taskTimeout: taskTimeout,
	}
}

// Run executes the plan and returns the results of succeeded tasks
// keyed by capability name. Task states are recorded on the plan
// itself. Cancellation stops new work, marks unstarted tasks skipped,
// and returns what completed so the caller can still synthesize a
// partial result.
func (s *Scheduler) Run(ctx context.Context, plan *models.ExecutionPlan, req models.Request, rr *models.RetrievalResult) map[string]*registry.Result {
	sem := make(chan struct{}, s.parallelism)

	var resultsMu sync.Mutex
	results := make(map[string]*registry.Result)

	for _, phase := range plan.Phases {
		s.emit(ProgressEvent{RequestID: req.ID, PhaseID: phase.ID, Transition: TransitionPhaseStarted, Detail: phase.Name})

		// Tasks in this phase see only results from phases already
		// behind the barrier.
		prior := snapshotResults(&resultsMu, results)

		var wg sync.WaitGroup
		for _, task := range phase.Tasks() {
			if ctx.Err() != nil {
				s.skip(req.ID, phase.ID, task, models.SkipCancelled)
				continue
			}
			if !s.budget.CanStartNew() {
				debugLog("[scheduler] budget exhausted, skipping task %s (%s)", task.ID, task.Capability)
				s.skip(req.ID, phase.ID, task, models.SkipBudgetExhausted)
				continue
			}

			cap, err := s.registry.Get(task.Capability)
			if err != nil {
				s.finish(req.ID, phase.ID, task, models.TaskFailed, err.Error())
				continue
			}

			// The semaphore acquire respects cancellation so a full
			// pipeline still drains promptly on cancel.
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				s.skip(req.ID, phase.ID, task, models.SkipCancelled)
				continue
			}

			// Charged at start, never refunded: a running task always
			// finishes even if it crosses the budget line.
			s.budget.Charge(cap.ResourceClass.WorkUnits())

			task.State = models.TaskRunning
			task.StartedAt = time.Now()
			s.emit(ProgressEvent{RequestID: req.ID, PhaseID: phase.ID, TaskID: task.ID, Transition: TransitionStarted, Detail: task.Capability})

			wg.Add(1)
			go func(task *models.Task, cap registry.Capability) {
				defer wg.Done()
				defer func() { <-sem }()

				taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
				defer cancel()

				result, err := cap.Invoker.Invoke(taskCtx, registry.Input{
					Request:   req,
					Retrieval: rr,
					Prior:     prior,
				})

				switch {
				case err == nil && result != nil:
					resultsMu.Lock()
					results[task.Capability] = result
					resultsMu.Unlock()
					task.Result = fmt.Sprintf("%d finding categories", len(result.Findings))
					s.finish(req.ID, phase.ID, task, models.TaskSucceeded, "")
				case ctx.Err() != nil:
					// Request-level cancellation, not a task fault.
					task.SkipReason = models.SkipCancelled
					s.finish(req.ID, phase.ID, task, models.TaskSkipped, "")
				case taskCtx.Err() == context.DeadlineExceeded:
					s.finish(req.ID, phase.ID, task, models.TaskTimedOut, fmt.Sprintf("exceeded %s task timeout", s.taskTimeout))
				case err != nil:
					s.finish(req.ID, phase.ID, task, models.TaskFailed, err.Error())
				default:
					s.finish(req.ID, phase.ID, task, models.TaskFailed, "capability returned no result")
				}
			}(task, cap)
		}

		// Phase barrier.
		wg.Wait()
		s.emit(ProgressEvent{RequestID: req.ID, PhaseID: phase.ID, Transition: TransitionPhaseCompleted, Detail: phase.Name})
	}

	return snapshotResults(&resultsMu, results)
}

func (s *Scheduler) skip(requestID, phaseID string, task *models.Task, reason string) {
	task.State = models.TaskSkipped
	task.SkipReason = reason
	task.EndedAt = time.Now()
	s.emit(ProgressEvent{RequestID: requestID, PhaseID: phaseID, TaskID: task.ID, Transition: TransitionSkipped, Detail: reason})
}

func (s *Scheduler) finish(requestID, phaseID string, task *models.Task, state models.TaskState, errMsg string) {
	task.State = state
	task.Error = errMsg
	task.EndedAt = time.Now()

	var transition Transition
	switch state {
	case models.TaskSucceeded:
		transition = TransitionSucceeded
	case models.TaskTimedOut:
		transition = TransitionTimedOut
	case models.TaskSkipped:
		transition = TransitionSkipped
	default:
		transition = TransitionFailed
	}
	detail := errMsg
	if detail == "" {
		detail = task.Capability
	}
	s.emit(ProgressEvent{RequestID: requestID, PhaseID: phaseID, TaskID: task.ID, Transition: transition, Detail: detail})
}

func (s *Scheduler) emit(event ProgressEvent) {
	if s.reporter != nil {
		s.reporter.OnTransition(event)
	}
}

func snapshotResults(mu *sync.Mutex, results map[string]*registry.Result) map[string]*registry.Result {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]*registry.Result, len(results))
	for k, v := range results {
		out[k] = v
	}
	return out
}
