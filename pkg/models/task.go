package models

import "time"

// TaskState represents the current state of a task.
type TaskState string

const (
	// TaskPending indicates the task has not started.
	TaskPending TaskState = "pending"
	// TaskRunning indicates the task's capability is being invoked.
	TaskRunning TaskState = "running"
	// TaskSucceeded indicates the task completed successfully.
	TaskSucceeded TaskState = "succeeded"
	// TaskFailed indicates the capability invocation failed.
	TaskFailed TaskState = "failed"
	// TaskTimedOut indicates the task exceeded its own timeout.
	TaskTimedOut TaskState = "timed_out"
	// TaskSkipped indicates the task never started, either because the
	// budget was exhausted or the request was cancelled.
	TaskSkipped TaskState = "skipped"
)

// Valid returns true if the state is a known value.
func (s TaskState) Valid() bool {
	switch s {
	case TaskPending, TaskRunning, TaskSucceeded, TaskFailed, TaskTimedOut, TaskSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the state is terminal. A terminal task never
// re-enters pending or running; retries are modeled as a new Task with a
// RetryOf back-reference.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskTimedOut, TaskSkipped:
		return true
	default:
		return false
	}
}

// Skip reasons recorded on tasks that reach TaskSkipped.
const (
	// SkipBudgetExhausted marks tasks skipped because the plan budget ran out
	// before they started.
	SkipBudgetExhausted = "BudgetExhausted"
	// SkipCancelled marks tasks skipped because the request was cancelled.
	SkipCancelled = "CancellationRequested"
)

// Task is a single capability invocation within an execution plan.
type Task struct {
	// ID is the unique identifier for this task.
	ID string `json:"id"`
	// Capability is the registered capability name to invoke.
	Capability string `json:"capability"`
	// Input is the opaque input handed to the capability.
	Input string `json:"input,omitempty"`
	// State is the current state of the task.
	State TaskState `json:"state"`
	// Result holds the capability output summary after success.
	Result string `json:"result,omitempty"`
	// Error contains the failure message if the task failed or timed out.
	Error string `json:"error,omitempty"`
	// SkipReason explains why a task was skipped (SkipBudgetExhausted or
	// SkipCancelled).
	SkipReason string `json:"skip_reason,omitempty"`
	// RetryOf is the ID of the task this one retries, if any.
	RetryOf string `json:"retry_of,omitempty"`
	// StartedAt is when the task entered TaskRunning.
	StartedAt time.Time `json:"started_at,omitempty"`
	// EndedAt is when the task reached a terminal state.
	EndedAt time.Time `json:"ended_at,omitempty"`
}

// ParallelGroup is a set of tasks executed concurrently with no ordering
// guarantee among them.
type ParallelGroup struct {
	// Tasks are the member tasks of the group.
	Tasks []*Task `json:"tasks"`
}

// Terminal returns true when every task in the group has reached a
// terminal state.
func (g *ParallelGroup) Terminal() bool {
	for _, t := range g.Tasks {
		if !t.State.Terminal() {
			return false
		}
	}
	return true
}

// Phase is a barrier-separated stage of the execution plan. All groups in a
// phase complete (success or failure) before the next phase starts.
type Phase struct {
	// ID identifies the phase for progress reporting.
	ID string `json:"id"`
	// Name is a short human label ("pattern-application", "cross-reference").
	Name string `json:"name"`
	// Groups are executed within the phase; tasks across groups still run
	// concurrently, the grouping only carries plan structure.
	Groups []ParallelGroup `json:"groups"`
}

// Tasks returns every task in the phase across all groups.
func (p *Phase) Tasks() []*Task {
	var out []*Task
	for i := range p.Groups {
		out = append(out, p.Groups[i].Tasks...)
	}
	return out
}

// Budget caps the resources an execution plan may consume.
type Budget struct {
	// TimeTotal is the wall-clock ceiling for the whole request.
	TimeTotal time.Duration `json:"time_total"`
	// MemoryTotal is the advisory memory ceiling in bytes.
	MemoryTotal int64 `json:"memory_total"`
	// WorkUnits is the abstract work-unit ceiling across all tasks.
	WorkUnits int64 `json:"work_units"`
}

// ExecutionPlan is the dependency-respecting plan produced by the planner.
// Phase 0 is always the retrieval phase and is never grouped with anything
// else.
type ExecutionPlan struct {
	// RequestID identifies the request the plan was built for.
	RequestID string `json:"request_id"`
	// Tier is the methodology tier the plan was classified into.
	Tier Tier `json:"tier"`
	// Phases are executed strictly in order.
	Phases []*Phase `json:"phases"`
	// Budget caps execution of the plan.
	Budget Budget `json:"budget"`
	// OpinionConsulted records whether the second-opinion capability was
	// reached while building a full-tier plan.
	OpinionConsulted bool `json:"opinion_consulted,omitempty"`
	// OpinionNote records the second opinion outcome (agreement, logged
	// disagreement, or the omission when the consult timed out).
	OpinionNote string `json:"opinion_note,omitempty"`
}

// AllTasks returns every task across every phase in order.
func (p *ExecutionPlan) AllTasks() []*Task {
	var out []*Task
	for _, ph := range p.Phases {
		out = append(out, ph.Tasks()...)
	}
	return out
}
