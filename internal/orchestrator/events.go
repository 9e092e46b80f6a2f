// Package orchestrator coordinates analysis requests: plan building,
// phased execution, budget enforcement, synthesis, and progress
// reporting.
package orchestrator

import (
	"time"
)

// Transition identifies a task or phase state change.
type Transition string

const (
	// TransitionStarted indicates a task began running.
	TransitionStarted Transition = "started"
	// TransitionSucceeded indicates a task completed successfully.
	TransitionSucceeded Transition = "succeeded"
	// TransitionFailed indicates a task failed.
	TransitionFailed Transition = "failed"
	// TransitionTimedOut indicates a task exceeded its timeout.
	TransitionTimedOut Transition = "timed_out"
	// TransitionSkipped indicates a task was skipped before starting.
	TransitionSkipped Transition = "skipped"
	// TransitionPhaseStarted indicates a phase began execution.
	TransitionPhaseStarted Transition = "phase_started"
	// TransitionPhaseCompleted indicates every task in a phase reached
	// a terminal state.
	TransitionPhaseCompleted Transition = "phase_completed"
)

// ProgressEvent describes one observed transition. Events are advisory:
// consumers may see duplicates under retry and must treat a repeated
// terminal transition for the same task as idempotent.
type ProgressEvent struct {
	// RequestID identifies the request being executed.
	RequestID string
	// PhaseID identifies the phase, empty for request-level events.
	PhaseID string
	// TaskID identifies the task, empty for phase-level events.
	TaskID string
	// Transition is the state change observed.
	Transition Transition
	// Detail carries optional context (skip reason, error summary).
	Detail string
	// Timestamp is when the transition was observed.
	Timestamp time.Time
}
