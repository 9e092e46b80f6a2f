package models

import "testing"

func TestTaskStateValid(t *testing.T) {
	tests := []struct {
		state TaskState
		want  bool
	}{
		{TaskPending, true},
		{TaskRunning, true},
		{TaskSucceeded, true},
		{TaskFailed, true},
		{TaskTimedOut, true},
		{TaskSkipped, true},
		{TaskState("done"), false},
		{TaskState(""), false},
	}

	for _, tc := range tests {
		if got := tc.state.Valid(); got != tc.want {
			t.Errorf("TaskState(%q).Valid() = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestTaskStateTerminal(t *testing.T) {
	tests := []struct {
		state TaskState
		want  bool
	}{
		{TaskPending, false},
		{TaskRunning, false},
		{TaskSucceeded, true},
		{TaskFailed, true},
		{TaskTimedOut, true},
		{TaskSkipped, true},
	}

	for _, tc := range tests {
		if got := tc.state.Terminal(); got != tc.want {
			t.Errorf("TaskState(%q).Terminal() = %v, want %v", tc.state, got, tc.want)
		}
	}
}

func TestParallelGroupTerminal(t *testing.T) {
	group := &ParallelGroup{
		Tasks: []*Task{
			{ID: "a", State: TaskSucceeded},
			{ID: "b", State: TaskRunning},
		},
	}
	if group.Terminal() {
		t.Error("group with a running task should not be terminal")
	}

	group.Tasks[1].State = TaskFailed
	if !group.Terminal() {
		t.Error("group with all terminal tasks should be terminal")
	}
}

func TestPhaseTasksFlattensGroups(t *testing.T) {
	phase := &Phase{
		ID:   "phase-1",
		Name: "analysis",
		Groups: []ParallelGroup{
			{Tasks: []*Task{{ID: "a"}, {ID: "b"}}},
			{Tasks: []*Task{{ID: "c"}}},
		},
	}

	tasks := phase.Tasks()
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
}

func TestExecutionPlanAllTasks(t *testing.T) {
	plan := &ExecutionPlan{
		Tier: TierFull,
		Phases: []*Phase{
			{ID: "p0", Groups: []ParallelGroup{{Tasks: []*Task{{ID: "retrieval"}}}}},
			{ID: "p1", Groups: []ParallelGroup{{Tasks: []*Task{{ID: "a"}, {ID: "b"}}}}},
		},
	}

	if got := len(plan.AllTasks()); got != 3 {
		t.Errorf("expected 3 tasks across phases, got %d", got)
	}
}
