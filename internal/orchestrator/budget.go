package orchestrator

import (
	"errors"
	"sync"
)

// ErrBudgetExhausted indicates a task was not started because the
// request's work-unit budget ran out.
var ErrBudgetExhausted = errors.New("work-unit budget exhausted")

// BudgetStatus represents the current state of budget consumption.
type BudgetStatus int

const (
	// BudgetOK indicates usage is below the warning threshold (<80%).
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates usage is between warning and exhaustion (80-99%).
	BudgetWarning
	// BudgetExhausted indicates budget is fully consumed (>=100%).
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the default percentage at which warnings begin.
const DefaultWarningThreshold = 0.80

// BudgetHandler tracks work-unit consumption against a request budget.
// Consumption is monotonic: units are charged when a task starts and
// never refunded, so the status can only move toward exhaustion.
type BudgetHandler struct {
	// budget is the maximum allowed work units.
	budget int64
	// used is the current consumption.
	used int64
	// warningThreshold is the fraction (0.0-1.0) at which warnings begin.
	warningThreshold float64
	mu               sync.RWMutex
}

// NewBudgetHandler creates a BudgetHandler with the specified work-unit budget.
// A non-positive budget disables enforcement.
func NewBudgetHandler(budget int64) *BudgetHandler {
	return &BudgetHandler{
		budget:           budget,
		warningThreshold: DefaultWarningThreshold,
	}
}

// Charge adds the specified work units to the usage counter. Called
// when a task starts; running tasks are never interrupted, so the
// charge stands even when it crosses the budget line.
func (h *BudgetHandler) Charge(units int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used += units
}

// CheckBudget returns the current budget status based on usage percentage.
func (h *BudgetHandler) CheckBudget() BudgetStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.budget <= 0 {
		return BudgetOK
	}

	percentage := float64(h.used) / float64(h.budget)
	if percentage >= 1.0 {
		return BudgetExhausted
	}
	if percentage >= h.warningThreshold {
		return BudgetWarning
	}
	return BudgetOK
}

// CanStartNew returns true if new tasks may start. False once the
// budget is exhausted; in-flight tasks still run to completion.
func (h *BudgetHandler) CanStartNew() bool {
	return h.CheckBudget() != BudgetExhausted
}

// GetUsage returns used units, the budget, and the usage fraction.
func (h *BudgetHandler) GetUsage() (used, budget int64, percentage float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	used = h.used
	budget = h.budget
	if budget > 0 {
		percentage = float64(used) / float64(budget)
	}
	return used, budget, percentage
}

// SetWarningThreshold sets the warning threshold fraction (0.0-1.0).
// Invalid values are clamped.
func (h *BudgetHandler) SetWarningThreshold(threshold float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	h.warningThreshold = threshold
}
