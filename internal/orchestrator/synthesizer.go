package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/waypoint/internal/registry"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// maxStatementsPerCategory bounds each findings category.
const maxStatementsPerCategory = 12

// maxStatementLen bounds each individual finding statement.
const maxStatementLen = 200

// Synthesizer folds task results into the single bounded findings
// value a request produces. Raw capability output never passes through
// undigested: statements are deduplicated, bounded, and annotated with
// agreement and contradiction signals.
type Synthesizer struct{}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Synthesize produces findings from whatever the scheduler completed.
// It always returns a value, even when everything failed: the status
// field carries the bad news.
func (s *Synthesizer) Synthesize(req models.Request, plan *models.ExecutionPlan, results map[string]*registry.Result, rr *models.RetrievalResult) *models.SynthesizedFindings {
	findings := &models.SynthesizedFindings{
		RequestID:  req.ID,
		Categories: make(map[string][]string),
		Status:     statusOf(plan),
	}

	// Merge category statements across capabilities, deduplicating and
	// tracking how many capabilities produced each statement.
	sources := make(map[string]int)
	for _, capName := range sortedKeys(results) {
		result := results[capName]
		for _, category := range sortedKeys(result.Findings) {
			for _, stmt := range result.Findings[category] {
				stmt = boundStatement(stmt)
				if containsStatement(findings.Categories[category], stmt) {
					sources[stmt]++
					continue
				}
				if len(findings.Categories[category]) < maxStatementsPerCategory {
					findings.Categories[category] = append(findings.Categories[category], stmt)
				}
				sources[stmt]++
			}
		}
	}

	// Recurring themes: statements multiple capabilities converged on.
	var recurring []string
	for stmt, n := range sources {
		if n >= 2 {
			recurring = append(recurring, stmt)
		}
	}
	sort.Strings(recurring)
	for _, stmt := range recurring {
		if len(findings.Categories["recurring"]) >= maxStatementsPerCategory {
			break
		}
		findings.Categories["recurring"] = append(findings.Categories["recurring"], stmt)
	}

	for _, c := range contradictions(findings.Categories) {
		if len(findings.Categories["contradictions"]) >= maxStatementsPerCategory {
			break
		}
		findings.Categories["contradictions"] = append(findings.Categories["contradictions"], c)
	}

	s.addCaveats(findings, plan, rr)

	findings.Confidence = confidenceOf(plan, results, rr)
	return findings
}

// addCaveats records execution-level context: skipped work, budget
// exhaustion, degraded retrieval, and the second-opinion note.
func (s *Synthesizer) addCaveats(findings *models.SynthesizedFindings, plan *models.ExecutionPlan, rr *models.RetrievalResult) {
	skippedBudget := 0
	skippedCancel := 0
	timedOut := 0
	for _, task := range plan.AllTasks() {
		switch {
		case task.State == models.TaskSkipped && task.SkipReason == models.SkipBudgetExhausted:
			skippedBudget++
		case task.State == models.TaskSkipped && task.SkipReason == models.SkipCancelled:
			skippedCancel++
		case task.State == models.TaskTimedOut:
			timedOut++
		}
	}

	caveat := func(s string) {
		findings.Categories["caveats"] = append(findings.Categories["caveats"], boundStatement(s))
	}
	if skippedBudget > 0 {
		caveat(fmt.Sprintf("%d tasks skipped: work-unit budget exhausted", skippedBudget))
	}
	if skippedCancel > 0 {
		caveat(fmt.Sprintf("%d tasks skipped: request cancelled", skippedCancel))
	}
	if timedOut > 0 {
		caveat(fmt.Sprintf("%d tasks timed out", timedOut))
	}
	if rr != nil && rr.Degraded {
		caveat("retrieval ran degraded; knowledge coverage is reduced")
	}
	if plan.OpinionNote != "" {
		caveat(plan.OpinionNote)
	}
}

// statusOf derives the findings status from terminal task states:
// complete when every task succeeded, failed when none did, partial
// otherwise.
func statusOf(plan *models.ExecutionPlan) models.FindingsStatus {
	total := 0
	succeeded := 0
	for _, task := range plan.AllTasks() {
		total++
		if task.State == models.TaskSucceeded {
			succeeded++
		}
	}
	switch {
	case total == 0 || succeeded == 0:
		return models.FindingsFailed
	case succeeded == total:
		return models.FindingsComplete
	default:
		return models.FindingsPartial
	}
}

// confidenceOf combines per-capability confidence with completion
// ratio and retrieval quality.
func confidenceOf(plan *models.ExecutionPlan, results map[string]*registry.Result, rr *models.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}

	sum := 0.0
	for _, r := range results {
		sum += r.Confidence
	}
	confidence := sum / float64(len(results))

	total := len(plan.AllTasks())
	if total > 0 {
		confidence *= float64(len(results)) / float64(total)
	}
	if rr != nil {
		if rr.Degraded {
			confidence *= 0.7
		} else if rr.Truncated {
			confidence *= 0.9
		}
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// contradictions flags statement pairs where one negates the other.
func contradictions(categories map[string][]string) []string {
	all := make(map[string]bool)
	for _, statements := range categories {
		for _, stmt := range statements {
			all[strings.ToLower(stmt)] = true
		}
	}

	var out []string
	for stmt := range all {
		for _, prefix := range []string{"do not ", "never ", "avoid "} {
			if rest, ok := strings.CutPrefix(stmt, prefix); ok && all[rest] {
				out = append(out, fmt.Sprintf("conflicting guidance: %q vs %q", rest, stmt))
			}
		}
	}
	sort.Strings(out)
	return out
}

func boundStatement(s string) string {
	if len(s) <= maxStatementLen {
		return s
	}
	return s[:maxStatementLen] + "..."
}

func containsStatement(statements []string, s string) bool {
	for _, existing := range statements {
		if existing == s {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
