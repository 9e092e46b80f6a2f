// Package capability provides the builtin analysis capabilities that
// plans schedule. They are deliberately shallow: bounded heuristics
// over retrieval excerpts, enough to run the pipeline end-to-end.
// Domain expertise lives outside the core.
package capability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ShayCichocki/waypoint/internal/registry"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Builtin capability names. Plans reference capabilities by these.
const (
	Retrieval            = "retrieval"
	PatternApplication   = "pattern-application"
	ImplementationBridge = "implementation-bridge"
	GapAnalysis          = "gap-analysis"
	DeepAnalysis         = "deep-analysis"
	DocPlanning          = "doc-planning"
	CrossReference       = "cross-reference"
)

// maxStatementLen bounds each finding statement.
const maxStatementLen = 200

// maxStatementsPerCategory bounds how many statements a capability
// contributes to one category.
const maxStatementsPerCategory = 10

// Builtins returns the compiled-in capability set.
func Builtins() []registry.Capability {
	return []registry.Capability{
		{
			Name:          Retrieval,
			Description:   "surfaces the gathered knowledge context as findings",
			ResourceClass: models.ResourceLight,
			Invoker:       registry.InvokerFunc(invokeRetrieval),
		},
		{
			Name:          PatternApplication,
			Description:   "matches request terms against documented patterns",
			ResourceClass: models.ResourceMedium,
			Invoker:       registry.InvokerFunc(invokePatternApplication),
		},
		{
			Name:          ImplementationBridge,
			Description:   "turns matched patterns into concrete next steps",
			ResourceClass: models.ResourceMedium,
			Invoker:       registry.InvokerFunc(invokeImplementationBridge),
		},
		{
			Name:          GapAnalysis,
			Description:   "reports knowledge areas the retrieval could not cover",
			ResourceClass: models.ResourceMedium,
			Invoker:       registry.InvokerFunc(invokeGapAnalysis),
		},
		{
			Name:          DeepAnalysis,
			Description:   "extracts constraints and obligations from excerpts",
			ResourceClass: models.ResourceHeavy,
			Invoker:       registry.InvokerFunc(invokeDeepAnalysis),
		},
		{
			Name:          DocPlanning,
			Description:   "proposes documentation work for uncovered areas",
			ResourceClass: models.ResourceLight,
			Invoker:       registry.InvokerFunc(invokeDocPlanning),
		},
		{
			Name:          CrossReference,
			Description:   "compares earlier findings for agreement and conflict",
			ResourceClass: models.ResourceLight,
			Invoker:       registry.InvokerFunc(invokeCrossReference),
		},
	}
}

func invokeRetrieval(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: Retrieval,
		Findings:   make(map[string][]string),
		Confidence: 0.9,
	}
	rr := input.Retrieval
	if rr == nil || rr.Empty() {
		result.Findings["sources"] = []string{"no knowledge sources matched the request"}
		result.Confidence = 0.3
		if rr != nil {
			for _, gap := range rr.Gaps {
				result.Findings["gaps"] = appendBounded(result.Findings["gaps"], "no coverage for "+gap)
			}
		}
		return result, nil
	}

	for _, id := range rr.SourceFiles {
		result.Findings["sources"] = appendBounded(result.Findings["sources"], id)
	}
	for _, gap := range rr.Gaps {
		result.Findings["gaps"] = appendBounded(result.Findings["gaps"], "no coverage for "+gap)
	}
	if rr.Truncated {
		result.Findings["caveats"] = []string{"retrieval was truncated; excerpts are partial"}
		result.Confidence = 0.7
	}
	if rr.Degraded {
		result.Findings["caveats"] = appendBounded(result.Findings["caveats"], "retrieval ran in degraded mode with reduced coverage")
		result.Confidence = 0.5
	}
	return result, nil
}

func invokePatternApplication(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: PatternApplication,
		Findings:   make(map[string][]string),
		Confidence: 0.6,
	}
	if input.Retrieval == nil {
		return result, nil
	}

	terms := requestTerms(input.Request)
	for _, id := range sortedSourceIDs(input.Retrieval) {
		excerpt := input.Retrieval.Excerpts[id]
		for _, line := range relevantLines(excerpt, terms) {
			result.Findings["patterns"] = appendBounded(result.Findings["patterns"],
				fmt.Sprintf("%s: %s", id, line))
		}
	}
	if len(result.Findings["patterns"]) > 0 {
		result.Confidence = 0.75
	}
	return result, nil
}

func invokeImplementationBridge(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: ImplementationBridge,
		Findings:   make(map[string][]string),
		Confidence: 0.6,
	}

	// Build on pattern-application output when the plan ran it earlier;
	// fall back to raw sources otherwise.
	if prior, ok := input.Prior[PatternApplication]; ok {
		for _, pattern := range prior.Findings["patterns"] {
			result.Findings["next-steps"] = appendBounded(result.Findings["next-steps"],
				"apply documented pattern: "+pattern)
		}
	}
	if len(result.Findings["next-steps"]) == 0 && input.Retrieval != nil {
		for _, id := range sortedSourceIDs(input.Retrieval) {
			result.Findings["next-steps"] = appendBounded(result.Findings["next-steps"],
				"review "+id+" before implementation")
		}
	}
	return result, nil
}

func invokeGapAnalysis(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: GapAnalysis,
		Findings:   make(map[string][]string),
		Confidence: 0.8,
	}
	rr := input.Retrieval
	if rr == nil {
		result.Findings["gaps"] = []string{"no retrieval context available"}
		result.Confidence = 0.4
		return result, nil
	}
	for _, gap := range rr.Gaps {
		result.Findings["gaps"] = appendBounded(result.Findings["gaps"],
			"no documented knowledge covers "+gap)
	}
	if rr.Truncated {
		result.Findings["gaps"] = appendBounded(result.Findings["gaps"],
			"coverage is partial; ceilings truncated the retrieval")
	}
	if len(result.Findings["gaps"]) == 0 {
		result.Findings["gaps"] = []string{"no coverage gaps detected"}
	}
	return result, nil
}

func invokeDeepAnalysis(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: DeepAnalysis,
		Findings:   make(map[string][]string),
		Confidence: 0.65,
	}
	if input.Retrieval == nil {
		return result, nil
	}

	// Obligation words mark lines worth surfacing as constraints.
	obligations := []string{"must", "never", "always", "required", "should not"}
	for _, id := range sortedSourceIDs(input.Retrieval) {
		excerpt := input.Retrieval.Excerpts[id]
		for _, line := range strings.Split(excerpt, "\n") {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			lower := strings.ToLower(trimmed)
			for _, word := range obligations {
				if strings.Contains(lower, word) {
					result.Findings["constraints"] = appendBounded(result.Findings["constraints"],
						fmt.Sprintf("%s: %s", id, bound(trimmed)))
					break
				}
			}
		}
	}
	if len(result.Findings["constraints"]) > 0 {
		result.Confidence = 0.8
	}
	return result, nil
}

func invokeDocPlanning(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: DocPlanning,
		Findings:   make(map[string][]string),
		Confidence: 0.7,
	}
	if input.Retrieval == nil {
		return result, nil
	}
	for _, gap := range input.Retrieval.Gaps {
		result.Findings["doc-plan"] = appendBounded(result.Findings["doc-plan"],
			"document "+gap+" so future requests have coverage")
	}
	if len(result.Findings["doc-plan"]) == 0 {
		result.Findings["doc-plan"] = []string{"existing documentation covers the request"}
	}
	return result, nil
}

func invokeCrossReference(ctx context.Context, input registry.Input) (*registry.Result, error) {
	result := &registry.Result{
		Capability: CrossReference,
		Findings:   make(map[string][]string),
		Confidence: 0.7,
	}

	// Count which statements multiple earlier capabilities produced.
	counts := make(map[string]int)
	for _, prior := range input.Prior {
		seen := make(map[string]bool)
		for _, statements := range prior.Findings {
			for _, stmt := range statements {
				if !seen[stmt] {
					seen[stmt] = true
					counts[stmt]++
				}
			}
		}
	}

	var agreed []string
	for stmt, n := range counts {
		if n >= 2 {
			agreed = append(agreed, stmt)
		}
	}
	sort.Strings(agreed)
	for _, stmt := range agreed {
		result.Findings["agreements"] = appendBounded(result.Findings["agreements"],
			"multiple analyses agree: "+bound(stmt))
	}
	if len(result.Findings["agreements"]) == 0 {
		result.Findings["agreements"] = []string{"no overlapping conclusions across analyses"}
		result.Confidence = 0.5
	}
	return result, nil
}

// requestTerms lowercases the significant words of a request.
func requestTerms(req models.Request) []string {
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(req.Description)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) >= 4 {
			terms = append(terms, word)
		}
	}
	return terms
}

// relevantLines returns non-heading lines of an excerpt that mention
// any of the terms.
func relevantLines(excerpt string, terms []string) []string {
	var lines []string
	for _, line := range strings.Split(excerpt, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		lower := strings.ToLower(trimmed)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				lines = append(lines, bound(trimmed))
				break
			}
		}
	}
	return lines
}

// sortedSourceIDs returns the excerpt keys in stable order.
func sortedSourceIDs(rr *models.RetrievalResult) []string {
	if len(rr.SourceFiles) > 0 {
		return rr.SourceFiles
	}
	ids := make([]string, 0, len(rr.Excerpts))
	for id := range rr.Excerpts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func bound(s string) string {
	if len(s) <= maxStatementLen {
		return s
	}
	return s[:maxStatementLen] + "..."
}

func appendBounded(statements []string, s string) []string {
	if len(statements) >= maxStatementsPerCategory {
		return statements
	}
	return append(statements, bound(s))
}
