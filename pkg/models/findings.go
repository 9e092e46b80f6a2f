package models

// RetrievalResult is the bounded outcome of a knowledge retrieval pass.
type RetrievalResult struct {
	// SourceFiles lists the identifiers of sources that were loaded,
	// in the order they were processed.
	SourceFiles []string `json:"source_files"`
	// Excerpts maps a source identifier to its bounded text excerpt.
	Excerpts map[string]string `json:"excerpts"`
	// Gaps records keyword areas with no matching knowledge coverage.
	Gaps []string `json:"gaps"`
	// BytesLoaded is the total content bytes read. Never exceeds the
	// configured ceiling; when the ceiling would be exceeded Truncated is
	// set and excerpts are partial rather than absent.
	BytesLoaded int64 `json:"bytes_loaded"`
	// Truncated indicates the result is partial due to byte ceilings,
	// timeout, or degraded fallback.
	Truncated bool `json:"truncated"`
	// Degraded indicates the result came from the in-process fallback
	// after worker isolation failed, under tighter ceilings.
	Degraded bool `json:"degraded,omitempty"`
}

// HasGap returns true if the given keyword is recorded as a gap.
func (r *RetrievalResult) HasGap(keyword string) bool {
	for _, g := range r.Gaps {
		if g == keyword {
			return true
		}
	}
	return false
}

// Empty returns true when retrieval found no excerpts at all.
func (r *RetrievalResult) Empty() bool {
	return len(r.Excerpts) == 0
}

// FindingsStatus describes how complete a synthesis is.
type FindingsStatus string

const (
	// FindingsComplete means every planned task succeeded.
	FindingsComplete FindingsStatus = "complete"
	// FindingsPartial means at least one task succeeded but others
	// failed, timed out, or were skipped.
	FindingsPartial FindingsStatus = "partial"
	// FindingsFailed means no task succeeded.
	FindingsFailed FindingsStatus = "failed"
)

// SynthesizedFindings is the single bounded result produced per request.
// It is read-only after production.
type SynthesizedFindings struct {
	// RequestID identifies the request these findings answer.
	RequestID string `json:"request_id"`
	// Categories maps a label to short finding strings. Entries are
	// bounded-length summaries, never raw capability output.
	Categories map[string][]string `json:"categories"`
	// Confidence is the synthesizer's confidence in the findings (0.0-1.0).
	Confidence float64 `json:"confidence"`
	// Status reports whether the findings are complete, partial, or failed.
	Status FindingsStatus `json:"status"`
}

// Request is an accepted, immutable task description.
type Request struct {
	// ID is the unique identifier assigned on acceptance.
	ID string `json:"id"`
	// Description is the opaque task text.
	Description string `json:"description"`
	// ContextHints are optional prior-context identifiers (file paths,
	// topic names) supplied by the caller.
	ContextHints []string `json:"context_hints,omitempty"`
}
