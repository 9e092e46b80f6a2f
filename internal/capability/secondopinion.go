package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/waypoint/internal/llm"
)

// OpinionRequest is what a plan reviewer sees: the request text and
// the shape of the plan built for it. Never the raw excerpts.
type OpinionRequest struct {
	Description  string
	Tier         string
	Capabilities []string
	Gaps         []string
}

// Opinion is a reviewer's verdict on a proposed plan.
type Opinion struct {
	// Agree reports whether the reviewer endorses the plan as built.
	Agree bool
	// Note carries the reviewer's reasoning, bounded.
	Note string
}

// LLMOpinion reviews plans through a model completion. Used for the
// full tier when a client is configured.
type LLMOpinion struct {
	completer llm.Completer
}

// NewLLMOpinion creates a model-backed plan reviewer.
func NewLLMOpinion(completer llm.Completer) *LLMOpinion {
	return &LLMOpinion{completer: completer}
}

// Review asks the model whether the plan fits the request. Malformed
// responses are treated as agreement: the original plan is always
// authoritative and a broken consult must not derail it.
func (o *LLMOpinion) Review(ctx context.Context, req OpinionRequest) (*Opinion, error) {
	prompt := fmt.Sprintf(`A %s-tier analysis plan was built for this request:

REQUEST: %s

PLANNED CAPABILITIES: %s
KNOWN COVERAGE GAPS: %s

Is this plan proportionate to the request? Answer with a JSON object:
{"agree": true|false, "note": "one sentence of reasoning"}`,
		req.Tier, req.Description,
		strings.Join(req.Capabilities, ", "),
		strings.Join(req.Gaps, ", "))

	response, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Agree bool   `json:"agree"`
		Note  string `json:"note"`
	}
	if err := llm.ParseJSON(response, &parsed); err != nil {
		return &Opinion{Agree: true, Note: "reviewer response unparseable; plan unchanged"}, nil
	}
	return &Opinion{Agree: parsed.Agree, Note: bound(parsed.Note)}, nil
}

// HeuristicOpinion is the fallback reviewer used when no model client
// is configured. It endorses plans unless the retrieval coverage is so
// thin that a heavy plan cannot be grounded.
type HeuristicOpinion struct{}

// Review applies the coverage heuristic.
func (HeuristicOpinion) Review(ctx context.Context, req OpinionRequest) (*Opinion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Gaps) > len(req.Capabilities) {
		return &Opinion{
			Agree: false,
			Note:  "coverage gaps outnumber planned capabilities; analysis may be weakly grounded",
		}, nil
	}
	return &Opinion{Agree: true, Note: "plan proportionate to available coverage"}, nil
}
