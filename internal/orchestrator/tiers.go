package orchestrator

import (
	"strings"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

// TierKeywords is the single source of truth for the keyword prior.
// Keyword matching is ordered: full keywords are checked first, then
// light; anything unmatched defaults to medium. The prior only stands
// when the retrieval outcome is inconclusive - see
// ClassifyWithRetrieval.
type TierKeywords struct {
	// Light keywords indicate narrow requests a single retrieval pass
	// answers: lookups, doc questions, small clarifications.
	Light []string

	// Medium keywords are not matched - medium is the default tier.

	// Full keywords indicate broad or high-stakes requests that earn
	// the complete parallel analysis battery.
	Full []string
}

// DefaultTierKeywords returns the authoritative keyword mappings.
var DefaultTierKeywords = TierKeywords{
	Light: []string{
		"typo",
		"docs",
		"readme",
		"documentation",
		"comment",
		"formatting",
		"find",
		"where",
		"what is",
		"list",
		"show",
		"lookup",
	},
	Full: []string{
		"migration",
		"migrate",
		"redesign",
		"rearchitect",
		"restructure",
		"overhaul",
		"rewrite",
		"refactor",
		"architecture",
		"security",
		"auth",
		"authentication",
		"cross-cutting",
		"schema",
		"infrastructure",
	},
}

// TierSelection represents a tier selection with confidence information.
type TierSelection struct {
	// Tier is the selected tier.
	Tier models.Tier
	// Confidence is how confident the selection is (0.0-1.0).
	Confidence float64
	// Reason explains why this tier was selected.
	Reason string
	// MatchedKeyword is the keyword that triggered this selection (if any).
	MatchedKeyword string
}

// ClassifyWithRetrieval selects a tier from the retrieval outcome,
// falling back to the keyword prior on the request text when the
// outcome is mixed. Knowledge coverage outranks phrasing: a request
// the knowledge base answers outright is light no matter how it is
// worded, and a request with no coverage at all earns the full
// battery.
func ClassifyWithRetrieval(text string, rr *models.RetrievalResult) TierSelection {
	if rr != nil {
		switch {
		case !rr.Empty() && len(rr.Gaps) == 0:
			return TierSelection{
				Tier:       models.TierLight,
				Confidence: 0.90,
				Reason:     "retrieval answered every keyword with no gaps",
			}
		case rr.Empty() && len(rr.Gaps) > 0:
			return TierSelection{
				Tier:       models.TierFull,
				Confidence: 0.90,
				Reason:     "no knowledge coverage for any keyword",
			}
		}
	}
	return ClassifyWithConfidence(text)
}

// ClassifyWithConfidence selects a tier for the request text with
// confidence scoring. Full keywords take priority over light so an
// ambiguous request errs toward more analysis rather than less.
func ClassifyWithConfidence(text string) TierSelection {
	lower := strings.ToLower(text)

	for _, kw := range DefaultTierKeywords.Full {
		if strings.Contains(lower, kw) {
			return TierSelection{
				Tier:           models.TierFull,
				Confidence:     0.85,
				Reason:         "matched full-tier keyword",
				MatchedKeyword: kw,
			}
		}
	}

	for _, kw := range DefaultTierKeywords.Light {
		if strings.Contains(lower, kw) {
			return TierSelection{
				Tier:           models.TierLight,
				Confidence:     0.75,
				Reason:         "matched light-tier keyword",
				MatchedKeyword: kw,
			}
		}
	}

	return TierSelection{
		Tier:       models.TierMedium,
		Confidence: 0.60,
		Reason:     "no keyword match, defaulting to medium",
	}
}
