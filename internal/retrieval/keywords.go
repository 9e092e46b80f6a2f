// Package retrieval gathers bounded knowledge context for a request,
// running the gathering pass in an isolated worker process so that a
// runaway load cannot take the orchestrator down with it.
package retrieval

import (
	"regexp"
	"sort"
	"strings"
)

// maxKeywords caps how many derived terms drive a retrieval pass.
const maxKeywords = 5

// Common stop words filtered out during keyword derivation.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "how": true, "in": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"that": true, "the": true, "this": true, "to": true, "was": true,
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"why": true, "will": true, "with": true, "not": true, "but": true,
	"you": true, "your": true, "can": true, "do": true, "does": true,
	"should": true, "would": true, "could": true, "may": true,
	"must": true, "need": true, "if": true, "then": true, "else": true,
	"all": true, "any": true, "each": true, "more": true, "most": true,
	"other": true, "some": true, "such": true, "than": true, "too": true,
	"very": true, "just": true, "also": true, "about": true, "into": true,
	"our": true, "their": true, "there": true, "these": true, "those": true,
	"using": true, "use": true, "used": true, "new": true, "please": true,
}

var wordPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9_-]*`)

// DeriveKeywords extracts the search terms for a request from its
// description and context hints. Terms are lowercased, stop words and
// short tokens are dropped, and repeated terms rank first. At most
// maxKeywords terms are returned.
func DeriveKeywords(description string, hints []string) []string {
	text := description
	for _, h := range hints {
		text += " " + h
	}

	counts := make(map[string]int)
	var order []string
	for _, word := range wordPattern.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if len(lower) < 3 || stopWords[lower] {
			continue
		}
		if counts[lower] == 0 {
			order = append(order, lower)
		}
		counts[lower]++
	}

	// Repeated terms first; ties keep appearance order.
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > maxKeywords {
		order = order[:maxKeywords]
	}
	return order
}
