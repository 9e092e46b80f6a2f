package retrieval

import (
	"context"
	"strings"

	"github.com/ShayCichocki/waypoint/internal/knowledge"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

// limits bounds a single gathering pass.
type limits struct {
	// MaxFiles caps how many documents are loaded in full.
	MaxFiles int
	// MaxFileBytes caps bytes read per document.
	MaxFileBytes int
	// ExcerptBytes caps the excerpt retained per document.
	ExcerptBytes int
	// TotalBytes, when positive, caps total bytes loaded across all
	// documents. The degraded fallback uses this; the isolated worker
	// relies on per-file ceilings and its memory limit instead.
	TotalBytes int64
}

// gather searches the store for the keywords and loads bounded
// excerpts of the best matches. It always returns a usable result:
// hitting a ceiling sets Truncated rather than failing, and keywords
// with no coverage in the loaded excerpts are reported as gaps.
func gather(ctx context.Context, store knowledge.Store, keywords []string, lim limits) (*models.RetrievalResult, error) {
	result := &models.RetrievalResult{
		Excerpts: make(map[string]string),
	}
	if len(keywords) == 0 {
		return result, nil
	}

	// Search over-fetches so that a few unreadable documents do not
	// leave slots unused.
	docs, err := store.Search(ctx, keywords, lim.MaxFiles*2)
	if err != nil {
		return nil, err
	}
	if len(docs) > lim.MaxFiles {
		result.Truncated = true
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(result.SourceFiles) >= lim.MaxFiles {
			break
		}
		if lim.TotalBytes > 0 && result.BytesLoaded >= lim.TotalBytes {
			result.Truncated = true
			break
		}

		maxBytes := lim.MaxFileBytes
		if lim.TotalBytes > 0 {
			if remaining := lim.TotalBytes - result.BytesLoaded; remaining < int64(maxBytes) {
				maxBytes = int(remaining)
			}
		}

		content, truncated, err := store.Load(ctx, doc.ID, maxBytes)
		if err != nil {
			// One unreadable document does not fail the pass.
			continue
		}
		if truncated {
			result.Truncated = true
		}

		excerpt := string(content)
		if len(excerpt) > lim.ExcerptBytes {
			excerpt = excerpt[:lim.ExcerptBytes]
			result.Truncated = true
		}

		result.SourceFiles = append(result.SourceFiles, doc.ID)
		result.Excerpts[doc.ID] = excerpt
		result.BytesLoaded += int64(len(content))
	}

	result.Gaps = findGaps(keywords, result)
	return result, nil
}

// findGaps returns the keywords that appear in none of the loaded
// excerpts or source names.
func findGaps(keywords []string, result *models.RetrievalResult) []string {
	var gaps []string
	for _, kw := range keywords {
		covered := false
		for id, excerpt := range result.Excerpts {
			if strings.Contains(strings.ToLower(id), kw) || strings.Contains(strings.ToLower(excerpt), kw) {
				covered = true
				break
			}
		}
		if !covered {
			gaps = append(gaps, kw)
		}
	}
	return gaps
}
