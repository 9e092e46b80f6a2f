package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MapIndexEntry is one record in a map index file: a concept map or
// architecture document annotated with the keywords it covers.
type MapIndexEntry struct {
	ID       string   `json:"id"`
	Path     string   `json:"path"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

type mapIndexFile struct {
	Entries []MapIndexEntry `json:"entries"`
}

// MapIndexStore serves documents listed in a map-index.json file.
// Unlike FSStore it never walks a directory: the index is the source
// of truth for what exists and what each document covers, so search
// cost is independent of the knowledge base size.
type MapIndexStore struct {
	baseDir string
	entries []MapIndexEntry
}

// LoadMapIndex reads a map index file. Entry paths are resolved
// relative to the index file's directory.
func LoadMapIndex(path string) (*MapIndexStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map index: %w", err)
	}
	var file mapIndexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing map index %s: %w", path, err)
	}
	return &MapIndexStore{
		baseDir: filepath.Dir(path),
		entries: file.Entries,
	}, nil
}

// Search scores index entries against the keywords using the declared
// keyword list, title, and summary. Declared keywords carry the most
// weight since the index author curated them.
func (s *MapIndexStore) Search(ctx context.Context, keywords []string, limit int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(keywords) == 0 {
		return nil, nil
	}

	var docs []Document
	for _, entry := range s.entries {
		score := 0.0
		for _, kw := range keywords {
			lower := strings.ToLower(kw)
			for _, declared := range entry.Keywords {
				if strings.Contains(strings.ToLower(declared), lower) {
					score += 3
				}
			}
			if strings.Contains(strings.ToLower(entry.Title), lower) {
				score += 2
			}
			if strings.Contains(strings.ToLower(entry.Summary), lower) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		docs = append(docs, Document{
			ID:      entry.ID,
			Path:    s.entryPath(entry),
			Title:   entry.Title,
			Summary: entry.Summary,
			Score:   score,
		})
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Load reads the file behind an index entry, truncated to maxBytes.
func (s *MapIndexStore) Load(ctx context.Context, id string, maxBytes int) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	for _, entry := range s.entries {
		if entry.ID != id {
			continue
		}
		content, err := os.ReadFile(s.entryPath(entry))
		if err != nil {
			return nil, false, fmt.Errorf("loading %s: %w", id, err)
		}
		if maxBytes > 0 && len(content) > maxBytes {
			return content[:maxBytes], true, nil
		}
		return content, false, nil
	}
	return nil, false, fmt.Errorf("unknown document %q", id)
}

func (s *MapIndexStore) entryPath(entry MapIndexEntry) string {
	if filepath.IsAbs(entry.Path) {
		return entry.Path
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(entry.Path))
}

// Multi searches several stores and merges their results, preserving
// per-store ordering and deduplicating by document ID. The first store
// to report an ID wins, so put the curated index ahead of the
// filesystem walk.
type Multi []Store

func (m Multi) Search(ctx context.Context, keywords []string, limit int) ([]Document, error) {
	seen := make(map[string]bool)
	var merged []Document
	for _, store := range m {
		docs, err := store.Search(ctx, keywords, limit)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if seen[doc.ID] {
				continue
			}
			seen[doc.ID] = true
			merged = append(merged, doc)
		}
	}
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

func (m Multi) Load(ctx context.Context, id string, maxBytes int) ([]byte, bool, error) {
	var lastErr error
	for _, store := range m {
		content, truncated, err := store.Load(ctx, id, maxBytes)
		if err == nil {
			return content, truncated, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("unknown document %q", id)
	}
	return nil, false, lastErr
}
