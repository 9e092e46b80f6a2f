package knowledge

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore searches markdown documents under one or more root
// directories. Candidates are scored in two cheap passes, filename
// match then a bounded content sample, before any document is loaded
// in full.
type FSStore struct {
	roots       []string
	sampleBytes int

	// ids maps document IDs seen by Search to absolute paths, so Load
	// does not have to re-walk the roots.
	ids map[string]string
}

// NewFSStore creates a store over the given root directories. Roots
// that do not exist are skipped at search time rather than rejected
// here, so a project without a docs/ directory still works.
func NewFSStore(roots []string, sampleBytes int) *FSStore {
	if sampleBytes <= 0 {
		sampleBytes = 1024
	}
	return &FSStore{
		roots:       roots,
		sampleBytes: sampleBytes,
		ids:         make(map[string]string),
	}
}

// Search walks the roots for markdown files and scores each against
// the keywords. Filename hits count double: a file named after the
// topic is a stronger signal than a passing mention in its body.
// Only the first sampleBytes of each candidate are read.
func (s *FSStore) Search(ctx context.Context, keywords []string, limit int) ([]Document, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw != "" {
			lowered = append(lowered, strings.ToLower(kw))
		}
	}

	var docs []Document
	seen := make(map[string]bool)
	for _, root := range s.roots {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !isMarkdown(path) {
				return nil
			}

			score := filenameScore(path, lowered)

			sample, err := readSample(path, s.sampleBytes)
			if err != nil {
				// Unreadable files are skipped, not fatal: one bad
				// permission bit should not sink the whole search.
				return nil
			}
			score += sampleScore(sample, lowered)
			if score == 0 {
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = filepath.Base(path)
			}
			id := filepath.ToSlash(rel)
			if seen[id] {
				// The same relative path under an earlier root already
				// claimed this ID. Earlier roots win, matching the
				// precedence resolve uses at load time.
				return nil
			}
			seen[id] = true
			s.ids[id] = path

			docs = append(docs, Document{
				ID:      id,
				Path:    path,
				Title:   titleFrom(sample, path),
				Summary: summaryFrom(sample),
				Score:   score,
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", root, err)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Load reads the identified document, stopping after maxBytes.
func (s *FSStore) Load(ctx context.Context, id string, maxBytes int) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	path, ok := s.ids[id]
	if !ok {
		// The ID may predate this store instance (e.g. a cached
		// retrieval). Resolve it against the roots directly.
		path = s.resolve(id)
		if path == "" {
			return nil, false, fmt.Errorf("unknown document %q", id)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", id, err)
	}
	defer f.Close()

	if maxBytes <= 0 {
		content, err := io.ReadAll(f)
		return content, false, err
	}

	// Read one byte past the ceiling to detect truncation.
	content, err := io.ReadAll(io.LimitReader(f, int64(maxBytes)+1))
	if err != nil {
		return nil, false, fmt.Errorf("loading %s: %w", id, err)
	}
	if len(content) > maxBytes {
		return content[:maxBytes], true, nil
	}
	return content, false, nil
}

func (s *FSStore) resolve(id string) string {
	for _, root := range s.roots {
		candidate := filepath.Join(root, filepath.FromSlash(id))
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// filenameScore counts keyword hits in the file's base name. Each hit
// is worth 2 points.
func filenameScore(path string, keywords []string) float64 {
	name := strings.ToLower(filepath.Base(path))
	score := 0.0
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			score += 2
		}
	}
	return score
}

// sampleScore counts keyword hits in the content sample, 1 point each.
func sampleScore(sample []byte, keywords []string) float64 {
	text := strings.ToLower(string(sample))
	score := 0.0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			score++
		}
	}
	return score
}

func readSample(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, int64(n)))
}
