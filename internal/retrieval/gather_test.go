package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/waypoint/internal/knowledge"
)

func knowledgeDir(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range docs {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestGatherBoundedByMaxFiles(t *testing.T) {
	docs := make(map[string]string)
	for i := 0; i < 8; i++ {
		docs[fmt.Sprintf("caching-%d.md", i)] = "# Caching\n\ncaching notes\n"
	}
	dir := knowledgeDir(t, docs)
	store := knowledge.NewFSStore([]string{dir}, 1024)

	result, err := gather(context.Background(), store, []string{"caching"}, limits{
		MaxFiles:     3,
		MaxFileBytes: 1024,
		ExcerptBytes: 1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.SourceFiles) != 3 {
		t.Errorf("loaded %d files, ceiling is 3", len(result.SourceFiles))
	}
	if !result.Truncated {
		t.Error("exceeding the file ceiling should flag truncation")
	}
}

func TestGatherExcerptTruncation(t *testing.T) {
	dir := knowledgeDir(t, map[string]string{
		"caching.md": "# Caching\n\n" + strings.Repeat("caching detail ", 100),
	})
	store := knowledge.NewFSStore([]string{dir}, 2048)

	result, err := gather(context.Background(), store, []string{"caching"}, limits{
		MaxFiles:     5,
		MaxFileBytes: 4096,
		ExcerptBytes: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	excerpt := result.Excerpts["caching.md"]
	if len(excerpt) != 100 {
		t.Errorf("excerpt length = %d, want 100", len(excerpt))
	}
	if !result.Truncated {
		t.Error("excerpt truncation should flag the result")
	}
}

func TestGatherTotalByteCeiling(t *testing.T) {
	big := strings.Repeat("caching payload ", 100) // 1600 bytes
	dir := knowledgeDir(t, map[string]string{
		"caching-a.md": big,
		"caching-b.md": big,
		"caching-c.md": big,
	})
	store := knowledge.NewFSStore([]string{dir}, 1024)

	result, err := gather(context.Background(), store, []string{"caching"}, limits{
		MaxFiles:     10,
		MaxFileBytes: 4096,
		ExcerptBytes: 4096,
		TotalBytes:   2000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.BytesLoaded > 2000+1600 {
		t.Errorf("bytes loaded = %d, far past the total ceiling", result.BytesLoaded)
	}
	if len(result.SourceFiles) >= 3 {
		t.Errorf("loaded all %d files despite the total ceiling", len(result.SourceFiles))
	}
	if !result.Truncated {
		t.Error("hitting the total ceiling should flag truncation")
	}
}

func TestGatherReportsGaps(t *testing.T) {
	dir := knowledgeDir(t, map[string]string{
		"caching.md": "# Caching\n\nall about caching\n",
	})
	store := knowledge.NewFSStore([]string{dir}, 1024)

	result, err := gather(context.Background(), store, []string{"caching", "kubernetes"}, limits{
		MaxFiles:     5,
		MaxFileBytes: 1024,
		ExcerptBytes: 1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasGap("kubernetes") {
		t.Error("uncovered keyword should be reported as a gap")
	}
	if result.HasGap("caching") {
		t.Error("covered keyword should not be a gap")
	}
}

func TestGatherNoMatches(t *testing.T) {
	dir := knowledgeDir(t, map[string]string{
		"deploy.md": "# Deploy\n\nrollout notes\n",
	})
	store := knowledge.NewFSStore([]string{dir}, 1024)

	result, err := gather(context.Background(), store, []string{"caching"}, limits{
		MaxFiles:     5,
		MaxFileBytes: 1024,
		ExcerptBytes: 1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !result.Empty() {
		t.Error("expected an empty result")
	}
	if !result.HasGap("caching") {
		t.Error("every keyword is a gap when nothing matched")
	}
}
