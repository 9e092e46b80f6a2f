package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

func TestDefaultCeilings(t *testing.T) {
	cfg := Default()

	if cfg.Retrieval.Timeout != 300*time.Second {
		t.Errorf("retrieval timeout = %v, want 300s", cfg.Retrieval.Timeout)
	}
	if cfg.Retrieval.MemoryCeiling != 256*1024*1024 {
		t.Errorf("memory ceiling = %d, want 256MB", cfg.Retrieval.MemoryCeiling)
	}
	if cfg.Retrieval.MaxFiles != 20 {
		t.Errorf("max files = %d, want 20", cfg.Retrieval.MaxFiles)
	}
	if cfg.Retrieval.MaxFileBytes != 500*1024 {
		t.Errorf("max file bytes = %d, want 500KB", cfg.Retrieval.MaxFileBytes)
	}
	if cfg.Retrieval.FallbackMaxFiles != 5 {
		t.Errorf("fallback max files = %d, want 5", cfg.Retrieval.FallbackMaxFiles)
	}
	if cfg.Retrieval.FallbackSampleBytes != 50*1024 {
		t.Errorf("fallback sample bytes = %d, want 50KB", cfg.Retrieval.FallbackSampleBytes)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("cache TTL = %v, want 1h", cfg.Cache.TTL)
	}
	if cfg.Scheduler.Parallelism != 4 {
		t.Errorf("parallelism = %d, want 4", cfg.Scheduler.Parallelism)
	}
}

func TestBudgetsWorkUnits(t *testing.T) {
	b := BudgetsConfig{Light: 3000, Medium: 10000, Full: 30000}

	tests := []struct {
		tier models.Tier
		want int64
	}{
		{models.TierLight, 3000},
		{models.TierMedium, 10000},
		{models.TierFull, 30000},
		{models.Tier("unknown"), 10000},
	}

	for _, tc := range tests {
		if got := b.WorkUnits(tc.tier); got != tc.want {
			t.Errorf("WorkUnits(%q) = %d, want %d", tc.tier, got, tc.want)
		}
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
retrieval:
  timeout: 60s
  max_files: 10
budgets:
  full: 50000
cache:
  ttl: 30m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.Retrieval.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", cfg.Retrieval.Timeout)
	}
	if cfg.Retrieval.MaxFiles != 10 {
		t.Errorf("max files = %d, want 10", cfg.Retrieval.MaxFiles)
	}
	if cfg.Budgets.Full != 50000 {
		t.Errorf("full budget = %d, want 50000", cfg.Budgets.Full)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("ttl = %v, want 30m", cfg.Cache.TTL)
	}
	// Unset values keep defaults.
	if cfg.Scheduler.Parallelism != 4 {
		t.Errorf("parallelism = %d, want default 4", cfg.Scheduler.Parallelism)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("WAYPOINT_TEST_KEY", "secret-value")

	if got := expandEnv("${WAYPOINT_TEST_KEY}"); got != "secret-value" {
		t.Errorf("expandEnv = %q, want %q", got, "secret-value")
	}
	if got := expandEnv("plain"); got != "plain" {
		t.Errorf("expandEnv(plain) = %q", got)
	}
}
