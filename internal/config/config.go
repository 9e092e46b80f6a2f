// Package config handles configuration loading and management for Waypoint.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/waypoint/pkg/models"
)

// Config holds all configuration for Waypoint.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Budgets   BudgetsConfig   `mapstructure:"budgets"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge"`
}

// AnthropicConfig holds settings for the second-opinion capability backend.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes second-opinion calls through AWS Bedrock instead
	// of the direct API.
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RetrievalConfig holds the hard ceilings for the bounded retrieval worker.
type RetrievalConfig struct {
	// Timeout is the wall-clock ceiling for a retrieval pass.
	Timeout time.Duration `mapstructure:"timeout"`
	// MemoryCeiling is the byte ceiling the isolated worker enforces on itself.
	MemoryCeiling int64 `mapstructure:"memory_ceiling"`
	// MaxFiles is the maximum number of sources loaded per query.
	MaxFiles int `mapstructure:"max_files"`
	// MaxFileBytes is the per-source byte ceiling.
	MaxFileBytes int64 `mapstructure:"max_file_bytes"`
	// ExcerptBytes is the per-excerpt truncation limit kept in the result.
	ExcerptBytes int `mapstructure:"excerpt_bytes"`
	// FallbackMaxFiles bounds the degraded in-process search.
	FallbackMaxFiles int `mapstructure:"fallback_max_files"`
	// FallbackSampleBytes bounds each sample in the degraded search.
	FallbackSampleBytes int64 `mapstructure:"fallback_sample_bytes"`
	// ConfigVersion is folded into cache keys so ceiling changes invalidate
	// cached results.
	ConfigVersion string `mapstructure:"config_version"`
}

// CacheConfig holds retrieval cache settings.
type CacheConfig struct {
	// TTL is the time-to-live for cached retrieval results.
	TTL time.Duration `mapstructure:"ttl"`
	// Path is the SQLite cache file. Empty selects the in-memory backend.
	Path string `mapstructure:"path"`
}

// SchedulerConfig holds execution settings.
type SchedulerConfig struct {
	// Parallelism is the global ceiling on concurrently running tasks.
	Parallelism int `mapstructure:"parallelism"`
	// TaskTimeout is the per-task timeout.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// RequestTimeout is the request-wide timeout; expiry behaves like
	// external cancellation.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// EventQueueSize bounds the progress reporter queue.
	EventQueueSize int `mapstructure:"event_queue_size"`
	// AuditRingSize bounds the retained progress event ring.
	AuditRingSize int `mapstructure:"audit_ring_size"`
	// OpinionTimeout bounds the non-blocking second-opinion consult.
	OpinionTimeout time.Duration `mapstructure:"opinion_timeout"`
}

// BudgetsConfig holds per-tier work-unit budgets.
type BudgetsConfig struct {
	Light  int64 `mapstructure:"light"`
	Medium int64 `mapstructure:"medium"`
	Full   int64 `mapstructure:"full"`
}

// WorkUnits returns the work-unit budget for the given tier.
func (b BudgetsConfig) WorkUnits(tier models.Tier) int64 {
	switch tier {
	case models.TierLight:
		return b.Light
	case models.TierMedium:
		return b.Medium
	case models.TierFull:
		return b.Full
	default:
		return b.Medium
	}
}

// KnowledgeConfig holds knowledge store settings.
type KnowledgeConfig struct {
	// Roots are the directories searched for institutional knowledge.
	Roots []string `mapstructure:"roots"`
	// MapIndex is the pattern catalogue file, relative to the project root.
	MapIndex string `mapstructure:"map_index"`
	// CatalogueDir holds YAML capability definitions loaded at startup.
	CatalogueDir string `mapstructure:"catalogue_dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment
// variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, WAYPOINT_*)
// 2. Project config (.waypoint.yaml in current directory or parent)
// 3. User config (~/.config/waypoint/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("WAYPOINT")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Default returns a Config populated with built-in defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	// Retrieval ceilings
	v.SetDefault("retrieval.timeout", "300s")
	v.SetDefault("retrieval.memory_ceiling", 256*1024*1024)
	v.SetDefault("retrieval.max_files", 20)
	v.SetDefault("retrieval.max_file_bytes", 500*1024)
	v.SetDefault("retrieval.excerpt_bytes", 10*1024)
	v.SetDefault("retrieval.fallback_max_files", 5)
	v.SetDefault("retrieval.fallback_sample_bytes", 50*1024)
	v.SetDefault("retrieval.config_version", "1")

	// Cache
	v.SetDefault("cache.ttl", "1h")
	v.SetDefault("cache.path", "")

	// Scheduler
	v.SetDefault("scheduler.parallelism", 4)
	v.SetDefault("scheduler.task_timeout", "2m")
	v.SetDefault("scheduler.request_timeout", "15m")
	v.SetDefault("scheduler.event_queue_size", 256)
	v.SetDefault("scheduler.audit_ring_size", 1000)
	v.SetDefault("scheduler.opinion_timeout", "30s")

	// Per-tier work-unit budgets
	v.SetDefault("budgets.light", 3000)
	v.SetDefault("budgets.medium", 10000)
	v.SetDefault("budgets.full", 30000)

	// Knowledge store
	v.SetDefault("knowledge.roots", []string{"docs", "maps"})
	v.SetDefault("knowledge.map_index", "maps/map-index.json")
	v.SetDefault("knowledge.catalogue_dir", ".waypoint/capabilities")
}

// getUserConfigDir returns the XDG config directory for Waypoint.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "waypoint")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "waypoint")
	}
	return filepath.Join(home, ".config", "waypoint")
}

// findProjectConfig searches for .waypoint.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".waypoint.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in configuration values.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
