package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waypoint/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key]",
	Short: "Show effective configuration",
	Long: `Display the effective Waypoint configuration.

Without arguments, displays all configuration values.
With one argument (key), displays the value for that key.

Configuration is read from ~/.config/waypoint/config.yaml with
project-specific overrides in .waypoint.yaml and environment
variables (ANTHROPIC_API_KEY, WAYPOINT_*) on top.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		if len(args) == 1 {
			displayConfigKey(cfg, args[0])
			return
		}
		displayAllConfig(cfg)
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys() {
		value, _ := configValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := configValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

func configKeys() []string {
	return []string{
		"anthropic.api_key",
		"anthropic.use_bedrock",
		"retrieval.timeout",
		"retrieval.memory_ceiling",
		"retrieval.max_files",
		"retrieval.max_file_bytes",
		"retrieval.fallback_max_files",
		"retrieval.fallback_sample_bytes",
		"cache.ttl",
		"cache.path",
		"scheduler.parallelism",
		"scheduler.task_timeout",
		"scheduler.request_timeout",
		"scheduler.event_queue_size",
		"scheduler.audit_ring_size",
		"scheduler.opinion_timeout",
		"budgets.light",
		"budgets.medium",
		"budgets.full",
		"knowledge.roots",
		"knowledge.map_index",
		"knowledge.catalogue_dir",
	}
}

// configValue retrieves a configuration value by dot-notation key.
func configValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey == "" {
			return "(not set)", nil
		}
		return "****", nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "retrieval.timeout":
		return cfg.Retrieval.Timeout.String(), nil
	case "retrieval.memory_ceiling":
		return strconv.FormatInt(cfg.Retrieval.MemoryCeiling, 10), nil
	case "retrieval.max_files":
		return strconv.Itoa(cfg.Retrieval.MaxFiles), nil
	case "retrieval.max_file_bytes":
		return strconv.FormatInt(cfg.Retrieval.MaxFileBytes, 10), nil
	case "retrieval.fallback_max_files":
		return strconv.Itoa(cfg.Retrieval.FallbackMaxFiles), nil
	case "retrieval.fallback_sample_bytes":
		return strconv.FormatInt(cfg.Retrieval.FallbackSampleBytes, 10), nil
	case "cache.ttl":
		return cfg.Cache.TTL.String(), nil
	case "cache.path":
		if cfg.Cache.Path == "" {
			return "(in-memory)", nil
		}
		return cfg.Cache.Path, nil
	case "scheduler.parallelism":
		return strconv.Itoa(cfg.Scheduler.Parallelism), nil
	case "scheduler.task_timeout":
		return cfg.Scheduler.TaskTimeout.String(), nil
	case "scheduler.request_timeout":
		return cfg.Scheduler.RequestTimeout.String(), nil
	case "scheduler.event_queue_size":
		return strconv.Itoa(cfg.Scheduler.EventQueueSize), nil
	case "scheduler.audit_ring_size":
		return strconv.Itoa(cfg.Scheduler.AuditRingSize), nil
	case "scheduler.opinion_timeout":
		return cfg.Scheduler.OpinionTimeout.String(), nil
	case "budgets.light":
		return strconv.FormatInt(cfg.Budgets.Light, 10), nil
	case "budgets.medium":
		return strconv.FormatInt(cfg.Budgets.Medium, 10), nil
	case "budgets.full":
		return strconv.FormatInt(cfg.Budgets.Full, 10), nil
	case "knowledge.roots":
		return strings.Join(cfg.Knowledge.Roots, ", "), nil
	case "knowledge.map_index":
		return cfg.Knowledge.MapIndex, nil
	case "knowledge.catalogue_dir":
		return cfg.Knowledge.CatalogueDir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}
