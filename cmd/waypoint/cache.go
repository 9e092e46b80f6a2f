package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waypoint/internal/cache"
	"github.com/ShayCichocki/waypoint/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the retrieval cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show retrieval cache contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, backend, err := openConfiguredCache()
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.Stats()
		if err != nil {
			return fmt.Errorf("read cache stats: %w", err)
		}

		fmt.Printf("Backend:  %s\n", backend)
		fmt.Printf("Entries:  %d live\n", stats.Entries)
		fmt.Printf("Expired:  %d awaiting eviction\n", stats.Expired)
		fmt.Printf("Size:     %d bytes\n", stats.Bytes)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired cache entries",
	Long: `Remove expired entries from the retrieval cache.

Lookups evict expired entries lazily; purge is the explicit sweep for
reclaiming space without waiting for each key to be touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openConfiguredCache()
		if err != nil {
			return err
		}
		defer store.Close()

		removed, err := store.Purge()
		if err != nil {
			return fmt.Errorf("purge cache: %w", err)
		}
		fmt.Printf("Removed %d expired entries\n", removed)
		return nil
	},
}

func openConfiguredCache() (cache.Store, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	if cfg.Cache.Path == "" {
		// The in-memory backend lives and dies with the coordinator
		// process, so there is nothing for a separate CLI process to
		// inspect.
		return nil, "", fmt.Errorf("no cache.path configured; the in-memory cache is per-process")
	}
	store, err := cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		return nil, "", fmt.Errorf("open cache at %s: %w", cfg.Cache.Path, err)
	}
	return store, fmt.Sprintf("sqlite (%s)", cfg.Cache.Path), nil
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}
