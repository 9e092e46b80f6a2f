package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waypoint/internal/capability"
	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/internal/registry"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List registered analysis capabilities",
	Long: `List the analysis capabilities available to plan execution.

The set is the compiled-in builtins merged with any YAML descriptors in
the catalogue directory (knowledge.catalogue_dir). Descriptors can
override a builtin's description and resource class or disable it
entirely; the merged set is frozen before any request executes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		reg, err := registry.LoadCatalogue(cfg.Knowledge.CatalogueDir, capability.Builtins())
		if err != nil {
			return fmt.Errorf("load capability catalogue: %w", err)
		}

		for _, cap := range reg.List() {
			fmt.Printf("%-22s %-7s %s\n", cap.Name, cap.ResourceClass, cap.Description)
		}
		return nil
	},
}
