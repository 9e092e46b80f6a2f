package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initForce      bool
	initWithConfig bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a Waypoint project",
	Long: `Initialize a directory for use with Waypoint.

This command sets up the project structure:
  - Creates the .waypoint directory (logs, cache, capabilities)
  - Creates the knowledge roots (docs/, maps/) if missing
  - Seeds an empty pattern map index
  - Optionally writes an example .waypoint.yaml

The directory argument is optional and defaults to the current directory.

Examples:
  waypoint init                # Initialize current directory
  waypoint init ./myproject    # Initialize specific directory
  waypoint init --force        # Reinitialize even if already set up
  waypoint init --with-config  # Write an example .waypoint.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize even if already set up")
	initCmd.Flags().BoolVar(&initWithConfig, "with-config", false, "Write an example .waypoint.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	absPath, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("resolving absolute path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", absPath, err)
	}

	fmt.Printf("Initializing Waypoint in %s...\n\n", absPath)

	waypointDir := filepath.Join(absPath, ".waypoint")
	if _, err := os.Stat(waypointDir); err == nil && !initForce {
		fmt.Println("Directory already initialized. Use --force to reinitialize.")
		return nil
	}

	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		printStatus("⚠", "ANTHROPIC_API_KEY not set; second opinions fall back to the coverage heuristic", color.FgYellow)
	} else {
		printStatus("✓", "ANTHROPIC_API_KEY is set", color.FgGreen)
	}

	for _, dir := range []string{
		filepath.Join(waypointDir, "logs"),
		filepath.Join(waypointDir, "cache"),
		filepath.Join(waypointDir, "capabilities"),
		filepath.Join(absPath, "docs"),
		filepath.Join(absPath, "maps"),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created .waypoint structure and knowledge roots", color.FgGreen)

	mapIndex := filepath.Join(absPath, "maps", "map-index.json")
	if _, err := os.Stat(mapIndex); os.IsNotExist(err) || initForce {
		if err := os.WriteFile(mapIndex, []byte("[]\n"), 0644); err != nil {
			return fmt.Errorf("writing map index: %w", err)
		}
		printStatus("✓", "Seeded empty pattern map index", color.FgGreen)
	}

	if initWithConfig {
		configPath := filepath.Join(absPath, ".waypoint.yaml")
		if _, err := os.Stat(configPath); err == nil && !initForce {
			printStatus("⚠", ".waypoint.yaml already exists, skipping", color.FgYellow)
		} else {
			if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
				return fmt.Errorf("writing example config: %w", err)
			}
			printStatus("✓", "Wrote example .waypoint.yaml", color.FgGreen)
		}
	}

	fmt.Printf("\nDone. Put institutional knowledge in docs/ and maps/, then run:\n")
	fmt.Printf("  waypoint run \"<your request>\"\n")
	return nil
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Printf("%s %s\n", c.Sprint(symbol), message)
}

const exampleConfig = `# Waypoint project configuration.
# Values here override ~/.config/waypoint/config.yaml.

cache:
  # Persist the retrieval cache across runs. Empty uses a per-process
  # in-memory cache.
  path: .waypoint/cache/retrieval.db
  ttl: 1h

knowledge:
  roots:
    - docs
    - maps
  map_index: maps/map-index.json
  catalogue_dir: .waypoint/capabilities

scheduler:
  parallelism: 4
  task_timeout: 2m
  request_timeout: 15m
`
