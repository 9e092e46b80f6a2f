package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/waypoint/internal/config"
	"github.com/ShayCichocki/waypoint/internal/orchestrator"
	"github.com/ShayCichocki/waypoint/pkg/models"
)

var (
	runHints    []string
	runJSON     bool
	runProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Run an analysis request",
	Long: `Run an analysis request against the project's knowledge base.

The request is classified into a methodology tier by its wording:
  - light:  lookups and doc questions; a single retrieval pass
  - medium: typical work; adds pattern application and an
            implementation bridge (the default)
  - full:   broad or high-stakes work; adds parallel gap and deep
            analysis, doc planning, and cross-referencing

Retrieval always runs first and the plan is grounded in what it finds.
Execution is bounded by a per-tier work-unit budget; when the budget
runs out, remaining tasks are skipped and the findings carry a caveat
rather than failing outright.

Use --hint to supply prior-context identifiers (file paths, topic
names) that sharpen retrieval.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringArrayVar(&runHints, "hint", nil, "Context hint (file path or topic name); repeatable")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Emit findings as JSON")
	runCmd.Flags().BoolVar(&runProgress, "progress", false, "Print task transitions while executing")
}

func runRequest(cmd *cobra.Command, args []string) error {
	description := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: cancellation skips unstarted work and still
	// synthesizes whatever completed.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt, finishing with partial results...")
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(orchestrator.NewDebugLoggerForProject(cwd)),
	}
	if runProgress {
		opts = append(opts, orchestrator.WithSink(
			orchestrator.SinkFunc(printTransition),
			cfg.Scheduler.EventQueueSize,
			cfg.Scheduler.AuditRingSize,
		))
	}

	coord, err := orchestrator.New(cfg, opts...)
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}
	defer coord.Close()

	findings, plan, err := coord.Execute(ctx, description, runHints)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(findings)
	}

	renderFindings(findings, plan)
	return nil
}

// printTransition writes one progress line per event.
func printTransition(e orchestrator.ProgressEvent) {
	if e.TaskID == "" {
		fmt.Printf("  phase %-22s %s\n", e.Detail, e.Transition)
		return
	}
	fmt.Printf("    task %-22s %s\n", e.Detail, e.Transition)
}

// renderFindings prints the synthesized findings grouped by category.
func renderFindings(findings *models.SynthesizedFindings, plan *models.ExecutionPlan) {
	statusColor := color.New(color.FgGreen)
	switch findings.Status {
	case models.FindingsPartial:
		statusColor = color.New(color.FgYellow)
	case models.FindingsFailed:
		statusColor = color.New(color.FgRed)
	}

	bold := color.New(color.Bold)
	bold.Printf("Findings for request %s\n", findings.RequestID)
	fmt.Printf("  Tier:       %s\n", plan.Tier)
	fmt.Printf("  Status:     %s\n", statusColor.Sprint(string(findings.Status)))
	fmt.Printf("  Confidence: %.0f%%\n", findings.Confidence*100)
	fmt.Println()

	if len(findings.Categories) == 0 {
		fmt.Println("No findings produced.")
		return
	}

	categories := make([]string, 0, len(findings.Categories))
	for c := range findings.Categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	// Caveats last so they read as qualifications of everything above.
	for i, c := range categories {
		if c == "caveats" {
			categories = append(append(categories[:i:i], categories[i+1:]...), "caveats")
			break
		}
	}

	for _, category := range categories {
		header := bold.Sprint(strings.ToUpper(category[:1]) + category[1:])
		if category == "caveats" || category == "contradictions" {
			header = color.New(color.Bold, color.FgYellow).Sprint(strings.ToUpper(category[:1]) + category[1:])
		}
		fmt.Println(header)
		for _, stmt := range findings.Categories[category] {
			fmt.Printf("  - %s\n", stmt)
		}
		fmt.Println()
	}
}
