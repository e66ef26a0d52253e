package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gatherd/internal/config"
	"github.com/fyrsmithlabs/gatherd/internal/query"
)

var (
	gatherDir        string
	gatherJSON       bool
	gatherVerbose    bool
	gatherNoFinalize bool
	gatherBudget     int
)

var gatherCmd = &cobra.Command{
	Use:   "gather [query...]",
	Short: "Run a one-shot gather without a daemon",
	Long: `Gather context for a query directly and print the assembled block
to stdout. The pipeline runs in-process; no daemon is needed.

Examples:
  # Gather for the current directory
  gatherd gather "why is the build failing?"

  # Gather for another workspace, full result as JSON
  gatherd gather --dir ~/src/api --json "summarize open work"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGather,
}

func init() {
	gatherCmd.Flags().StringVar(&gatherDir, "dir", "", "workspace directory (default current directory)")
	gatherCmd.Flags().BoolVar(&gatherJSON, "json", false, "print the full result as JSON")
	gatherCmd.Flags().BoolVarP(&gatherVerbose, "verbose", "v", false, "log pipeline progress to stderr")
	gatherCmd.Flags().BoolVar(&gatherNoFinalize, "no-finalize", false, "skip the summarization stage")
	gatherCmd.Flags().IntVar(&gatherBudget, "budget", 0, "override the size budget in units (~4 chars each)")
}

func runGather(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if gatherNoFinalize {
		cfg.Finalizer.Enabled = false
	}
	if gatherBudget > 0 {
		cfg.Gather.BudgetUnits = gatherBudget
	}

	// Stdout carries the context block, so progress logging goes to the
	// development logger on stderr, and only when asked for.
	logger := zap.NewNop()
	if gatherVerbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
	}

	dir := gatherDir
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}

	ctx := cmd.Context()
	deps, err := newDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	defer deps.Close()

	out, err := deps.orch.Run(ctx, query.New(strings.Join(args, " "), dir), cfg.EnabledCollectors())
	if err != nil {
		return err
	}

	if gatherJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println(out.Text)
	for _, w := range out.Warnings {
		fmt.Fprintf(os.Stderr, "warning: collector %s: %s\n", w.CollectorID, w.Reason)
	}
	return nil
}
