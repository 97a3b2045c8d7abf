// Package main runs a single aggregation cycle and prints the result.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trendradar/internal/app"
	"trendradar/internal/breakout"
	"trendradar/internal/logging"
	"trendradar/internal/observability"
	"trendradar/internal/orchestrator"
)

var (
	flags        app.Flags
	recategorize bool
	asOf         string
)

var rootCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Run one aggregation cycle",
	Long: `aggregate recategorizes tokens, computes trend aggregates for every
category and window, scores acceleration and runs emergent-cluster detection
once, then exits.

With --use-memory the run works on the built-in demo fixtures.`,
	SilenceUsage: true,
	RunE:         runAggregate,
}

func init() {
	app.RegisterFlags(rootCmd, &flags)
	rootCmd.Flags().BoolVar(&recategorize, "recategorize", false, "Re-run the categorizer over all tokens before aggregating")
	rootCmd.Flags().StringVar(&asOf, "as-of", "", "Run as of this RFC3339 time instead of now")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfg, err := flags.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("recategorize") {
		cfg.Categorizer.RecategorizeOnRun = recategorize
	}

	at := time.Now().UTC()
	if asOf != "" {
		if at, err = time.Parse(time.RFC3339, asOf); err != nil {
			return fmt.Errorf("parse --as-of: %w", err)
		}
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	table, err := app.LoadKeywordTable(cfg)
	if err != nil {
		return err
	}

	if stores.Memory {
		if _, err := app.SeedFixtures(ctx, stores, table, at.UnixMilli()); err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
	}

	orch := app.NewOrchestrator(cfg, stores, table, logger, observability.DefaultMetrics)
	result, err := orch.RunAt(ctx, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	logger.Info("run completed", zap.String("run_id", result.RunID), zap.String("status", result.Status()))
	printResult(cmd.OutOrStdout(), result)
	return nil
}

// printResult writes a human-readable run summary.
func printResult(w io.Writer, r *orchestrator.RunResult) {
	fmt.Fprintf(w, "Run %s (%s)\n", r.RunID, r.Status())
	fmt.Fprintf(w, "  As of:          %s\n", time.UnixMilli(r.AsOfTime).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  Recategorized:  %d\n", r.Recategorized)
	fmt.Fprintf(w, "  Keys processed: %d\n", r.KeysProcessed)
	fmt.Fprintf(w, "  Failed keys:    %d\n", len(r.FailedKeys))
	fmt.Fprintf(w, "  Breakout metas: %d\n", r.BreakoutMetas)
	fmt.Fprintf(w, "  Duration:       %s\n", r.Duration.Round(time.Millisecond))

	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}

	if r.Breakout == nil {
		return
	}
	fmt.Fprintln(w)
	if r.Breakout.Skipped {
		fmt.Fprintf(w, "Emergent cluster detection skipped: cohort of %d tokens\n", r.Breakout.CohortSize)
		return
	}
	fmt.Fprintln(w, breakout.FormatClusterReport(r.Breakout.Clusters))
}
