// Package main generates the trend report from stored aggregates.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trendradar/internal/app"
	"trendradar/internal/logging"
	"trendradar/internal/observability"
	"trendradar/internal/pipeline"
)

var (
	flags  app.Flags
	window string
	topN   int
	stdout bool
)

var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the trend report",
	Long: `report renders the latest stored aggregation run as TREND_REPORT.md,
top_trends.csv and breakout_metas.csv in the output directory.

With --use-memory the demo fixtures are loaded and aggregated first, so the
command produces a complete report without any database.`,
	SilenceUsage: true,
	RunE:         runReport,
}

func init() {
	app.RegisterFlags(rootCmd, &flags)
	rootCmd.Flags().StringVar(&window, "window", "24h", "Time window to report on")
	rootCmd.Flags().IntVar(&topN, "top", 0, "Rows per table (default from config)")
	rootCmd.Flags().BoolVar(&stdout, "stdout", false, "Also print the Markdown report to stdout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	cfg, err := flags.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if topN > 0 {
		cfg.Report.TopN = topN
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	ctx := context.Background()

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
		// Memory stores start empty; aggregate the fixtures so there is something to report.
		now := time.Now().UTC()
		if _, err := app.SeedFixtures(ctx, stores, table, now.UnixMilli()); err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
		orch := app.NewOrchestrator(cfg, stores, table, logger, observability.DefaultMetrics)
		if _, err := orch.RunAt(ctx, now.UnixMilli()); err != nil {
			return fmt.Errorf("aggregate fixtures: %w", err)
		}
	}

	gen := app.NewReportGenerator(cfg, stores, table).WithWindow(window)
	p := pipeline.NewReportPipeline(gen, cfg.Report.OutputDir)
	if stores.Memory {
		p = p.WithDataSource("fixtures")
	} else {
		p = p.WithDBSource(cfg.Postgres.DSN, cfg.ClickHouse.DSN)
	}

	out, err := p.Run(ctx)
	if err != nil {
		return err
	}

	if stdout {
		fmt.Fprint(cmd.OutOrStdout(), pipelineMarkdown(out))
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Report generated (data version %s):\n", out.DataVersion)
	for _, f := range out.Files {
		fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", f)
	}
	return nil
}

// pipelineMarkdown re-reads the written Markdown so stdout matches the file.
func pipelineMarkdown(out *pipeline.Output) string {
	data, err := os.ReadFile(out.Files[0])
	if err != nil {
		return ""
	}
	return string(data)
}
