// Package main runs the trend engine as a long-lived service:
// - Aggregation (scheduled): categorize, aggregate, score, detect clusters
// - Reporting (after each run): TREND_REPORT.md and CSVs
// - HTTP: /health, /metrics, /status
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trendradar/internal/app"
	"trendradar/internal/logging"
	"trendradar/internal/observability"
	"trendradar/internal/pipeline"
	"trendradar/internal/scheduler"
)

var (
	flags       app.Flags
	schedule    string
	metricsAddr string
	noRunStart  bool
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Run scheduled trend aggregation with metrics and status endpoints",
	Long: `server runs the aggregation cycle on a cron schedule.

Each run recategorizes new tokens, aggregates market data per category and
window, scores acceleration, detects emergent clusters among uncategorized
tokens and writes a fresh trend report.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func init() {
	app.RegisterFlags(rootCmd, &flags)
	rootCmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule, e.g. \"*/15 * * * *\" or \"@every 15m\"")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for /health, /metrics and /status")
	rootCmd.Flags().BoolVar(&noRunStart, "no-run-on-start", false, "Wait for the first scheduled tick instead of running immediately")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	cfg, err := flags.LoadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Scheduler.Schedule = schedule
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Server.MetricsAddr = metricsAddr
	}
	if noRunStart {
		cfg.Scheduler.RunOnStart = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
		ds, err := app.SeedFixtures(ctx, stores, table, time.Now().UnixMilli())
		if err != nil {
			return fmt.Errorf("seed fixtures: %w", err)
		}
		logger.Info("seeded demo fixtures", zap.Int("tokens", len(ds.Tokens)), zap.Int("snapshots", len(ds.Snapshots)))
	}

	reports := pipeline.NewReportPipeline(app.NewReportGenerator(cfg, stores, table), cfg.Report.OutputDir)
	if stores.Memory {
		reports = reports.WithDataSource("fixtures")
	} else {
		reports = reports.WithDBSource(cfg.Postgres.DSN, cfg.ClickHouse.DSN)
	}

	orch := app.NewOrchestrator(cfg, stores, table, logger, observability.DefaultMetrics)
	server := NewServer(logger, reports)
	server.scheduler = scheduler.NewService(orch, logger.Named("scheduler")).WithAfterRun(server.afterRun)

	// Channel to signal completion
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()
	defer close(done)

	if err := server.scheduler.Start(ctx, cfg.Scheduler.Schedule, cfg.Scheduler.RunOnStart); err != nil {
		return err
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- server.ListenAndServe(ctx, cfg.Server.MetricsAddr)
	}()

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			logger.Error("http server failed", zap.Error(err))
			cancel()
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer stopCancel()
	if err := server.scheduler.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("scheduler did not stop cleanly", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}
