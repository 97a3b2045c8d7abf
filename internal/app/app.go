// Package app wires configuration into stores, the orchestrator and reports.
// Shared by the server, aggregate and report commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trendradar/internal/breakout"
	"trendradar/internal/categorizer"
	"trendradar/internal/config"
	"trendradar/internal/fixtures"
	"trendradar/internal/observability"
	"trendradar/internal/orchestrator"
	"trendradar/internal/reporting"
	"trendradar/internal/storage"
	chstore "trendradar/internal/storage/clickhouse"
	"trendradar/internal/storage/memory"
	"trendradar/internal/storage/migrations"
	pgstore "trendradar/internal/storage/postgres"
)

// Stores holds the storage implementations selected by the configuration.
type Stores struct {
	Tokens     storage.TokenStore
	Snapshots  storage.SnapshotStore
	Aggregates storage.TrendAggregateStore
	Memory     bool

	close func()
}

// Close releases database connections. Safe on memory stores.
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores creates memory stores or connects to PostgreSQL and ClickHouse,
// applying the embedded migrations to both.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if cfg.UseMemory {
		logger.Info("using in-memory stores")
		return &Stores{
			Tokens:     memory.NewTokenStore(),
			Snapshots:  memory.NewSnapshotStore(),
			Aggregates: memory.NewTrendAggregateStore(),
			Memory:     true,
		}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	// ClickHouse
	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouse.DSN)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}
	logger.Info("connected to postgres and clickhouse, migrations applied")

	return &Stores{
		Tokens:     pgstore.NewTokenStore(pool),
		Snapshots:  chstore.NewSnapshotStore(chConn),
		Aggregates: pgstore.NewTrendAggregateStore(pool),
		close: func() {
			chConn.Close()
			pool.Close()
		},
	}, nil
}

// LoadKeywordTable reads the configured keyword table or the embedded default.
func LoadKeywordTable(cfg *config.Config) (*categorizer.KeywordTable, error) {
	if cfg.Categorizer.KeywordTablePath == "" {
		return categorizer.DefaultTable()
	}
	table, err := categorizer.LoadTableFile(cfg.Categorizer.KeywordTablePath)
	if err != nil {
		return nil, fmt.Errorf("load keyword table: %w", err)
	}
	return table, nil
}

// NewDetector builds the emergent-cluster detector. Returns nil when disabled.
func NewDetector(cfg *config.Config, table *categorizer.KeywordTable) *breakout.Detector {
	if !cfg.Breakout.Enabled {
		return nil
	}

	dc := breakout.DefaultConfig()
	dc.MinClusterSize = cfg.Breakout.MinClusterSize
	dc.Eps = cfg.Breakout.Eps
	dc.MinSamples = cfg.Breakout.MinSamples
	if cfg.Breakout.FilterKnownCategories {
		dc.KnownCategories = table.KnownCategoryKeywords()
	}
	return breakout.NewDetector(dc)
}

// NewOrchestrator builds the orchestrator from the configuration.
func NewOrchestrator(cfg *config.Config, stores *Stores, table *categorizer.KeywordTable, logger *zap.Logger, m *observability.Metrics) *orchestrator.Orchestrator {
	return orchestrator.New(orchestrator.Options{
		TokenStore:          stores.Tokens,
		SnapshotStore:       stores.Snapshots,
		TrendAggregateStore: stores.Aggregates,
		Categorizer:         categorizer.New(table),
		Recategorize:        cfg.Categorizer.RecategorizeOnRun,
		Detector:            NewDetector(cfg, table),
		Windows:             cfg.TimeWindows(),
		HistoryPeriods:      cfg.Aggregation.HistoryPeriods,
		PreviousOffset:      cfg.Aggregation.PreviousOffset,
		BreakoutThreshold:   cfg.Aggregation.BreakoutThreshold,
		IncludeRollups:      cfg.Aggregation.IncludeRollups,
		MaxParallel:         cfg.Aggregation.MaxParallel,
		BreakoutLookback:    cfg.Breakout.Lookback,
		MinCohort:           cfg.Breakout.MinCohort,
		CatchAllCategories:  cfg.Breakout.CatchAllCategories,
		FlagPolicy:          orchestrator.FlagPolicy(cfg.Breakout.FlagPolicy),
		Logger:              logger.Named("orchestrator"),
		Metrics:             m,
	})
}

// NewReportGenerator builds a report generator over the trend stores.
func NewReportGenerator(cfg *config.Config, stores *Stores, table *categorizer.KeywordTable) *reporting.Generator {
	return reporting.NewGenerator(stores.Tokens, stores.Aggregates, table).
		WithLimit(cfg.Report.TopN).
		WithThreshold(cfg.Aggregation.BreakoutThreshold)
}

// SeedFixtures loads the demo dataset into memory stores.
func SeedFixtures(ctx context.Context, stores *Stores, table *categorizer.KeywordTable, nowMs int64) (*fixtures.Dataset, error) {
	if !stores.Memory {
		return nil, fmt.Errorf("fixtures can only be loaded into memory stores")
	}
	return fixtures.Load(ctx, categorizer.New(table), stores.Tokens, stores.Snapshots, nowMs)
}
