// Package orchestrator drives trend aggregation runs.
// It coordinates: recategorization → per-window scoring → emergent-cluster flagging
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trendradar/internal/acceleration"
	"trendradar/internal/breakout"
	"trendradar/internal/categorizer"
	"trendradar/internal/domain"
	"trendradar/internal/idhash"
	"trendradar/internal/metrics"
	"trendradar/internal/observability"
	"trendradar/internal/storage"
)

// ErrRunInProgress is returned when a run is started while another is active.
var ErrRunInProgress = errors.New("orchestrator: run already in progress")

// FlagPolicy decides what happens to tokens that drop out of every cluster.
type FlagPolicy string

const (
	FlagPolicyRetain FlagPolicy = "retain" // stale flags stay until overwritten
	FlagPolicyClear  FlagPolicy = "clear"  // stale flags are reset after each detection
)

// Defaults applied by New for zero option values.
const (
	DefaultHistoryPeriods   = 6
	DefaultPreviousOffset   = time.Hour
	DefaultBreakoutLookback = 24 * time.Hour
	DefaultMinCohort        = 10
)

// Orchestrator coordinates trend aggregation runs.
// Flow: recategorize (optional) → aggregate every (category, window) → detect emergent clusters
type Orchestrator struct {
	// Stores
	tokenStore     storage.TokenStore
	aggregateStore storage.TrendAggregateStore
	aggregator     *metrics.Aggregator

	// Components
	categorizer *categorizer.Categorizer
	detector    *breakout.Detector
	classifier  acceleration.Classifier

	// Aggregation options
	windows        []domain.TimeWindow
	historyPeriods int
	previousOffset time.Duration
	includeRollups bool
	maxParallel    int
	recategorize   bool

	// Breakout options
	lookback   time.Duration
	minCohort  int
	catchAll   []string
	flagPolicy FlagPolicy

	logger  *zap.Logger
	metrics *observability.Metrics
	clock   func() time.Time

	running atomic.Bool
	locks   *keyLocks
}

// Options for creating Orchestrator.
type Options struct {
	// Required stores
	TokenStore          storage.TokenStore
	SnapshotStore       storage.SnapshotStore
	TrendAggregateStore storage.TrendAggregateStore

	// Categorizer is required when Recategorize is set.
	Categorizer  *categorizer.Categorizer
	Recategorize bool // re-run the categorizer over every token before aggregating

	// Detector enables emergent-cluster detection. Nil disables it.
	Detector *breakout.Detector

	// Aggregation
	Windows           []domain.TimeWindow // default 12h/24h/7d
	HistoryPeriods    int                 // prior aggregates used as the breakout baseline
	PreviousOffset    time.Duration       // velocity baseline is the latest aggregate at or before as-of minus this
	BreakoutThreshold float64             // score at which a category is a breakout meta
	IncludeRollups    bool                // also score (category, nil) over all sub-categories
	MaxParallel       int                 // concurrent keys, default GOMAXPROCS

	// Emergent clusters
	BreakoutLookback   time.Duration // cohort = tokens first seen within this span of as-of
	MinCohort          int           // skip detection below this many tokens
	CatchAllCategories []string      // primary categories treated as unclassified
	FlagPolicy         FlagPolicy

	Logger  *zap.Logger
	Metrics *observability.Metrics
	Clock   func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		tokenStore:     opts.TokenStore,
		aggregateStore: opts.TrendAggregateStore,
		aggregator:     metrics.NewAggregator(opts.TokenStore, opts.SnapshotStore),
		categorizer:    opts.Categorizer,
		detector:       opts.Detector,
		classifier:     acceleration.NewClassifier(opts.BreakoutThreshold),
		windows:        opts.Windows,
		historyPeriods: opts.HistoryPeriods,
		previousOffset: opts.PreviousOffset,
		includeRollups: opts.IncludeRollups,
		maxParallel:    opts.MaxParallel,
		recategorize:   opts.Recategorize && opts.Categorizer != nil,
		lookback:       opts.BreakoutLookback,
		minCohort:      opts.MinCohort,
		catchAll:       opts.CatchAllCategories,
		flagPolicy:     opts.FlagPolicy,
		logger:         opts.Logger,
		metrics:        opts.Metrics,
		clock:          opts.Clock,
		locks:          newKeyLocks(),
	}

	if len(o.windows) == 0 {
		o.windows = domain.DefaultWindows()
	}
	if o.historyPeriods <= 0 {
		o.historyPeriods = DefaultHistoryPeriods
	}
	if o.previousOffset <= 0 {
		o.previousOffset = DefaultPreviousOffset
	}
	if o.maxParallel <= 0 {
		o.maxParallel = runtime.GOMAXPROCS(0)
	}
	if o.lookback <= 0 {
		o.lookback = DefaultBreakoutLookback
	}
	if o.minCohort <= 0 {
		o.minCohort = DefaultMinCohort
	}
	if o.flagPolicy == "" {
		o.flagPolicy = FlagPolicyRetain
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = observability.DefaultMetrics
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	return o
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Run executes a full run as of the current clock time.
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	return o.RunAt(ctx, o.clock().UnixMilli())
}

// RunAt executes a full run as of asOfMs.
// Phases:
//  1. Recategorize tokens (when enabled)
//  2. Score every (category, sub-category, window) key and upsert its aggregate
//  3. Detect emergent clusters and flag their members (when a detector is set)
//
// Per-key and per-token failures are collected in the result. The run fails
// only when the category list cannot be read or ctx is cancelled.
func (o *Orchestrator) RunAt(ctx context.Context, asOfMs int64) (*RunResult, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.RunsSkipped.Inc()
		o.logger.Warn("run skipped, previous run still in progress", zap.Int64("as_of_ms", asOfMs))
		return nil, ErrRunInProgress
	}
	defer o.running.Store(false)

	start := time.Now()
	result := &RunResult{
		RunID:    uuid.NewString(),
		AsOfTime: asOfMs,
	}
	log := o.logger.With(zap.String("run_id", result.RunID), zap.Int64("as_of_ms", asOfMs))
	log.Info("run started",
		zap.Int("windows", len(o.windows)),
		zap.Bool("recategorize", o.recategorize),
		zap.Bool("breakout_detection", o.detector != nil))

	fail := func(phase string, err error) (*RunResult, error) {
		o.metrics.RecordRun(StatusError, time.Since(start).Seconds(), time.Now().Unix())
		log.Error("run failed", zap.String("phase", phase), zap.Error(err))
		return nil, fmt.Errorf("run %s: %s: %w", result.RunID, phase, err)
	}

	// Phase 1: Recategorization
	if o.recategorize {
		rc, err := o.Recategorize(ctx)
		if err != nil {
			return fail("recategorize", err)
		}
		result.Recategorized = rc.Updated
		result.Errors = append(result.Errors, rc.Errors...)
		log.Info("recategorized tokens", zap.Int("scanned", rc.Scanned), zap.Int("updated", rc.Updated))
	}

	// Phase 2: Aggregation
	if err := o.aggregate(ctx, asOfMs, result, log); err != nil {
		return fail("aggregate", err)
	}
	o.metrics.BreakoutMetas.Set(float64(result.BreakoutMetas))

	// Phase 3: Emergent clusters
	if o.detector != nil {
		br, err := o.DetectBreakouts(ctx, asOfMs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("breakout detection: %v", err))
			log.Warn("breakout detection failed", zap.Error(err))
		} else {
			result.Breakout = br
			result.Errors = append(result.Errors, br.Errors...)
		}
	}

	sort.Strings(result.Errors)
	result.Duration = time.Since(start)

	o.metrics.RecordRun(result.Status(), result.Duration.Seconds(), time.Now().Unix())
	log.Info("run finished",
		zap.String("status", result.Status()),
		zap.Int("keys_processed", result.KeysProcessed),
		zap.Int("keys_failed", len(result.FailedKeys)),
		zap.Int("breakout_metas", result.BreakoutMetas),
		zap.Int("errors", len(result.Errors)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// aggregate scores every key of every window in parallel.
func (o *Orchestrator) aggregate(ctx context.Context, asOfMs int64, result *RunResult, log *zap.Logger) error {
	keys, err := o.tokenStore.DistinctCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if o.includeRollups {
		keys = withRollups(keys)
	}
	log.Debug("aggregating", zap.Int("keys", len(keys)), zap.Int("windows", len(o.windows)))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)

	for _, window := range o.windows {
		window := window
		for _, key := range keys {
			key := key
			g.Go(func() error {
				agg, err := o.processKey(gctx, key, window, asOfMs)
				o.metrics.RecordKey(window.Name, err)

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					result.FailedKeys = append(result.FailedKeys, KeyRef{Key: key, Window: window.Name})
					result.Errors = append(result.Errors, fmt.Sprintf("aggregate %s@%s: %v", key, window.Name, err))
					log.Warn("key failed",
						zap.String("category", key.Category),
						zap.String("sub_category", key.Sub()),
						zap.String("window", window.Name),
						zap.Error(err))
					return nil
				}

				result.KeysProcessed++
				if agg.IsBreakoutMeta {
					result.BreakoutMetas++
				}
				return nil
			})
		}
	}

	// Workers never return errors; failures are collected above.
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}

	sort.Slice(result.FailedKeys, func(i, j int) bool {
		return result.FailedKeys[i].String() < result.FailedKeys[j].String()
	})
	return nil
}

// processKey computes, scores and upserts one aggregate.
// Work on the same series is serialized.
func (o *Orchestrator) processKey(ctx context.Context, key domain.CategoryKey, window domain.TimeWindow, asOfMs int64) (*domain.TrendAggregate, error) {
	unlock := o.locks.lock(idhash.ComputeSeriesKey(key, window.Name))
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary, err := o.aggregator.Compute(ctx, key, window, asOfMs)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	previous, err := o.previousMetrics(ctx, key, window.Name, asOfMs)
	if err != nil {
		return nil, err
	}

	history, err := o.historicalMetrics(ctx, key, window.Name, asOfMs)
	if err != nil {
		return nil, err
	}

	score := acceleration.Score(summary.Metrics, previous, history)

	m := summary.Metrics
	agg := &domain.TrendAggregate{
		SnapshotTime:      asOfMs,
		Category:          key.Category,
		SubCategory:       key.SubCategory,
		TimeWindow:        window.Name,
		CoinCount:         m.CoinCount,
		TotalMarketCap:    m.TotalMarketCap,
		AvgMarketCap:      m.AvgMarketCap,
		MaxMarketCap:      m.MaxMarketCap,
		TopCoinAddress:    summary.TopCoinAddress,
		TopCoinName:       summary.TopCoinName,
		AccelerationScore: score.TotalScore,
		IsBreakoutMeta:    o.classifier.IsBreakoutMeta(score.TotalScore),
	}

	if err := o.aggregateStore.Upsert(ctx, agg); err != nil {
		return nil, fmt.Errorf("upsert aggregate: %w", err)
	}
	return agg, nil
}

// previousMetrics returns the velocity baseline, or nil when the series has none.
func (o *Orchestrator) previousMetrics(ctx context.Context, key domain.CategoryKey, window string, asOfMs int64) (*domain.CategoryMetrics, error) {
	cutoff := asOfMs - o.previousOffset.Milliseconds()
	prev, err := o.aggregateStore.Previous(ctx, key, window, cutoff)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous aggregate: %w", err)
	}
	m := prev.Metrics()
	return &m, nil
}

// historicalMetrics returns up to historyPeriods aggregates strictly before asOfMs.
func (o *Orchestrator) historicalMetrics(ctx context.Context, key domain.CategoryKey, window string, asOfMs int64) ([]domain.CategoryMetrics, error) {
	rows, err := o.aggregateStore.Recent(ctx, key, window, asOfMs, o.historyPeriods)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	history := make([]domain.CategoryMetrics, 0, len(rows))
	for _, r := range rows {
		history = append(history, r.Metrics())
	}
	return history, nil
}

// withRollups adds a (category, nil) key for every primary category in keys.
func withRollups(keys []domain.CategoryKey) []domain.CategoryKey {
	seen := make(map[string]bool)
	out := make([]domain.CategoryKey, 0, len(keys))
	for _, k := range keys {
		if k.IsRollup() {
			seen[k.Category] = true
		}
	}
	for _, k := range keys {
		if !seen[k.Category] {
			seen[k.Category] = true
			out = append(out, domain.CategoryKey{Category: k.Category})
		}
		out = append(out, k)
	}
	return out
}
