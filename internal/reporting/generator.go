package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"trendradar/internal/acceleration"
	"trendradar/internal/categorizer"
	"trendradar/internal/domain"
	"trendradar/internal/metrics"
	"trendradar/internal/storage"
)

// DefaultLimit caps the trend tables.
const DefaultLimit = 10

// unclusteredName groups flagged tokens that carry no cluster name.
const unclusteredName = "Unnamed Cluster"

// Generator produces reports from stored data.
type Generator struct {
	tokenStore     storage.TokenStore
	aggregateStore storage.TrendAggregateStore
	table          *categorizer.KeywordTable
	classifier     acceleration.Classifier
	window         string
	limit          int
	now            func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator for the 24h window.
// A nil table falls back to the embedded default for emoji lookup.
func NewGenerator(
	tokenStore storage.TokenStore,
	aggStore storage.TrendAggregateStore,
	table *categorizer.KeywordTable,
) *Generator {
	if table == nil {
		table = categorizer.MustDefaultTable()
	}
	return &Generator{
		tokenStore:     tokenStore,
		aggregateStore: aggStore,
		table:          table,
		classifier:     acceleration.NewClassifier(0),
		window:         domain.Window24h,
		limit:          DefaultLimit,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithWindow selects the time window to report on.
func (g *Generator) WithWindow(window string) *Generator {
	if window != "" {
		g.window = window
	}
	return g
}

// WithLimit caps the number of rows in each trend table.
func (g *Generator) WithLimit(limit int) *Generator {
	if limit > 0 {
		g.limit = limit
	}
	return g
}

// WithThreshold sets the breakout threshold shown in the report header.
// Breakout rows follow the flag stored with each aggregate.
func (g *Generator) WithThreshold(threshold float64) *Generator {
	g.classifier = acceleration.NewClassifier(threshold)
	return g
}

// Generate produces a complete trend report for the latest stored run.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	report := &Report{
		GeneratedAt: g.now(),
		TimeWindow:  g.window,
		Threshold:   g.classifier.Threshold(),
	}

	tokens, err := g.tokenStore.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	report.Summary.TotalTokens = len(tokens)
	for _, t := range tokens {
		if t.IsClassified() {
			report.Summary.ClassifiedTokens++
		}
	}

	flagged, err := g.tokenStore.GetFlaggedBreakouts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load flagged tokens: %w", err)
	}
	report.Summary.FlaggedTokens = len(flagged)
	report.EmergentClusters = groupByCluster(flagged)

	latest, err := g.aggregateStore.LatestSnapshotTime(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest snapshot time: %w", err)
	}
	report.SnapshotTime = latest

	aggs, err := g.aggregateStore.GetBySnapshotTime(ctx, latest, g.window)
	if err != nil {
		return nil, fmt.Errorf("load trend aggregates: %w", err)
	}
	report.Summary.CategoryKeys = len(aggs)

	for _, agg := range aggs {
		breakout := agg.IsBreakoutMeta
		if breakout {
			report.Summary.BreakoutMetas++
		}

		var row *TrendRow
		if agg.AccelerationScore > 0 && len(report.TopTrends) < g.limit {
			if row, err = g.trendRow(ctx, agg); err != nil {
				return nil, err
			}
			report.TopTrends = append(report.TopTrends, *row)
		}
		if breakout && len(report.BreakoutMetas) < g.limit {
			if row == nil {
				if row, err = g.trendRow(ctx, agg); err != nil {
					return nil, err
				}
			}
			report.BreakoutMetas = append(report.BreakoutMetas, *row)
		}
	}

	return report, nil
}

// trendRow builds a display row including market cap change vs earlier runs.
func (g *Generator) trendRow(ctx context.Context, agg *domain.TrendAggregate) (*TrendRow, error) {
	row := &TrendRow{
		Category:          agg.Category,
		SubCategory:       agg.Key().Sub(),
		Emoji:             g.table.Emoji(agg.Category, agg.Key().Sub()),
		CoinCount:         agg.CoinCount,
		TotalMarketCap:    agg.TotalMarketCap,
		AvgMarketCap:      agg.AvgMarketCap,
		AccelerationScore: agg.AccelerationScore,
		Tier:              string(acceleration.GetTier(agg.AccelerationScore)),
		IsBreakoutMeta:    agg.IsBreakoutMeta,
	}
	if agg.TopCoinName != nil {
		row.TopCoinName = *agg.TopCoinName
	}

	var err error
	if row.Change1h, err = g.marketCapChange(ctx, agg, time.Hour); err != nil {
		return nil, err
	}
	if row.Change24h, err = g.marketCapChange(ctx, agg, 24*time.Hour); err != nil {
		return nil, err
	}
	return row, nil
}

// marketCapChange compares total market cap with the latest row at least
// ago before agg. Returns nil when either side has no positive market cap.
func (g *Generator) marketCapChange(ctx context.Context, agg *domain.TrendAggregate, ago time.Duration) (*float64, error) {
	if agg.TotalMarketCap <= 0 {
		return nil, nil
	}

	past, err := g.aggregateStore.Previous(ctx, agg.Key(), agg.TimeWindow, agg.SnapshotTime-ago.Milliseconds())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous aggregate for %s: %w", agg.Key(), err)
	}
	if past.TotalMarketCap <= 0 {
		return nil, nil
	}

	change := metrics.Round((agg.TotalMarketCap-past.TotalMarketCap)/past.TotalMarketCap*100, 2)
	return &change, nil
}

// groupByCluster groups flagged tokens by cluster name.
func groupByCluster(tokens []*domain.Token) []ClusterGroup {
	byName := make(map[string][]TokenRow)
	for _, t := range tokens {
		name := unclusteredName
		if t.BreakoutClusterName != nil && *t.BreakoutClusterName != "" {
			name = *t.BreakoutClusterName
		}
		byName[name] = append(byName[name], TokenRow{Address: t.Address, Name: t.Name, Symbol: t.Symbol})
	}

	groups := make([]ClusterGroup, 0, len(byName))
	for name, rows := range byName {
		sort.Slice(rows, func(i, j int) bool {
			return rows[i].Address < rows[j].Address
		})
		groups = append(groups, ClusterGroup{ClusterName: name, Tokens: rows})
	}

	// Sort by (size DESC, name ASC)
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].Tokens) != len(groups[j].Tokens) {
			return len(groups[i].Tokens) > len(groups[j].Tokens)
		}
		return groups[i].ClusterName < groups[j].ClusterName
	})

	return groups
}
