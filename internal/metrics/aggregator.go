// Package metrics reduces snapshots into per-category summaries.
package metrics

import (
	"context"
	"fmt"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// Summary is the result of aggregating one category over one window.
type Summary struct {
	Metrics        domain.CategoryMetrics
	TopCoinAddress *string // token with the largest market cap (nullable)
	TopCoinName    *string
	SnapshotsFound int // tokens with any snapshot in the window
}

// Aggregator computes category metrics from the token and snapshot stores.
// Reads only; safe for concurrent use when the stores are.
type Aggregator struct {
	tokenStore    storage.TokenStore
	snapshotStore storage.SnapshotStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(tokenStore storage.TokenStore, snapshotStore storage.SnapshotStore) *Aggregator {
	return &Aggregator{
		tokenStore:    tokenStore,
		snapshotStore: snapshotStore,
	}
}

// Compute builds CategoryMetrics for key over window ending at asOfMs.
// For each token of the category the snapshot with the greatest
// snapshot_time in [asOfMs-window, asOfMs] is used.
func (a *Aggregator) Compute(ctx context.Context, key domain.CategoryKey, window domain.TimeWindow, asOfMs int64) (*Summary, error) {
	tokens, err := a.tokenStore.GetByCategory(ctx, key.Category, key.SubCategory)
	if err != nil {
		return nil, fmt.Errorf("load tokens for %s: %w", key, err)
	}

	if len(tokens) == 0 {
		return summarize(key, asOfMs, nil, nil), nil
	}

	addresses := make([]string, 0, len(tokens))
	for _, t := range tokens {
		addresses = append(addresses, t.Address)
	}

	start := asOfMs - window.Duration.Milliseconds()
	latest, err := a.snapshotStore.LatestInWindow(ctx, addresses, start, asOfMs)
	if err != nil {
		return nil, fmt.Errorf("load snapshots for %s: %w", key, err)
	}

	return summarize(key, asOfMs, tokens, latest), nil
}
