package storage

import (
	"context"

	"trendradar/internal/domain"
)

// TokenStore provides access to tokens storage.
type TokenStore interface {
	// Insert adds a new token. Returns ErrDuplicateKey if address exists,
	// ErrInvalidInput if address is not a valid public key.
	Insert(ctx context.Context, t *domain.Token) error

	// GetByAddress retrieves a token by address. Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Token, error)

	// GetAll retrieves all tokens, ordered by address ASC.
	GetAll(ctx context.Context) ([]*domain.Token, error)

	// GetByCategory retrieves tokens classified under category.
	// A nil subCategory matches every sub-category of the primary category.
	// Ordered by address ASC.
	GetByCategory(ctx context.Context, category string, subCategory *string) ([]*domain.Token, error)

	// DistinctCategories returns the distinct (primary, sub) pairs among
	// classified tokens, ordered by category then sub-category.
	DistinctCategories(ctx context.Context) ([]domain.CategoryKey, error)

	// Unclassified retrieves tokens first seen at or after sinceMs that have
	// no primary category or whose primary category is one of catchAll.
	// Ordered by address ASC.
	Unclassified(ctx context.Context, sinceMs int64, catchAll []string) ([]*domain.Token, error)

	// UpdateClassification overwrites the classification fields.
	// Returns ErrNotFound if address does not exist.
	UpdateClassification(ctx context.Context, address string, c domain.Classification) error

	// SetBreakoutFlags overwrites is_breakout_meta and breakout_cluster_name.
	// Returns ErrNotFound if address does not exist.
	SetBreakoutFlags(ctx context.Context, address string, isBreakout bool, clusterName *string) error

	// GetFlaggedBreakouts retrieves tokens with is_breakout_meta set, ordered by address ASC.
	GetFlaggedBreakouts(ctx context.Context) ([]*domain.Token, error)
}

// SnapshotStore provides access to snapshots storage. Append-only.
type SnapshotStore interface {
	// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (token_address, snapshot_time).
	InsertBulk(ctx context.Context, snapshots []*domain.Snapshot) error

	// GetByAddress retrieves all snapshots for a token, ordered by snapshot_time ASC.
	GetByAddress(ctx context.Context, address string) ([]*domain.Snapshot, error)

	// LatestSnapshot retrieves the snapshot with the greatest snapshot_time
	// within [start, end] (inclusive). Returns ErrNotFound if none.
	LatestSnapshot(ctx context.Context, address string, start, end int64) (*domain.Snapshot, error)

	// LatestInWindow retrieves the latest snapshot within [start, end] for each
	// of the given addresses. Addresses without a snapshot are absent from the map.
	LatestInWindow(ctx context.Context, addresses []string, start, end int64) (map[string]*domain.Snapshot, error)
}

// TrendAggregateStore provides access to trend_aggregates storage.
// Unlike the append-only stores, rows are replaced on key conflict.
type TrendAggregateStore interface {
	// Upsert inserts or replaces the row keyed by
	// (snapshot_time, category, sub_category, time_window).
	// Returns ErrInvalidInput if category or time_window is empty.
	Upsert(ctx context.Context, a *domain.TrendAggregate) error

	// GetByKey retrieves a single row. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, snapshotTime int64, key domain.CategoryKey, window string) (*domain.TrendAggregate, error)

	// Previous retrieves the most recent row for key and window with
	// snapshot_time <= atOrBefore. Returns ErrNotFound if none.
	Previous(ctx context.Context, key domain.CategoryKey, window string, atOrBefore int64) (*domain.TrendAggregate, error)

	// Recent retrieves up to limit rows for key and window with
	// snapshot_time < before, ordered by snapshot_time DESC.
	Recent(ctx context.Context, key domain.CategoryKey, window string, before int64, limit int) ([]*domain.TrendAggregate, error)

	// LatestSnapshotTime returns the greatest snapshot_time stored.
	// Returns ErrNotFound if the store is empty.
	LatestSnapshotTime(ctx context.Context) (int64, error)

	// GetBySnapshotTime retrieves all rows for a run and window, ordered by
	// acceleration_score DESC, then category and sub-category ASC.
	GetBySnapshotTime(ctx context.Context, snapshotTime int64, window string) ([]*domain.TrendAggregate, error)
}
