package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trendradar/internal/domain"
	"trendradar/internal/idhash"
	"trendradar/internal/storage"
)

// TrendAggregateStore implements storage.TrendAggregateStore using PostgreSQL.
type TrendAggregateStore struct {
	pool *Pool
}

// NewTrendAggregateStore creates a new TrendAggregateStore.
func NewTrendAggregateStore(pool *Pool) *TrendAggregateStore {
	return &TrendAggregateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TrendAggregateStore = (*TrendAggregateStore)(nil)

const aggregateColumns = `
	snapshot_time, category, sub_category, time_window,
	coin_count, total_market_cap, avg_market_cap, max_market_cap,
	top_coin_address, top_coin_name, acceleration_score, is_breakout_meta
`

// Upsert inserts or replaces the row for the aggregate's key in one statement.
func (s *TrendAggregateStore) Upsert(ctx context.Context, a *domain.TrendAggregate) error {
	if a == nil || a.Category == "" || a.TimeWindow == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trend_aggregates (aggregate_id, ` + aggregateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (aggregate_id) DO UPDATE SET
			coin_count         = EXCLUDED.coin_count,
			total_market_cap   = EXCLUDED.total_market_cap,
			avg_market_cap     = EXCLUDED.avg_market_cap,
			max_market_cap     = EXCLUDED.max_market_cap,
			top_coin_address   = EXCLUDED.top_coin_address,
			top_coin_name      = EXCLUDED.top_coin_name,
			acceleration_score = EXCLUDED.acceleration_score,
			is_breakout_meta   = EXCLUDED.is_breakout_meta,
			updated_at         = NOW()
	`

	_, err := s.pool.Exec(ctx, query,
		idhash.ComputeAggregateID(a.SnapshotTime, a.Key(), a.TimeWindow),
		a.SnapshotTime,
		a.Category,
		a.SubCategory,
		a.TimeWindow,
		a.CoinCount,
		a.TotalMarketCap,
		a.AvgMarketCap,
		a.MaxMarketCap,
		a.TopCoinAddress,
		a.TopCoinName,
		a.AccelerationScore,
		a.IsBreakoutMeta,
	)
	if err != nil {
		return fmt.Errorf("upsert trend aggregate: %w", err)
	}
	return nil
}

// GetByKey retrieves a single row. Returns ErrNotFound if not exists.
func (s *TrendAggregateStore) GetByKey(ctx context.Context, snapshotTime int64, key domain.CategoryKey, window string) (*domain.TrendAggregate, error) {
	query := `SELECT ` + aggregateColumns + ` FROM trend_aggregates WHERE aggregate_id = $1`

	a, err := scanAggregate(s.pool.QueryRow(ctx, query, idhash.ComputeAggregateID(snapshotTime, key, window)))
	if err != nil {
		return nil, wrapErr(err, "get trend aggregate")
	}
	return a, nil
}

// Previous retrieves the most recent row with snapshot_time <= atOrBefore.
func (s *TrendAggregateStore) Previous(ctx context.Context, key domain.CategoryKey, window string, atOrBefore int64) (*domain.TrendAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM trend_aggregates
		WHERE category = $1
		  AND sub_category IS NOT DISTINCT FROM $2
		  AND time_window = $3
		  AND snapshot_time <= $4
		ORDER BY snapshot_time DESC
		LIMIT 1
	`

	a, err := scanAggregate(s.pool.QueryRow(ctx, query, key.Category, key.SubCategory, window, atOrBefore))
	if err != nil {
		return nil, wrapErr(err, "get previous trend aggregate")
	}
	return a, nil
}

// Recent retrieves up to limit rows with snapshot_time < before, newest first.
func (s *TrendAggregateStore) Recent(ctx context.Context, key domain.CategoryKey, window string, before int64, limit int) ([]*domain.TrendAggregate, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `
		SELECT ` + aggregateColumns + `
		FROM trend_aggregates
		WHERE category = $1
		  AND sub_category IS NOT DISTINCT FROM $2
		  AND time_window = $3
		  AND snapshot_time < $4
		ORDER BY snapshot_time DESC
		LIMIT $5
	`

	rows, err := s.pool.Query(ctx, query, key.Category, key.SubCategory, window, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trend aggregates: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// LatestSnapshotTime returns the greatest snapshot_time stored.
func (s *TrendAggregateStore) LatestSnapshotTime(ctx context.Context) (int64, error) {
	var latest *int64
	if err := s.pool.QueryRow(ctx, `SELECT MAX(snapshot_time) FROM trend_aggregates`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("get latest snapshot time: %w", err)
	}
	if latest == nil {
		return 0, storage.ErrNotFound
	}
	return *latest, nil
}

// GetBySnapshotTime retrieves all rows for a run and window, highest score first.
func (s *TrendAggregateStore) GetBySnapshotTime(ctx context.Context, snapshotTime int64, window string) ([]*domain.TrendAggregate, error) {
	query := `
		SELECT ` + aggregateColumns + `
		FROM trend_aggregates
		WHERE snapshot_time = $1 AND time_window = $2
		ORDER BY acceleration_score DESC, category ASC, COALESCE(sub_category, '') ASC
	`

	rows, err := s.pool.Query(ctx, query, snapshotTime, window)
	if err != nil {
		return nil, fmt.Errorf("get trend aggregates by snapshot time: %w", err)
	}
	defer rows.Close()

	return scanAggregates(rows)
}

// scanAggregate scans a single row into a TrendAggregate.
func scanAggregate(row pgx.Row) (*domain.TrendAggregate, error) {
	var a domain.TrendAggregate
	err := row.Scan(
		&a.SnapshotTime,
		&a.Category,
		&a.SubCategory,
		&a.TimeWindow,
		&a.CoinCount,
		&a.TotalMarketCap,
		&a.AvgMarketCap,
		&a.MaxMarketCap,
		&a.TopCoinAddress,
		&a.TopCoinName,
		&a.AccelerationScore,
		&a.IsBreakoutMeta,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// scanAggregates scans multiple rows into TrendAggregates.
func scanAggregates(rows pgx.Rows) ([]*domain.TrendAggregate, error) {
	var result []*domain.TrendAggregate
	for rows.Next() {
		a, err := scanAggregate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trend aggregate: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trend aggregates: %w", err)
	}
	return result, nil
}
