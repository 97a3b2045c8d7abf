package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

const snapshotColumns = `
	token_address, snapshot_time, market_cap_usd, liquidity_usd,
	price_usd, price_change_24h, volume_24h
`

// InsertBulk adds multiple snapshots. Fails entire batch on duplicate (token_address, snapshot_time).
func (s *SnapshotStore) InsertBulk(ctx context.Context, snapshots []*domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		address      string
		snapshotTime int64
	}
	seen := make(map[key]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
		k := key{snap.TokenAddress, snap.SnapshotTime}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// MergeTree does not enforce uniqueness, so check existing rows first.
	for _, snap := range snapshots {
		exists, err := s.exists(ctx, snap.TokenAddress, snap.SnapshotTime)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO snapshots (`+snapshotColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snapshots {
		err = batch.Append(
			snap.TokenAddress, snap.SnapshotTime,
			snap.MarketCapUSD, snap.LiquidityUSD, snap.PriceUSD,
			snap.PriceChange24h, snap.Volume24h,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByAddress retrieves all snapshots for a token, ordered by snapshot_time ASC.
func (s *SnapshotStore) GetByAddress(ctx context.Context, address string) ([]*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE token_address = ?
		ORDER BY snapshot_time ASC
	`

	rows, err := s.conn.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("query by address: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// LatestSnapshot retrieves the latest snapshot within [start, end].
func (s *SnapshotStore) LatestSnapshot(ctx context.Context, address string, start, end int64) (*domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE token_address = ? AND snapshot_time >= ? AND snapshot_time <= ?
		ORDER BY snapshot_time DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, address, start, end)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

// LatestInWindow retrieves the latest snapshot within [start, end] for each address.
// Addresses without a snapshot in range are absent from the result.
func (s *SnapshotStore) LatestInWindow(ctx context.Context, addresses []string, start, end int64) (map[string]*domain.Snapshot, error) {
	result := make(map[string]*domain.Snapshot, len(addresses))
	if len(addresses) == 0 {
		return result, nil
	}

	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE token_address IN (?) AND snapshot_time >= ? AND snapshot_time <= ?
		ORDER BY token_address ASC, snapshot_time DESC
		LIMIT 1 BY token_address
	`

	for lo := 0; lo < len(addresses); lo += maxAddressesPerQuery {
		hi := min(lo+maxAddressesPerQuery, len(addresses))

		rows, err := s.conn.Query(ctx, query, addresses[lo:hi], start, end)
		if err != nil {
			return nil, fmt.Errorf("query latest in window: %w", err)
		}
		snaps, err := scanSnapshots(rows)
		rows.Close()
		if err != nil {
			return nil, err
		}

		for _, snap := range snaps {
			result[snap.TokenAddress] = snap
		}
	}

	return result, nil
}

// maxAddressesPerQuery bounds the IN list of a single LatestInWindow query.
const maxAddressesPerQuery = 1000

// exists checks if a snapshot with the given key exists.
func (s *SnapshotStore) exists(ctx context.Context, address string, snapshotTime int64) (bool, error) {
	query := `
		SELECT count(*) FROM snapshots
		WHERE token_address = ? AND snapshot_time = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, address, snapshotTime).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSnapshots scans multiple rows.
func scanSnapshots(rows driver.Rows) ([]*domain.Snapshot, error) {
	var snapshots []*domain.Snapshot

	for rows.Next() {
		var snap domain.Snapshot
		err := rows.Scan(
			&snap.TokenAddress, &snap.SnapshotTime,
			&snap.MarketCapUSD, &snap.LiquidityUSD, &snap.PriceUSD,
			&snap.PriceChange24h, &snap.Volume24h,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}

	return snapshots, nil
}
