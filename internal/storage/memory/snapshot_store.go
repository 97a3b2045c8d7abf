package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.Snapshot // keyed by token_address, sorted by snapshot_time
	keys map[string]struct{}           // "address|time" for duplicate detection
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string][]*domain.Snapshot),
		keys: make(map[string]struct{}),
	}
}

func snapshotKey(address string, snapshotTime int64) string {
	return fmt.Sprintf("%s|%d", address, snapshotTime)
}

// InsertBulk adds multiple snapshots atomically. Fails entire batch on any duplicate.
func (s *SnapshotStore) InsertBulk(_ context.Context, snapshots []*domain.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(snapshots))
	for _, snap := range snapshots {
		if snap == nil || snap.TokenAddress == "" {
			return storage.ErrInvalidInput
		}
		key := snapshotKey(snap.TokenAddress, snap.SnapshotTime)
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := s.keys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	touched := make(map[string]struct{})
	for _, snap := range snapshots {
		s.data[snap.TokenAddress] = append(s.data[snap.TokenAddress], copySnapshot(snap))
		s.keys[snapshotKey(snap.TokenAddress, snap.SnapshotTime)] = struct{}{}
		touched[snap.TokenAddress] = struct{}{}
	}

	for address := range touched {
		series := s.data[address]
		sort.Slice(series, func(i, j int) bool {
			return series[i].SnapshotTime < series[j].SnapshotTime
		})
	}

	return nil
}

// GetByAddress retrieves all snapshots for a token, ordered by snapshot_time ASC.
func (s *SnapshotStore) GetByAddress(_ context.Context, address string) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.data[address]
	result := make([]*domain.Snapshot, 0, len(series))
	for _, snap := range series {
		result = append(result, copySnapshot(snap))
	}
	return result, nil
}

// LatestSnapshot retrieves the latest snapshot within [start, end].
func (s *SnapshotStore) LatestSnapshot(_ context.Context, address string, start, end int64) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := latestIn(s.data[address], start, end)
	if snap == nil {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(snap), nil
}

// LatestInWindow retrieves the latest snapshot within [start, end] for each address.
func (s *SnapshotStore) LatestInWindow(_ context.Context, addresses []string, start, end int64) (map[string]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*domain.Snapshot, len(addresses))
	for _, address := range addresses {
		if snap := latestIn(s.data[address], start, end); snap != nil {
			result[address] = copySnapshot(snap)
		}
	}
	return result, nil
}

// latestIn scans a time-sorted series backwards for the last point in [start, end].
func latestIn(series []*domain.Snapshot, start, end int64) *domain.Snapshot {
	for i := len(series) - 1; i >= 0; i-- {
		t := series[i].SnapshotTime
		if t > end {
			continue
		}
		if t < start {
			return nil
		}
		return series[i]
	}
	return nil
}

func copySnapshot(snap *domain.Snapshot) *domain.Snapshot {
	c := *snap
	c.MarketCapUSD = copyFloatPtr(snap.MarketCapUSD)
	c.LiquidityUSD = copyFloatPtr(snap.LiquidityUSD)
	c.PriceUSD = copyFloatPtr(snap.PriceUSD)
	c.PriceChange24h = copyFloatPtr(snap.PriceChange24h)
	c.Volume24h = copyFloatPtr(snap.Volume24h)
	return &c
}

func copyFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)
