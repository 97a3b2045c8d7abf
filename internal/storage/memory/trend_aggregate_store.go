package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

// TrendAggregateStore is an in-memory implementation of storage.TrendAggregateStore.
type TrendAggregateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TrendAggregate // keyed by composite key
}

// NewTrendAggregateStore creates a new in-memory trend aggregate store.
func NewTrendAggregateStore() *TrendAggregateStore {
	return &TrendAggregateStore{
		data: make(map[string]*domain.TrendAggregate),
	}
}

// trendKey generates a unique key for an aggregate.
// The "\x00" marker keeps a nil sub-category distinct from any named one.
func trendKey(snapshotTime int64, key domain.CategoryKey, window string) string {
	sub := "\x00"
	if key.SubCategory != nil {
		sub = *key.SubCategory
	}
	return fmt.Sprintf("%d|%s|%s|%s", snapshotTime, key.Category, sub, window)
}

// Upsert inserts or replaces the row for the aggregate's key.
func (s *TrendAggregateStore) Upsert(_ context.Context, a *domain.TrendAggregate) error {
	if a == nil || a.Category == "" || a.TimeWindow == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[trendKey(a.SnapshotTime, a.Key(), a.TimeWindow)] = domain.CopyTrendAggregate(a)
	return nil
}

// GetByKey retrieves a single row. Returns ErrNotFound if not exists.
func (s *TrendAggregateStore) GetByKey(_ context.Context, snapshotTime int64, key domain.CategoryKey, window string) (*domain.TrendAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[trendKey(snapshotTime, key, window)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return domain.CopyTrendAggregate(a), nil
}

// Previous retrieves the most recent row with snapshot_time <= atOrBefore.
func (s *TrendAggregateStore) Previous(_ context.Context, key domain.CategoryKey, window string, atOrBefore int64) (*domain.TrendAggregate, error) {
	rows := s.series(key, window, func(t int64) bool { return t <= atOrBefore })
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return rows[0], nil
}

// Recent retrieves up to limit rows with snapshot_time < before, newest first.
func (s *TrendAggregateStore) Recent(_ context.Context, key domain.CategoryKey, window string, before int64, limit int) ([]*domain.TrendAggregate, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows := s.series(key, window, func(t int64) bool { return t < before })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// LatestSnapshotTime returns the greatest snapshot_time stored.
func (s *TrendAggregateStore) LatestSnapshotTime(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return 0, storage.ErrNotFound
	}

	var latest int64
	for _, a := range s.data {
		if a.SnapshotTime > latest {
			latest = a.SnapshotTime
		}
	}
	return latest, nil
}

// GetBySnapshotTime retrieves all rows for a run and window, highest score first.
func (s *TrendAggregateStore) GetBySnapshotTime(_ context.Context, snapshotTime int64, window string) ([]*domain.TrendAggregate, error) {
	s.mu.RLock()
	var result []*domain.TrendAggregate
	for _, a := range s.data {
		if a.SnapshotTime == snapshotTime && a.TimeWindow == window {
			result = append(result, domain.CopyTrendAggregate(a))
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].AccelerationScore != result[j].AccelerationScore {
			return result[i].AccelerationScore > result[j].AccelerationScore
		}
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Key().Sub() < result[j].Key().Sub()
	})
	return result, nil
}

// series returns copies of rows for key and window passing keep, newest first.
func (s *TrendAggregateStore) series(key domain.CategoryKey, window string, keep func(int64) bool) []*domain.TrendAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrendAggregate
	for _, a := range s.data {
		if a.TimeWindow != window || !a.Key().Equal(key) || !keep(a.SnapshotTime) {
			continue
		}
		result = append(result, domain.CopyTrendAggregate(a))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SnapshotTime > result[j].SnapshotTime
	})
	return result
}

var _ storage.TrendAggregateStore = (*TrendAggregateStore)(nil)
