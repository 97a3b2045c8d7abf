package memory

import (
	"context"
	"errors"
	"testing"

	"trendradar/internal/domain"
	"trendradar/internal/storage"
)

func aggregate(snapshotTime int64, category, sub, window string, score float64) *domain.TrendAggregate {
	key := domain.NewCategoryKey(category, sub)
	return &domain.TrendAggregate{
		SnapshotTime:      snapshotTime,
		Category:          key.Category,
		SubCategory:       key.SubCategory,
		TimeWindow:        window,
		CoinCount:         int(snapshotTime / 1000),
		AccelerationScore: score,
	}
}

func TestTrendAggregateStore_UpsertReplaces(t *testing.T) {
	store := NewTrendAggregateStore()
	ctx := context.Background()
	key := domain.NewCategoryKey("Animals", "Dogs")

	if err := store.Upsert(ctx, aggregate(1000, "Animals", "Dogs", "24h", 40)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, aggregate(1000, "Animals", "Dogs", "24h", 75)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rows, _ := store.GetBySnapshotTime(ctx, 1000, "24h")
	if len(rows) != 1 {
		t.Fatalf("expected one row per key, got %d", len(rows))
	}

	got, err := store.GetByKey(ctx, 1000, key, "24h")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if got.AccelerationScore != 75 {
		t.Errorf("AccelerationScore = %v, want 75", got.AccelerationScore)
	}
}

func TestTrendAggregateStore_RollupIsDistinct(t *testing.T) {
	store := NewTrendAggregateStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, aggregate(1000, "Animals", "", "24h", 10))
	_ = store.Upsert(ctx, aggregate(1000, "Animals", "Dogs", "24h", 20))

	rollup, err := store.GetByKey(ctx, 1000, domain.NewCategoryKey("Animals", ""), "24h")
	if err != nil {
		t.Fatalf("GetByKey failed: %v", err)
	}
	if rollup.AccelerationScore != 10 || rollup.SubCategory != nil {
		t.Errorf("unexpected rollup row: %+v", rollup)
	}

	rows, _ := store.GetBySnapshotTime(ctx, 1000, "24h")
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestTrendAggregateStore_UpsertInvalid(t *testing.T) {
	store := NewTrendAggregateStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, aggregate(1000, "", "", "24h", 0)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty category, got %v", err)
	}
	if err := store.Upsert(ctx, aggregate(1000, "Animals", "", "", 0)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty window, got %v", err)
	}
}

func TestTrendAggregateStore_PreviousAndRecent(t *testing.T) {
	store := NewTrendAggregateStore()
	ctx := context.Background()
	key := domain.NewCategoryKey("Animals", "Dogs")

	for _, ts := range []int64{1000, 2000, 3000, 4000} {
		_ = store.Upsert(ctx, aggregate(ts, "Animals", "Dogs", "24h", 0))
	}
	_ = store.Upsert(ctx, aggregate(3500, "Animals", "Dogs", "12h", 0))
	_ = store.Upsert(ctx, aggregate(3500, "Animals", "", "24h", 0))

	prev, err := store.Previous(ctx, key, "24h", 3000)
	if err != nil {
		t.Fatalf("Previous failed: %v", err)
	}
	if prev.SnapshotTime != 3000 {
		t.Errorf("Previous is inclusive: got %d, want 3000", prev.SnapshotTime)
	}

	if _, err := store.Previous(ctx, key, "24h", 999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	recent, err := store.Recent(ctx, key, "24h", 4000, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].SnapshotTime != 3000 || recent[1].SnapshotTime != 2000 {
		t.Errorf("Recent should be strictly before and newest first, got %d rows", len(recent))
	}

	if rows, _ := store.Recent(ctx, key, "24h", 4000, 0); len(rows) != 0 {
		t.Error("zero limit should return no rows")
	}
}

func TestTrendAggregateStore_SnapshotQueries(t *testing.T) {
	store := NewTrendAggregateStore()
	ctx := context.Background()

	if _, err := store.LatestSnapshotTime(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	_ = store.Upsert(ctx, aggregate(2000, "Technology", "AI & Bots", "24h", 50))
	_ = store.Upsert(ctx, aggregate(2000, "Animals", "Dogs", "24h", 50))
	_ = store.Upsert(ctx, aggregate(2000, "Animals", "Cats", "24h", 90))
	_ = store.Upsert(ctx, aggregate(2000, "Animals", "Cats", "7d", 10))
	_ = store.Upsert(ctx, aggregate(1000, "Animals", "Cats", "24h", 99))

	latest, err := store.LatestSnapshotTime(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshotTime failed: %v", err)
	}
	if latest != 2000 {
		t.Errorf("LatestSnapshotTime = %d, want 2000", latest)
	}

	rows, err := store.GetBySnapshotTime(ctx, 2000, "24h")
	if err != nil {
		t.Fatalf("GetBySnapshotTime failed: %v", err)
	}

	want := []string{"Animals/Cats", "Animals/Dogs", "Technology/AI & Bots"}
	if len(rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(rows))
	}
	for i, r := range rows {
		if r.Key().String() != want[i] {
			t.Errorf("rows[%d] = %s, want %s", i, r.Key(), want[i])
		}
	}
}
