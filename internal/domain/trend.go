package domain

import (
	"fmt"
	"time"
)

// Supported time window names.
const (
	Window12h = "12h"
	Window24h = "24h"
	Window7d  = "7d"
)

// TimeWindow is a named trailing duration over which metrics are computed.
type TimeWindow struct {
	Name     string
	Duration time.Duration
}

// DefaultWindows returns the 12h, 24h and 7d windows.
func DefaultWindows() []TimeWindow {
	return []TimeWindow{
		{Name: Window12h, Duration: 12 * time.Hour},
		{Name: Window24h, Duration: 24 * time.Hour},
		{Name: Window7d, Duration: 168 * time.Hour},
	}
}

// CategoryKey identifies a (category, sub-category) pair.
// A nil SubCategory denotes the whole primary category.
type CategoryKey struct {
	Category    string
	SubCategory *string
}

// NewCategoryKey creates a key. An empty sub-category is treated as nil.
func NewCategoryKey(category, subCategory string) CategoryKey {
	k := CategoryKey{Category: category}
	if subCategory != "" {
		k.SubCategory = &subCategory
	}
	return k
}

// IsRollup reports whether the key covers the whole primary category.
func (k CategoryKey) IsRollup() bool {
	return k.SubCategory == nil
}

// Sub returns the sub-category or "" for a rollup key.
func (k CategoryKey) Sub() string {
	if k.SubCategory == nil {
		return ""
	}
	return *k.SubCategory
}

// Equal reports whether two keys are the same.
func (k CategoryKey) Equal(other CategoryKey) bool {
	return k.Category == other.Category && equalStringPtr(k.SubCategory, other.SubCategory)
}

// String renders the key as "category/sub" or "category/*" for rollups.
func (k CategoryKey) String() string {
	if k.SubCategory == nil {
		return k.Category + "/*"
	}
	return fmt.Sprintf("%s/%s", k.Category, *k.SubCategory)
}

// CategoryMetrics is the derived summary of a category over a time window.
// Not persisted standalone.
type CategoryMetrics struct {
	Category       string
	SubCategory    *string
	AsOfTime       int64   // Unix timestamp in milliseconds
	CoinCount      int     // matching tokens, with or without a snapshot
	TotalMarketCap float64 // over tokens with a positive market cap
	AvgMarketCap   float64
	MaxMarketCap   float64
}

// TrendAggregate is the persisted, scored summary for one
// (snapshot_time, category, sub_category, time_window) key.
// Corresponds to trend_aggregates table in PostgreSQL.
type TrendAggregate struct {
	SnapshotTime      int64   // as-of time of the run (ms)
	Category          string  // primary category
	SubCategory       *string // nil for the whole primary category
	TimeWindow        string  // window name: 12h, 24h, 7d
	CoinCount         int
	TotalMarketCap    float64
	AvgMarketCap      float64
	MaxMarketCap      float64
	TopCoinAddress    *string // nullable
	TopCoinName       *string // nullable
	AccelerationScore float64 // 0-100
	IsBreakoutMeta    bool    // AccelerationScore >= threshold
}

// Key returns the category key of the aggregate.
func (a *TrendAggregate) Key() CategoryKey {
	return CategoryKey{Category: a.Category, SubCategory: a.SubCategory}
}

// Metrics converts the aggregate back into CategoryMetrics.
func (a *TrendAggregate) Metrics() CategoryMetrics {
	return CategoryMetrics{
		Category:       a.Category,
		SubCategory:    a.SubCategory,
		AsOfTime:       a.SnapshotTime,
		CoinCount:      a.CoinCount,
		TotalMarketCap: a.TotalMarketCap,
		AvgMarketCap:   a.AvgMarketCap,
		MaxMarketCap:   a.MaxMarketCap,
	}
}

// CopyTrendAggregate returns a deep copy of a.
func CopyTrendAggregate(a *TrendAggregate) *TrendAggregate {
	if a == nil {
		return nil
	}
	c := *a
	c.SubCategory = copyStringPtr(a.SubCategory)
	c.TopCoinAddress = copyStringPtr(a.TopCoinAddress)
	c.TopCoinName = copyStringPtr(a.TopCoinName)
	return &c
}
