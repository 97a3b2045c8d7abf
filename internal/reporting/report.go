package reporting

import "time"

// Report represents the trend report structure.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	SnapshotTime int64 // latest aggregation as-of time (ms), 0 when nothing is stored
	TimeWindow   string
	Threshold    float64

	// Summary
	Summary Summary

	// Trends (sorted by acceleration score DESC)
	TopTrends     []TrendRow // score > 0, limited
	BreakoutMetas []TrendRow // score >= threshold, limited

	// Emergent clusters from flagged tokens (sorted by size DESC, name ASC)
	EmergentClusters []ClusterGroup
}

// Summary contains dataset counts.
type Summary struct {
	TotalTokens      int
	ClassifiedTokens int
	CategoryKeys     int // aggregate rows at SnapshotTime for TimeWindow
	BreakoutMetas    int
	FlaggedTokens    int
}

// TrendRow represents one category in a trend table.
type TrendRow struct {
	Category          string
	SubCategory       string // "" for the whole primary category
	Emoji             string
	CoinCount         int
	TotalMarketCap    float64
	AvgMarketCap      float64
	TopCoinName       string
	AccelerationScore float64
	Tier              string
	IsBreakoutMeta    bool
	Change1h          *float64 // total market cap change pct, nil when no baseline
	Change24h         *float64
}

// Label renders the row's category as "Category / Sub" or "Category (all)".
func (r TrendRow) Label() string {
	if r.SubCategory == "" {
		return r.Category + " (all)"
	}
	return r.Category + " / " + r.SubCategory
}

// ClusterGroup lists the tokens flagged under one emergent cluster name.
type ClusterGroup struct {
	ClusterName string
	Tokens      []TokenRow // sorted by address
}

// TokenRow identifies one flagged token.
type TokenRow struct {
	Address string
	Name    string
	Symbol  string
}
