package domain

// Snapshot represents one point-in-time market observation for a token.
// Corresponds to snapshots table in ClickHouse.
// All market fields are nullable: nil means the provider did not report
// the value, zero is a reported zero.
type Snapshot struct {
	TokenAddress   string   // token mint address
	SnapshotTime   int64    // Unix timestamp in milliseconds
	MarketCapUSD   *float64 // market capitalization (nullable)
	LiquidityUSD   *float64 // pool liquidity (nullable)
	PriceUSD       *float64 // price (nullable)
	PriceChange24h *float64 // 24h price change percent (nullable)
	Volume24h      *float64 // 24h volume (nullable)
}

// HasPositiveMarketCap reports whether the snapshot carries a usable market cap.
func (s *Snapshot) HasPositiveMarketCap() bool {
	return s != nil && s.MarketCapUSD != nil && *s.MarketCapUSD > 0
}
