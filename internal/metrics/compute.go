package metrics

import (
	"math"
	"sort"

	"trendradar/internal/domain"
)

// summarize reduces the latest-in-window snapshots of a category's tokens.
// Tokens without a positive market cap count toward CoinCount only.
func summarize(key domain.CategoryKey, asOfMs int64, tokens []*domain.Token, latest map[string]*domain.Snapshot) *Summary {
	s := &Summary{
		Metrics: domain.CategoryMetrics{
			Category:    key.Category,
			SubCategory: key.SubCategory,
			AsOfTime:    asOfMs,
			CoinCount:   len(tokens),
		},
	}

	// Sorted so the top coin is stable when market caps tie.
	sorted := make([]*domain.Token, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Address < sorted[j].Address
	})

	var caps []float64
	var top *domain.Token
	for _, t := range sorted {
		snap, ok := latest[t.Address]
		if !ok {
			continue
		}
		s.SnapshotsFound++
		if !snap.HasPositiveMarketCap() {
			continue
		}
		mcap := *snap.MarketCapUSD
		caps = append(caps, mcap)
		if top == nil || mcap > s.Metrics.MaxMarketCap {
			top = t
			s.Metrics.MaxMarketCap = mcap
		}
	}

	if len(caps) > 0 {
		s.Metrics.TotalMarketCap = Sum(caps)
		s.Metrics.AvgMarketCap = s.Metrics.TotalMarketCap / float64(len(caps))
	}
	if top != nil {
		address, name := top.Address, top.Name
		s.TopCoinAddress = &address
		s.TopCoinName = &name
	}

	return s
}

// Sum adds values.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates arithmetic mean. Returns 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// PopulationStddev calculates standard deviation with an n denominator.
func PopulationStddev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
