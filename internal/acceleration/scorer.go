// Package acceleration scores how fast a category is growing.
//
// The score is the sum of three bounded components:
//
//	coin velocity     0-30  growth of coin count vs the previous period
//	mcap velocity     0-40  growth of total market cap vs the previous period
//	breakout factor   0-30  deviation from the category's own history
//
// All functions are pure.
package acceleration

import (
	"math"

	"trendradar/internal/domain"
	"trendradar/internal/metrics"
)

// Component caps and defaults.
const (
	MaxCoinVelocity   = 30.0
	MaxMcapVelocity   = 40.0
	MaxBreakoutFactor = 30.0

	DefaultBreakoutThreshold = 70.0

	// sustainedGrowthCount and sustainedGrowthRate gate the mcap bonus.
	sustainedGrowthCount = 10
	sustainedGrowthRate  = 0.5
	sustainedGrowthBonus = 1.1

	// newCategoryMinCoins is the coin count a category without history
	// needs before it earns the new-category breakout factor.
	newCategoryMinCoins = 5
)

// Details explains a score.
type Details struct {
	CurrentCoinCount  int
	PreviousCoinCount int
	CoinCountChange   int
	CurrentTotalMcap  float64
	PreviousTotalMcap float64
	McapChangePct     float64 // 0 when the previous total is not positive
	HistoricalPeriods int
}

// Result is a score with its components.
type Result struct {
	TotalScore          float64 // 0-100
	CoinVelocityScore   float64 // 0-30
	McapVelocityScore   float64 // 0-40
	BreakoutFactorScore float64 // 0-30
	Details             Details
}

// CoinVelocity scores coin count growth on a log curve:
// 30 * ln(1+2g) / ln(3), where g is the growth rate.
// A category appearing from zero coins scores the maximum.
func CoinVelocity(currentCount, previousCount int) float64 {
	if previousCount <= 0 {
		if currentCount > 0 {
			return MaxCoinVelocity
		}
		return 0
	}

	g := float64(currentCount-previousCount) / float64(previousCount)
	if g <= 0 {
		return 0
	}

	score := math.Min(MaxCoinVelocity, MaxCoinVelocity*math.Log1p(2*g)/math.Log1p(2))
	return metrics.Round(score, 2)
}

// McapVelocity scores total market cap growth on a log curve:
// 40 * ln(1+g) / ln(4). Categories with at least ten coins growing more
// than 50% get a 1.1x bonus, still capped at 40.
func McapVelocity(currentMcap, previousMcap float64, currentCount int) float64 {
	currentMcap, previousMcap = finite(currentMcap), finite(previousMcap)

	if previousMcap <= 0 {
		if currentMcap > 0 {
			return MaxMcapVelocity
		}
		return 0
	}

	g := (currentMcap - previousMcap) / previousMcap
	if g <= 0 {
		return 0
	}

	score := math.Min(MaxMcapVelocity, MaxMcapVelocity*math.Log1p(g)/math.Log1p(3))
	if currentCount >= sustainedGrowthCount && g > sustainedGrowthRate {
		score = math.Min(MaxMcapVelocity, score*sustainedGrowthBonus)
	}
	return metrics.Round(score, 2)
}

// BreakoutFactor scores the current period against historical periods.
// The combined z-score weights coin count 0.4 and market cap 0.6 and
// maps to min(30, 10z). Without history a category with at least five
// coins scores 15.
func BreakoutFactor(current domain.CategoryMetrics, history []domain.CategoryMetrics) float64 {
	if len(history) == 0 {
		if current.CoinCount >= newCategoryMinCoins {
			return MaxBreakoutFactor * 0.5
		}
		return 0
	}

	counts := make([]float64, len(history))
	caps := make([]float64, len(history))
	for i, h := range history {
		counts[i] = float64(h.CoinCount)
		caps[i] = finite(h.TotalMarketCap)
	}

	countMean := metrics.Mean(counts)
	capMean := metrics.Mean(caps)

	var countStd, capStd float64
	if len(history) > 1 {
		countStd = metrics.PopulationStddev(counts, countMean)
		if countStd == 0 {
			countStd = 1
		}
		capStd = metrics.PopulationStddev(caps, capMean)
		if capStd == 0 {
			capStd = capMean * 0.1
		}
	} else {
		countStd = singlePointStd(countMean)
		capStd = singlePointStd(capMean)
	}

	countZ := (float64(current.CoinCount) - countMean) / math.Max(countStd, 1)
	capZ := (finite(current.TotalMarketCap) - capMean) / math.Max(capStd, 1)

	z := countZ*0.4 + capZ*0.6
	if !(z > 0) {
		return 0
	}

	return metrics.Round(math.Min(MaxBreakoutFactor, z*10), 2)
}

// singlePointStd substitutes a spread when history has one point.
func singlePointStd(mean float64) float64 {
	if mean > 0 {
		return mean * 0.2
	}
	return 1
}

// Score combines the three components. A nil previous is treated as an
// all-zero period.
func Score(current domain.CategoryMetrics, previous *domain.CategoryMetrics, history []domain.CategoryMetrics) Result {
	prev := domain.CategoryMetrics{Category: current.Category, SubCategory: current.SubCategory}
	if previous != nil {
		prev = *previous
	}

	coin := CoinVelocity(current.CoinCount, prev.CoinCount)
	mcap := McapVelocity(current.TotalMarketCap, prev.TotalMarketCap, current.CoinCount)
	breakout := BreakoutFactor(current, history)

	details := Details{
		CurrentCoinCount:  current.CoinCount,
		PreviousCoinCount: prev.CoinCount,
		CoinCountChange:   current.CoinCount - prev.CoinCount,
		CurrentTotalMcap:  current.TotalMarketCap,
		PreviousTotalMcap: prev.TotalMarketCap,
		HistoricalPeriods: len(history),
	}
	if prev.TotalMarketCap > 0 {
		details.McapChangePct = (current.TotalMarketCap - prev.TotalMarketCap) / prev.TotalMarketCap * 100
	}

	return Result{
		TotalScore:          metrics.Round(coin+mcap+breakout, 2),
		CoinVelocityScore:   coin,
		McapVelocityScore:   mcap,
		BreakoutFactorScore: breakout,
		Details:             details,
	}
}

// finite maps NaN and infinities to zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
