package acceleration

import (
	"math"
	"testing"

	"trendradar/internal/domain"
)

const epsilon = 1e-9

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func cm(count int, mcap float64) domain.CategoryMetrics {
	return domain.CategoryMetrics{Category: "Animals", CoinCount: count, TotalMarketCap: mcap}
}

func TestCoinVelocity(t *testing.T) {
	tests := []struct {
		name              string
		current, previous int
		want              float64
	}{
		{"new category", 5, 0, 30},
		{"empty stays empty", 0, 0, 0},
		{"no growth", 10, 10, 0},
		{"shrinking", 5, 10, 0},
		{"10% growth", 11, 10, 4.98},
		{"50% growth", 15, 10, 18.93},
		{"100% growth hits cap", 20, 10, 30},
		{"extreme growth clipped", 100, 10, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoinVelocity(tt.current, tt.previous); !floatEq(got, tt.want) {
				t.Errorf("CoinVelocity(%d, %d) = %v, want %v", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}

func TestMcapVelocity(t *testing.T) {
	tests := []struct {
		name              string
		current, previous float64
		count             int
		want              float64
	}{
		{"new market cap", 1000, 0, 1, 40},
		{"zero stays zero", 0, 0, 1, 0},
		{"declining", 500, 1000, 20, 0},
		{"flat", 1000, 1000, 20, 0},
		{"50% growth, few coins", 1.5e6, 1e6, 5, 11.7},
		{"50% growth is not above bonus rate", 1.5e6, 1e6, 10, 11.7},
		{"60% growth with bonus", 1.6e6, 1e6, 10, 14.92},
		{"doubling with bonus", 2e6, 1e6, 15, 22},
		{"huge growth clipped", 1e8, 1e6, 50, 40},
		{"NaN previous treated as zero", 1000, math.NaN(), 1, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := McapVelocity(tt.current, tt.previous, tt.count); !floatEq(got, tt.want) {
				t.Errorf("McapVelocity(%v, %v, %d) = %v, want %v", tt.current, tt.previous, tt.count, got, tt.want)
			}
		})
	}
}

func TestBreakoutFactor(t *testing.T) {
	history := []domain.CategoryMetrics{cm(10, 1e6), cm(12, 1.2e6), cm(14, 1.4e6)}

	tests := []struct {
		name    string
		current domain.CategoryMetrics
		history []domain.CategoryMetrics
		want    float64
	}{
		{"no history, big enough", cm(5, 0), nil, 15},
		{"no history, too small", cm(4, 1e9), nil, 0},
		{"above history", cm(14, 1.3e6), history, 8.57},
		{"slightly above history", cm(13, 1.25e6), history, 4.29},
		{"at mean", cm(12, 1.2e6), history, 0},
		{"below history", cm(5, 1e5), history, 0},
		{"single point uses 20% spread", cm(12, 1.1e6), []domain.CategoryMetrics{cm(10, 1e6)}, 7},
		{"single zero point uses unit spread", cm(3, 0), []domain.CategoryMetrics{cm(0, 0)}, 12},
		{"flat history uses fallback spreads", cm(11, 1.05e6), []domain.CategoryMetrics{cm(10, 1e6), cm(10, 1e6)}, 7},
		{"far above history clipped", cm(1000, 1e12), history, 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BreakoutFactor(tt.current, tt.history); !floatEq(got, tt.want) {
				t.Errorf("BreakoutFactor = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBreakoutFactor_MonotonicInZ(t *testing.T) {
	history := []domain.CategoryMetrics{cm(10, 1e6), cm(12, 1.2e6), cm(14, 1.4e6)}

	prev := -1.0
	for mcap := 1.2e6; mcap <= 3e6; mcap += 5e4 {
		got := BreakoutFactor(cm(12, mcap), history)
		if got < prev {
			t.Fatalf("BreakoutFactor decreased at mcap=%v: %v < %v", mcap, got, prev)
		}
		if got < 0 || got > MaxBreakoutFactor {
			t.Fatalf("BreakoutFactor out of range: %v", got)
		}
		prev = got
	}
}

func TestScore_EndToEndDogs(t *testing.T) {
	previous := cm(10, 1_000_000)
	current := cm(15, 2_000_000)

	got := Score(current, &previous, nil)

	if !floatEq(got.CoinVelocityScore, 18.93) {
		t.Errorf("CoinVelocityScore = %v, want 18.93", got.CoinVelocityScore)
	}
	if !floatEq(got.McapVelocityScore, 22) {
		t.Errorf("McapVelocityScore = %v, want 22", got.McapVelocityScore)
	}
	if !floatEq(got.BreakoutFactorScore, 15) {
		t.Errorf("BreakoutFactorScore = %v, want 15", got.BreakoutFactorScore)
	}
	if !floatEq(got.TotalScore, 55.93) {
		t.Errorf("TotalScore = %v, want 55.93", got.TotalScore)
	}
	if IsBreakoutMeta(got.TotalScore) {
		t.Error("expected not a breakout meta")
	}
	if tier := GetTier(got.TotalScore); tier != TierWarming {
		t.Errorf("tier = %s, want warming", tier)
	}

	d := got.Details
	if d.CoinCountChange != 5 || d.PreviousCoinCount != 10 || d.HistoricalPeriods != 0 {
		t.Errorf("unexpected details: %+v", d)
	}
	if !floatEq(d.McapChangePct, 100) {
		t.Errorf("McapChangePct = %v, want 100", d.McapChangePct)
	}
}

func TestScore_NilPreviousIsNewCategory(t *testing.T) {
	got := Score(cm(6, 5e5), nil, nil)

	if got.CoinVelocityScore != MaxCoinVelocity || got.McapVelocityScore != MaxMcapVelocity {
		t.Errorf("expected maximal velocity, got %+v", got)
	}
	if got.TotalScore != 85 {
		t.Errorf("TotalScore = %v, want 85", got.TotalScore)
	}
	if got.Details.McapChangePct != 0 {
		t.Errorf("McapChangePct = %v, want 0 without previous", got.Details.McapChangePct)
	}
	if !IsBreakoutMeta(got.TotalScore) {
		t.Error("expected breakout meta")
	}
}

func TestScore_Bounds(t *testing.T) {
	history := []domain.CategoryMetrics{cm(1, 1), cm(2, 2)}
	inputs := []struct {
		current  domain.CategoryMetrics
		previous *domain.CategoryMetrics
		history  []domain.CategoryMetrics
	}{
		{cm(0, 0), nil, nil},
		{cm(1e6, 1e15), nil, history},
		{cm(0, 0), &domain.CategoryMetrics{CoinCount: 1e6, TotalMarketCap: 1e15}, history},
		{cm(5, math.Inf(1)), nil, history},
	}

	for i, in := range inputs {
		got := Score(in.current, in.previous, in.history)
		if math.IsNaN(got.TotalScore) || got.TotalScore < 0 || got.TotalScore > 100 {
			t.Errorf("case %d: TotalScore %v out of [0, 100]", i, got.TotalScore)
		}
	}
}
