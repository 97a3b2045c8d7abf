package acceleration

// Tier is a display bucket for a score.
type Tier string

// Tiers, lower bound inclusive.
const (
	TierCold      Tier = "cold"      // < 40
	TierWarming   Tier = "warming"   // 40-60
	TierHot       Tier = "hot"       // 60-80
	TierExplosive Tier = "explosive" // >= 80
)

// GetTier buckets a score.
func GetTier(score float64) Tier {
	switch {
	case score >= 80:
		return TierExplosive
	case score >= 60:
		return TierHot
	case score >= 40:
		return TierWarming
	default:
		return TierCold
	}
}

// Classifier flags breakout metas against a threshold.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier. A non-positive threshold uses the default of 70.
func NewClassifier(threshold float64) Classifier {
	if threshold <= 0 {
		threshold = DefaultBreakoutThreshold
	}
	return Classifier{threshold: threshold}
}

// Threshold returns the breakout threshold.
func (c Classifier) Threshold() float64 {
	return c.threshold
}

// IsBreakoutMeta reports whether score reaches the threshold.
func (c Classifier) IsBreakoutMeta(score float64) bool {
	return score >= c.threshold
}

// IsBreakoutMeta reports whether score reaches the default threshold.
func IsBreakoutMeta(score float64) bool {
	return score >= DefaultBreakoutThreshold
}
