package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trendradar/internal/breakout"
)

// DetectBreakouts clusters the recent unclassified cohort and flags every
// member of every surviving cluster. Flags are overwritten, never merged.
// Under FlagPolicyClear, previously flagged tokens outside all clusters are
// reset; this only happens when detection actually ran.
func (o *Orchestrator) DetectBreakouts(ctx context.Context, asOfMs int64) (*BreakoutResult, error) {
	if o.detector == nil {
		return nil, fmt.Errorf("detect breakouts: no detector configured")
	}

	since := asOfMs - o.lookback.Milliseconds()
	tokens, err := o.tokenStore.Unclassified(ctx, since, o.catchAll)
	if err != nil {
		return nil, fmt.Errorf("load cohort: %w", err)
	}

	result := &BreakoutResult{CohortSize: len(tokens)}
	if len(tokens) < o.minCohort {
		result.Skipped = true
		o.metrics.DetectionSkipped.Inc()
		o.logger.Debug("breakout detection skipped",
			zap.Int("cohort", len(tokens)),
			zap.Int("min_cohort", o.minCohort))
		return result, nil
	}

	result.Clusters = o.detector.Detect(breakout.CandidatesFromTokens(tokens))
	o.metrics.ClustersDetected.Add(float64(len(result.Clusters)))

	members := make(map[string]struct{})
	for _, c := range result.Clusters {
		name := c.ClusterName
		for _, address := range c.MemberAddresses {
			members[address] = struct{}{}
			if err := o.tokenStore.SetBreakoutFlags(ctx, address, true, &name); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("flag %s: %v", address, err))
				continue
			}
			result.TokensFlagged++
		}
		o.logger.Info("emergent cluster",
			zap.String("cluster", c.ClusterName),
			zap.Int("size", c.Size),
			zap.Float64("confidence", c.ConfidenceScore),
			zap.Strings("keywords", c.CommonKeywords))
	}
	o.metrics.TokensFlagged.Add(float64(result.TokensFlagged))

	if o.flagPolicy == FlagPolicyClear {
		if err := o.clearStaleFlags(ctx, members, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// clearStaleFlags resets flagged tokens that are not in members.
func (o *Orchestrator) clearStaleFlags(ctx context.Context, members map[string]struct{}, result *BreakoutResult) error {
	flagged, err := o.tokenStore.GetFlaggedBreakouts(ctx)
	if err != nil {
		return fmt.Errorf("load flagged tokens: %w", err)
	}

	for _, t := range flagged {
		if _, ok := members[t.Address]; ok {
			continue
		}
		if err := o.tokenStore.SetBreakoutFlags(ctx, t.Address, false, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("clear flag %s: %v", t.Address, err))
			continue
		}
		result.FlagsCleared++
	}
	o.metrics.FlagsCleared.Add(float64(result.FlagsCleared))
	return nil
}
