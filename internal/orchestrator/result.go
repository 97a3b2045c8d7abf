package orchestrator

import (
	"time"

	"trendradar/internal/domain"
)

// Run statuses reported to metrics and /status.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusError   = "error"
)

// KeyRef identifies one aggregated series.
type KeyRef struct {
	Key    domain.CategoryKey
	Window string
}

// String formats the key as "category/sub@window".
func (k KeyRef) String() string {
	return k.Key.String() + "@" + k.Window
}

// RunResult contains results from a run.
type RunResult struct {
	RunID         string
	AsOfTime      int64 // Unix timestamp in milliseconds
	Recategorized int   // tokens whose classification changed
	KeysProcessed int   // aggregates upserted
	BreakoutMetas int   // aggregates at or above the breakout threshold
	FailedKeys    []KeyRef
	Breakout      *BreakoutResult // nil when detection is disabled or failed
	Errors        []string        // sorted
	Duration      time.Duration
}

// Status returns success, or partial when any key, token or phase failed.
func (r *RunResult) Status() string {
	if len(r.Errors) > 0 || len(r.FailedKeys) > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

// BreakoutResult contains results from emergent-cluster detection.
type BreakoutResult struct {
	CohortSize    int
	Skipped       bool // cohort below the minimum, nothing was flagged or cleared
	Clusters      []domain.BreakoutCluster
	TokensFlagged int
	FlagsCleared  int
	Errors        []string
}

// RecategorizeResult contains results from a recategorization pass.
type RecategorizeResult struct {
	Scanned int
	Matched int
	Updated int
	Errors  []string
}
