// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	RunsSkipped prometheus.Counter

	// Aggregation metrics
	KeysProcessed *prometheus.CounterVec
	KeysFailed    *prometheus.CounterVec
	BreakoutMetas prometheus.Gauge

	// Categorization metrics
	TokensCategorized *prometheus.CounterVec

	// Emergent cluster metrics
	ClustersDetected prometheus.Counter
	TokensFlagged    prometheus.Counter
	FlagsCleared     prometheus.Counter
	DetectionSkipped prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "trendradar"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Run metrics
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Total number of aggregation runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Aggregation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		RunsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "runs_skipped_total",
			Help:      "Total number of runs skipped because a run was in progress",
		}),

		// Aggregation metrics
		KeysProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "keys_processed_total",
			Help:      "Total number of (category, window) aggregates written",
		}, []string{"window"}),
		KeysFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "keys_failed_total",
			Help:      "Total number of (category, window) keys that failed",
		}, []string{"window"}),
		BreakoutMetas: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "breakout_metas",
			Help:      "Number of breakout metas in the latest run",
		}),

		// Categorization metrics
		TokensCategorized: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "categorizer",
			Name:      "tokens_categorized_total",
			Help:      "Total number of tokens categorized by outcome",
		}, []string{"outcome"}),

		// Emergent cluster metrics
		ClustersDetected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breakout",
			Name:      "clusters_detected_total",
			Help:      "Total number of emergent clusters detected",
		}),
		TokensFlagged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breakout",
			Name:      "tokens_flagged_total",
			Help:      "Total number of tokens flagged as emergent cluster members",
		}),
		FlagsCleared: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breakout",
			Name:      "flags_cleared_total",
			Help:      "Total number of emergent flags cleared",
		}),
		DetectionSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "breakout",
			Name:      "detection_skipped_total",
			Help:      "Total number of detections skipped for a small cohort",
		}),

		// Health metrics
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful aggregation run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, durationSeconds float64, finishedUnix int64) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(durationSeconds)
	if status == "success" {
		m.LastSuccessfulRun.Set(float64(finishedUnix))
	}
}

// RecordKey records one aggregated key.
func (m *Metrics) RecordKey(window string, err error) {
	if err != nil {
		m.KeysFailed.WithLabelValues(window).Inc()
		return
	}
	m.KeysProcessed.WithLabelValues(window).Inc()
}

// RecordCategorized records a categorization outcome ("matched" or "unmatched").
func (m *Metrics) RecordCategorized(outcome string) {
	m.TokensCategorized.WithLabelValues(outcome).Inc()
}
