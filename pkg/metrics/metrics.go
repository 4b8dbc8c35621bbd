package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_accepted_total",
			Help: "Cleaned trip records accepted, by vehicle type",
		},
		[]string{"vehicle_type"},
	)

	recordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_records_rejected_total",
			Help: "Trip records rejected, by vehicle type and rule",
		},
		[]string{"vehicle_type", "rule"},
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"stage"},
	)

	scopeOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_scope_outcomes_total",
			Help: "Per-scope forecast/anomaly outcomes",
		},
		[]string{"stage", "outcome"},
	)
)

// RecordAccepted counts accepted records for a vehicle type
func RecordAccepted(vehicleType string, n int) {
	recordsAccepted.WithLabelValues(vehicleType).Add(float64(n))
}

// RecordRejected counts rejected records for a vehicle type and rule
func RecordRejected(vehicleType, rule string, n int) {
	recordsRejected.WithLabelValues(vehicleType, rule).Add(float64(n))
}

// ObserveStage records a stage duration
func ObserveStage(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ScopeOutcome counts a per-scope outcome ("completed", "insufficient_data", "failed")
func ScopeOutcome(stage, outcome string) {
	scopeOutcomes.WithLabelValues(stage, outcome).Inc()
}
