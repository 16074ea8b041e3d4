package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	peaksDetectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peak_analyzer_peaks_detected_total",
			Help: "Total number of telemetry peaks detected",
		},
		[]string{"profile", "dimension_0"},
	)

	baselinePairs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "peak_analyzer_baseline_pairs",
			Help: "Number of dimension pairs in the refreshed baseline",
		},
		[]string{"profile"},
	)

	runDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peak_analyzer_run_duration_seconds",
			Help:    "Duration of a full analysis run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"profile", "status"},
	)
)
