package backends

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var recordsScannedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "peak_analyzer_records_scanned_total",
		Help: "Total number of telemetry records read by the file backend",
	},
	[]string{"operation"},
)
