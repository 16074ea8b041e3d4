package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"telemetry-peak-analyzer/analytics"
	"telemetry-peak-analyzer/config"
	"telemetry-peak-analyzer/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RunFunc runs one analysis over [start, end). A zero threshold keeps the
// suggested thresholds.
type RunFunc func(ctx context.Context, start, end time.Time, threshold int) (*analytics.RunResult, error)

type PeakHandler struct {
	store  store.Store
	run    RunFunc
	logger *zap.Logger
	now    func() time.Time

	// analyses read and rewrite the baseline, one at a time
	mu sync.Mutex
}

func NewPeakHandler(st store.Store, run RunFunc, logger *zap.Logger) *PeakHandler {
	return &PeakHandler{
		store:  st,
		run:    run,
		logger: logger.Named("http"),
		now:    time.Now,
	}
}

// NewRouter wires the API, health and metrics endpoints.
func NewRouter(h *PeakHandler) *mux.Router {
	r := mux.NewRouter()
	r.Use(instrument)

	r.HandleFunc("/health", HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/peaks", h.HandlePeaks).Methods(http.MethodGet)
	r.HandleFunc("/baseline", h.HandleBaseline).Methods(http.MethodGet)
	r.HandleFunc("/baseline/{dim0}/{dim1}", h.HandleBaselinePair).Methods(http.MethodGet)
	r.HandleFunc("/analyze", h.HandleAnalyze).Methods(http.MethodPost)
	r.Path("/metrics").Handler(promhttp.Handler())
	return r
}

func (h *PeakHandler) HandlePeaks(w http.ResponseWriter, r *http.Request) {
	peaks, err := h.store.LoadPeaks(r.Context())
	if err != nil {
		h.storeError(w, "peaks", err)
		return
	}
	writeJSON(w, http.StatusOK, peaks)
}

func (h *PeakHandler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.LoadGlobalTables(r.Context())
	if err != nil {
		h.storeError(w, "baseline", err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (h *PeakHandler) HandleBaselinePair(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tables, err := h.store.LoadGlobalTables(r.Context())
	if err != nil {
		h.storeError(w, "baseline", err)
		return
	}
	table, ok := tables.Get(vars["dim0"], vars["dim1"])
	if !ok {
		http.Error(w, "no baseline for "+vars["dim0"]+"/"+vars["dim1"], http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

type analyzeResponse struct {
	Start           string  `json:"start"`
	End             string  `json:"end"`
	BaselineSource  string  `json:"baseline_source"`
	DurationSeconds float64 `json:"duration_seconds"`
	Peaks           any     `json:"peaks"`
}

// HandleAnalyze runs the pipeline for ?start=&end= (YYYY-MM-DD, defaulting
// to yesterday) and returns the detected peaks.
func (h *PeakHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := config.ResolveWindow(q.Get("start"), q.Get("end"), config.DefaultDelta, 0, h.now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	threshold := 0
	if s := q.Get("threshold"); s != "" {
		if threshold, err = strconv.Atoi(s); err != nil || threshold < 0 {
			http.Error(w, "threshold must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	h.mu.Lock()
	result, err := h.run(r.Context(), start, end, threshold)
	h.mu.Unlock()
	if err != nil {
		h.logger.Error("Analysis failed", zap.Time("start", start), zap.Time("end", end), zap.Error(err))
		http.Error(w, "Failed to analyze: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Start:           start.Format(config.DateLayout),
		End:             end.Format(config.DateLayout),
		BaselineSource:  result.BaselineSource,
		DurationSeconds: result.Duration.Seconds(),
		Peaks:           result.Peaks,
	})
}

func (h *PeakHandler) storeError(w http.ResponseWriter, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "no "+what+" stored yet", http.StatusNotFound)
		return
	}
	h.logger.Error("Failed to load "+what, zap.Error(err))
	http.Error(w, "Failed to load "+what+": "+err.Error(), http.StatusInternalServerError)
}

func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
