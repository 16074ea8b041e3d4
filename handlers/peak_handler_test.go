package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemetry-peak-analyzer/analytics"
	"telemetry-peak-analyzer/models"
	"telemetry-peak-analyzer/store"
)

type runCall struct {
	start, end time.Time
	threshold  int
}

func newTestRouter(t *testing.T, run RunFunc) (http.Handler, store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewFileStore(filepath.Join(dir, "global_table.json"), filepath.Join(dir, "peaks.json"))
	require.NoError(t, err)
	if run == nil {
		run = func(context.Context, time.Time, time.Time, int) (*analytics.RunResult, error) {
			return nil, errors.New("not expected")
		}
	}
	h := NewPeakHandler(st, run, zap.NewNop())
	h.now = func() time.Time { return time.Date(2021, 8, 8, 10, 0, 0, 0, time.UTC) }
	return NewRouter(h), st
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestPeaksEndpoint(t *testing.T) {
	router, st := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/peaks")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	peaks := models.TelemetryPeaks{}
	peaks.Set("malicious", "PdfFile", models.TelemetryPeak{SubCount: 400, SampCount: 2})
	require.NoError(t, st.SavePeaks(context.Background(), peaks))

	rec = serve(router, http.MethodGet, "/peaks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got models.TelemetryPeaks
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, peaks, got)
}

func TestBaselineEndpoints(t *testing.T) {
	router, st := newTestRouter(t, nil)

	rec := serve(router, http.MethodGet, "/baseline")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	table := models.GlobalTable{
		StartTS:            time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC),
		EndTS:              time.Date(2021, 8, 8, 0, 0, 0, 0, time.UTC),
		WindowCount:        7,
		SubCountAvg:        120,
		SubCountMax:        300,
		SampCountAvg:       40,
		SampCountMax:       90,
		SampSubCountAvg:    3,
		SampSubCountMax:    4.5,
		ThresholdSuggested: 120,
	}
	tables := models.GlobalTables{}
	tables.Set("malicious", "PdfFile", table)
	require.NoError(t, st.SaveGlobalTables(context.Background(), tables))

	rec = serve(router, http.MethodGet, "/baseline")
	require.Equal(t, http.StatusOK, rec.Code)
	var all models.GlobalTables
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Equal(t, tables, all)

	rec = serve(router, http.MethodGet, "/baseline/malicious/PdfFile")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["2021-08-01 00:00:00", "2021-08-08 00:00:00", 7, 120, 300, 40, 90, 3, 4.5, 120]`, rec.Body.String())

	rec = serve(router, http.MethodGet, "/baseline/benign/PdfFile")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	var calls []runCall
	peaks := models.TelemetryPeaks{}
	peaks.Set("malicious", "file_type", models.TelemetryPeak{SubCount: 20, SampCount: 2})
	run := func(_ context.Context, start, end time.Time, threshold int) (*analytics.RunResult, error) {
		calls = append(calls, runCall{start, end, threshold})
		return &analytics.RunResult{
			Peaks:          peaks,
			BaselineSource: analytics.BaselineFromStore,
			Duration:       1500 * time.Millisecond,
		}, nil
	}
	router, _ := newTestRouter(t, run)

	rec := serve(router, http.MethodPost, "/analyze?start=2021-08-01&end=2021-08-03&threshold=5")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, calls, 1)
	assert.Equal(t, runCall{
		start:     time.Date(2021, 8, 1, 0, 0, 0, 0, time.UTC),
		end:       time.Date(2021, 8, 3, 0, 0, 0, 0, time.UTC),
		threshold: 5,
	}, calls[0])

	var body struct {
		Start           string                `json:"start"`
		End             string                `json:"end"`
		BaselineSource  string                `json:"baseline_source"`
		DurationSeconds float64               `json:"duration_seconds"`
		Peaks           models.TelemetryPeaks `json:"peaks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2021-08-01", body.Start)
	assert.Equal(t, "2021-08-03", body.End)
	assert.Equal(t, "store", body.BaselineSource)
	assert.Equal(t, 1.5, body.DurationSeconds)
	assert.Equal(t, peaks, body.Peaks)

	rec = serve(router, http.MethodPost, "/analyze")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, calls, 2)
	assert.Equal(t, time.Date(2021, 8, 7, 0, 0, 0, 0, time.UTC), calls[1].start)
	assert.Equal(t, time.Date(2021, 8, 8, 0, 0, 0, 0, time.UTC), calls[1].end)
	assert.Equal(t, 0, calls[1].threshold)
}

func TestAnalyzeEndpointRejectsBadInput(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	for _, target := range []string{
		"/analyze?threshold=-1",
		"/analyze?threshold=ten",
		"/analyze?start=2021-08-03&end=2021-08-01",
		"/analyze?start=yesterday&end=2021-08-01",
	} {
		rec := serve(router, http.MethodPost, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}

	rec := serve(router, http.MethodGet, "/analyze")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAnalyzeEndpointRunFailure(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := serve(router, http.MethodPost, "/analyze")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "not expected")
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)
	serve(router, http.MethodGet, "/baseline/x/y")

	rec := serve(router, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{endpoint="/baseline/{dim0}/{dim1}",method="GET",status="404"}`)
}
