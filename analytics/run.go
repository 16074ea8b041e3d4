package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-peak-analyzer/models"
	"telemetry-peak-analyzer/store"
)

const (
	BaselineFromStore   = "store"
	BaselineFromBackend = "backend"
)

type RunResult struct {
	Peaks          models.TelemetryPeaks
	GlobalTables   models.GlobalTables
	BaselineSource string
	Duration       time.Duration
}

// Run performs one batch pass: load the baseline (rebuilding it from the
// backend when none was persisted), compute the window's peaks, merge the
// window into the baseline and persist both.
func Run(ctx context.Context, a *Analyzer, st store.Store, threshold int) (result *RunResult, err error) {
	started := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		runDurationSeconds.WithLabelValues(a.profile.Name, status).Observe(time.Since(started).Seconds())
	}()

	a.logger.Info("Running peak analyzer",
		zap.Time("start", a.start), zap.Time("end", a.end), zap.Int("threshold", threshold))

	source := BaselineFromStore
	global, err := st.LoadGlobalTables(ctx)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("No persisted global tables, loading them from the backend", zap.Error(err))
		source = BaselineFromBackend
		global, err = a.GlobalTables(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("load global tables: %w", err)
	}

	local, err := a.LocalTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local tables: %w", err)
	}

	peaks := a.Peaks(global, local, threshold)
	peaks.Each(func(dim0, dim1 string, p models.TelemetryPeak) {
		fields := []zap.Field{zap.String("dim0", dim0), zap.String("dim1", dim1)}
		for _, f := range p.Fields() {
			fields = append(fields, zap.Float64(f.Name, round2(f.Value)))
		}
		a.logger.Info("TelemetryPeak", fields...)
	})
	if err := st.SavePeaks(ctx, peaks); err != nil {
		return nil, fmt.Errorf("save peaks: %w", err)
	}

	refreshed := a.RefreshGlobalTables(global, local)
	if err := st.SaveGlobalTables(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("save global tables: %w", err)
	}

	return &RunResult{
		Peaks:          peaks,
		GlobalTables:   refreshed,
		BaselineSource: source,
		Duration:       time.Since(started),
	}, nil
}
