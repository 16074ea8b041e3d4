package analytics

import (
	"maps"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"telemetry-peak-analyzer/models"
)

// LocalTablesStats derives the window statistics of every pair.
func (a *Analyzer) LocalTablesStats(local models.LocalTables) models.LocalTablesStats {
	out := make(models.LocalTablesStats)
	local.Each(func(dim0, dim1 string, table models.LocalTable) {
		out.Set(dim0, dim1, a.localTableStats(table))
	})
	return out
}

func (a *Analyzer) localTableStats(table models.LocalTable) models.LocalTableStats {
	samples := table[a.profile.Index.Sample]

	counts := make([]float64, 0, len(samples))
	subCount, sampSubCountMax := 0, 0
	for _, n := range samples {
		counts = append(counts, float64(n))
		subCount += n
		sampSubCountMax = max(sampSubCountMax, n)
	}
	// Sorted so the floating point sums do not depend on map order.
	slices.Sort(counts)

	var mean, std float64
	if len(counts) > 0 {
		mean = stat.Mean(counts, nil)
	}
	if len(counts) > 1 {
		std = stat.StdDev(counts, nil)
	}

	var sampSubRatio float64
	if subCount > a.peakCfg.LocalMinCount {
		sampSubRatio = round2(float64(sampSubCountMax) / float64(subCount))
	}

	cross := make(map[string]models.Counter, len(a.profile.CrossDimensions))
	for _, d := range a.profile.CrossDimensions {
		c := maps.Clone(table[d])
		if c == nil {
			c = make(models.Counter)
		}
		cross[d] = c
	}

	return models.LocalTableStats{
		SubCount:         subCount,
		SampCount:        len(samples),
		SampSubCountMax:  sampSubCountMax,
		SampSubCountMean: mean,
		SampSubCountStd:  std,
		SampSubRatio:     sampSubRatio,
		CrossStats:       cross,
	}
}

// GlobalTablesStats extracts the comparison values from the baseline. A
// non-zero threshold overrides every suggested threshold.
func (a *Analyzer) GlobalTablesStats(global models.GlobalTables, threshold int) models.GlobalTablesStats {
	out := make(models.GlobalTablesStats)
	global.Each(func(dim0, dim1 string, table models.GlobalTable) {
		t := table.ThresholdSuggested
		if threshold != 0 {
			t = threshold
		}
		out.Set(dim0, dim1, models.GlobalTableStats{
			SampSubCountMax: table.SampSubCountMax,
			Threshold:       t,
		})
	})
	return out
}

// Peaks flags the pairs whose window deviates from their baseline. Pairs
// missing from either side are skipped.
func (a *Analyzer) Peaks(global models.GlobalTables, local models.LocalTables, threshold int) models.TelemetryPeaks {
	localStats := a.LocalTablesStats(local)
	globalStats := a.GlobalTablesStats(global, threshold)

	peaks := make(models.TelemetryPeaks)
	localStats.Each(func(dim0, dim1 string, ls models.LocalTableStats) {
		gs, ok := globalStats.Get(dim0, dim1)
		if !ok {
			a.logger.Debug("No baseline for pair", zap.String("dim0", dim0), zap.String("dim1", dim1))
			return
		}
		if !a.detector.IsPeak(ls, gs) {
			return
		}
		peaks.Set(dim0, dim1, models.NewTelemetryPeak(ls, gs))
		peaksDetectedTotal.WithLabelValues(a.profile.Name, dim0).Inc()
	})
	a.logger.Info("Computed peaks", zap.Int("pairs", localStats.Len()), zap.Int("peaks", peaks.Len()))
	return peaks
}
