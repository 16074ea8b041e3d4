package analytics

import (
	"go.uber.org/zap"

	"telemetry-peak-analyzer/models"
)

// RefreshGlobalTables merges the window into the baseline and returns a new
// baseline; neither input is modified.
//
// A window that starts before a pair's baseline ends is treated as already
// merged, including when it only partially overlaps, so re-running a period
// never counts it twice.
func (a *Analyzer) RefreshGlobalTables(global models.GlobalTables, local models.LocalTables) models.GlobalTables {
	refreshed := make(models.GlobalTables)
	var merged, kept, inferred int

	for _, pair := range models.Union(global, local) {
		dim0, dim1 := pair[0], pair[1]
		g, hasGlobal := global.Get(dim0, dim1)
		l, hasLocal := local.Get(dim0, dim1)

		var table models.GlobalTable
		switch {
		case hasGlobal && hasLocal && !g.Covers(a.start):
			table = a.updateGlobalTable(g, l)
			merged++
		case hasGlobal:
			table = g
			kept++
		case hasLocal:
			threshold := a.profile.DimensionThreshold(a.profile.Dimensions[0], dim0)
			table = a.inferGlobalTable(l, threshold)
			inferred++
		default:
			continue
		}
		refreshed.Set(dim0, dim1, table)
	}

	baselinePairs.WithLabelValues(a.profile.Name).Set(float64(refreshed.Len()))
	a.logger.Info("Refreshed global tables",
		zap.Int("merged", merged), zap.Int("kept", kept), zap.Int("inferred", inferred))
	return refreshed
}

// windowCounts returns the submissions, distinct samples and rounded
// submissions per sample of a raw table.
func (a *Analyzer) windowCounts(table models.LocalTable) (subCount, sampCount, sampSubCount int) {
	samples := table[a.profile.Index.Sample]
	subCount = samples.Total()
	sampCount = len(samples)
	sampSubCount = roundInt(ratio(float64(subCount), float64(sampCount)))
	return subCount, sampCount, sampSubCount
}

func (a *Analyzer) updateGlobalTable(g models.GlobalTable, table models.LocalTable) models.GlobalTable {
	subCount, sampCount, sampSubCount := a.windowCounts(table)
	subCountAvg := weightedMean(g.SubCountAvg, g.WindowCount, subCount)

	return models.GlobalTable{
		StartTS:            g.StartTS,
		EndTS:              a.end,
		WindowCount:        g.WindowCount + 1,
		SubCountAvg:        subCountAvg,
		SubCountMax:        max(g.SubCountMax, subCount),
		SampCountAvg:       weightedMean(g.SampCountAvg, g.WindowCount, sampCount),
		SampCountMax:       max(g.SampCountMax, sampCount),
		SampSubCountAvg:    weightedMean(g.SampSubCountAvg, g.WindowCount, sampSubCount),
		SampSubCountMax:    max(g.SampSubCountMax, float64(sampSubCount)),
		ThresholdSuggested: max(g.ThresholdSuggested, subCountAvg),
	}
}

func (a *Analyzer) inferGlobalTable(table models.LocalTable, threshold int) models.GlobalTable {
	subCount, sampCount, sampSubCount := a.windowCounts(table)
	return models.GlobalTable{
		StartTS:            a.start,
		EndTS:              a.end,
		WindowCount:        1,
		SubCountAvg:        subCount,
		SubCountMax:        subCount,
		SampCountAvg:       sampCount,
		SampCountMax:       sampCount,
		SampSubCountAvg:    sampSubCount,
		SampSubCountMax:    float64(sampSubCount),
		ThresholdSuggested: max(subCount, threshold),
	}
}
