package analytics

import (
	"fmt"

	"telemetry-peak-analyzer/models"
)

// PeakConfig holds the tunable constants of the peak predicate.
type PeakConfig struct {
	// LocalMinCount is the submission floor below which samp_sub_ratio is
	// reported as zero.
	LocalMinCount int
	// GlobalCountWeight scales the historical per-sample submission max.
	GlobalCountWeight float64
	// MinSampSubRatio is the share of submissions a single sample must exceed.
	MinSampSubRatio float64
	// StdWeight is how many standard deviations above the mean the top
	// sample must be.
	StdWeight float64
}

func DefaultPeakConfig() PeakConfig {
	return PeakConfig{
		LocalMinCount:     50,
		GlobalCountWeight: 0.8,
		MinSampSubRatio:   0.5,
		StdWeight:         1.0,
	}
}

func (c PeakConfig) Validate() error {
	if c.LocalMinCount < 0 {
		return fmt.Errorf("local_min_count must be non-negative, got %d", c.LocalMinCount)
	}
	if c.GlobalCountWeight < 0 || c.MinSampSubRatio < 0 || c.StdWeight < 0 {
		return fmt.Errorf("peak weights must be non-negative")
	}
	return nil
}

type PeakDetector struct {
	cfg PeakConfig
}

func NewPeakDetector(cfg PeakConfig) *PeakDetector {
	return &PeakDetector{cfg: cfg}
}

// IsPeak applies the volume gate and then the three spike heuristics.
func (pd *PeakDetector) IsPeak(local models.LocalTableStats, global models.GlobalTableStats) bool {
	if local.SubCount < global.Threshold {
		return false
	}

	susOverallRate := local.SampSubCountMean > pd.cfg.GlobalCountWeight*global.SampSubCountMax
	dominantSample := local.SampSubRatio > pd.cfg.MinSampSubRatio
	outlierSample := float64(local.SampSubCountMax) > local.SampSubCountMean+pd.cfg.StdWeight*local.SampSubCountStd

	return susOverallRate || dominantSample || outlierSample
}
