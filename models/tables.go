package models

import (
	"errors"
	"time"
)

var ErrInvalidTable = errors.New("invalid global table")

// Index is the pair of fields every record is keyed on: the timestamp used to
// window the data and the sample identity used to tell samples from submissions.
type Index struct {
	Timestamp string
	Sample    string
}

// GlobalTable is the rolling baseline kept for one dimension pair.
type GlobalTable struct {
	StartTS            time.Time
	EndTS              time.Time
	WindowCount        int
	SubCountAvg        int
	SubCountMax        int
	SampCountAvg       int
	SampCountMax       int
	SampSubCountAvg    int
	SampSubCountMax    float64
	ThresholdSuggested int
}

func (g GlobalTable) Validate() error {
	if g.WindowCount < 1 {
		return errors.New("window_count must be positive")
	}
	if g.EndTS.Before(g.StartTS) {
		return errors.New("end_ts must not precede start_ts")
	}
	if g.SubCountAvg < 0 || g.SampCountAvg < 0 || g.SampSubCountAvg < 0 {
		return errors.New("averages must be non-negative")
	}
	if g.SubCountMax < 0 || g.SampCountMax < 0 || g.SampSubCountMax < 0 {
		return errors.New("maximums must be non-negative")
	}
	return nil
}

// Covers reports whether a window starting at start was already merged.
func (g GlobalTable) Covers(start time.Time) bool {
	return start.Before(g.EndTS)
}

// Counter maps a field value to the number of submissions carrying it.
type Counter map[string]int

func (c Counter) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// LocalTable is the raw per-pair accumulator built from group_by buckets:
// field name -> value -> count.
type LocalTable map[string]Counter

func (lt LocalTable) Add(field, value string, count int) {
	c, ok := lt[field]
	if !ok {
		c = make(Counter)
		lt[field] = c
	}
	c[value] += count
}

type LocalTableStats struct {
	SubCount         int                `json:"sub_count"`
	SampCount        int                `json:"samp_count"`
	SampSubCountMax  int                `json:"samp_sub_count_max"`
	SampSubCountMean float64            `json:"samp_sub_count_mean"`
	SampSubCountStd  float64            `json:"samp_sub_count_std"`
	SampSubRatio     float64            `json:"samp_sub_ratio"`
	CrossStats       map[string]Counter `json:"cross_stats"`
}

type GlobalTableStats struct {
	SampSubCountMax float64 `json:"samp_sub_count_max"`
	Threshold       int     `json:"threshold"`
}

// TelemetryPeak is the output record for a flagged pair: the local window
// statistics next to the global values they were compared against.
type TelemetryPeak struct {
	SubCount                 int     `json:"sub_count"`
	SampCount                int     `json:"samp_count"`
	SampSubCountMax          int     `json:"samp_sub_count_max"`
	SampSubCountMean         float64 `json:"samp_sub_count_mean"`
	SampSubCountStd          float64 `json:"samp_sub_count_std"`
	SampSubRatio             float64 `json:"samp_sub_ratio"`
	GlobalSampSubCountMax    float64 `json:"global_samp_sub_count_max"`
	GlobalThresholdSuggested int     `json:"global_threshold_suggested"`
}

func NewTelemetryPeak(local LocalTableStats, global GlobalTableStats) TelemetryPeak {
	return TelemetryPeak{
		SubCount:                 local.SubCount,
		SampCount:                local.SampCount,
		SampSubCountMax:          local.SampSubCountMax,
		SampSubCountMean:         local.SampSubCountMean,
		SampSubCountStd:          local.SampSubCountStd,
		SampSubRatio:             local.SampSubRatio,
		GlobalSampSubCountMax:    global.SampSubCountMax,
		GlobalThresholdSuggested: global.Threshold,
	}
}

// Fields lists the peak values in declaration order, for logging.
func (p TelemetryPeak) Fields() []NamedValue {
	return []NamedValue{
		{"sub_count", float64(p.SubCount)},
		{"samp_count", float64(p.SampCount)},
		{"samp_sub_count_max", float64(p.SampSubCountMax)},
		{"samp_sub_count_mean", p.SampSubCountMean},
		{"samp_sub_count_std", p.SampSubCountStd},
		{"samp_sub_ratio", p.SampSubRatio},
		{"global_samp_sub_count_max", p.GlobalSampSubCountMax},
		{"global_threshold_suggested", float64(p.GlobalThresholdSuggested)},
	}
}

type NamedValue struct {
	Name  string
	Value float64
}

// Bucket is one group_by row: a combination of term values and how many
// records matched it.
type Bucket struct {
	Terms map[string]string `json:"terms"`
	Count int               `json:"count"`
}

// Rollup is the backend-computed multi-day summary for one pair.
type Rollup struct {
	SubCountAvg     float64 `json:"sub_count_avg"`
	SubCountMax     int     `json:"sub_count_max"`
	SampCountAvg    float64 `json:"samp_count_avg"`
	SampCountMax    int     `json:"samp_count_max"`
	SampSubCountMax float64 `json:"samp_sub_count_max"`
}

type (
	GlobalTables      = Grid[GlobalTable]
	LocalTables       = Grid[LocalTable]
	LocalTablesStats  = Grid[LocalTableStats]
	GlobalTablesStats = Grid[GlobalTableStats]
	TelemetryPeaks    = Grid[TelemetryPeak]
)
