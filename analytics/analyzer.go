package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telemetry-peak-analyzer/backends"
	"telemetry-peak-analyzer/models"
)

// Analyzer is the statistics engine for one analysis window [start, end).
// Callers are expected to use it in order: LocalTables, GlobalTables (or a
// persisted baseline), Peaks, RefreshGlobalTables.
type Analyzer struct {
	backend  backends.Backend
	profile  Profile
	detector *PeakDetector
	peakCfg  PeakConfig
	start    time.Time
	end      time.Time
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Analyzer)

func WithPeakConfig(cfg PeakConfig) Option {
	return func(a *Analyzer) { a.peakCfg = cfg }
}

func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithClock replaces time.Now when rebuilding the baseline from the backend.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func NewAnalyzer(backend backends.Backend, profile Profile, start, end time.Time, opts ...Option) (*Analyzer, error) {
	if backend == nil {
		return nil, errors.New("analyzer needs a backend")
	}
	if !end.After(start) {
		return nil, fmt.Errorf("invalid time interval %s - %s", start, end)
	}
	a := &Analyzer{
		backend: backend,
		profile: profile,
		peakCfg: DefaultPeakConfig(),
		start:   start.UTC(),
		end:     end.UTC(),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if err := a.peakCfg.Validate(); err != nil {
		return nil, err
	}
	if a.profile.GlobalTableAge <= 0 {
		a.profile.GlobalTableAge = DefaultGlobalTableAge
	}
	a.detector = NewPeakDetector(a.peakCfg)
	a.logger = a.logger.Named("analyzer")
	a.logger.Info("Loading analyzer",
		zap.String("profile", profile.Name),
		zap.String("backend", fmt.Sprintf("%T", backend)),
		zap.Time("start", a.start),
		zap.Time("end", a.end))
	return a, nil
}

func (a *Analyzer) Profile() Profile { return a.profile }

func (a *Analyzer) Window() (time.Time, time.Time) { return a.start, a.end }

// LocalTables groups the window's records per dimension pair into raw
// field -> value -> count tables.
func (a *Analyzer) LocalTables(ctx context.Context) (models.LocalTables, error) {
	dims := a.profile.groupByDimensions()
	buckets, err := a.backend.GroupBy(ctx, a.start, a.end, a.profile.Index, dims)
	if err != nil {
		return nil, fmt.Errorf("group by: %w", err)
	}

	terms := append(append([]string(nil), dims...), a.profile.Index.Sample)
	local := make(models.LocalTables)
	for _, bucket := range buckets {
		dim0, ok0 := bucket.Terms[dims[0]]
		dim1, ok1 := bucket.Terms[dims[1]]
		if !ok0 || !ok1 {
			return nil, fmt.Errorf("bucket %v lacks dimensions %v", bucket.Terms, dims[:2])
		}
		table, ok := local.Get(dim0, dim1)
		if !ok {
			table = make(models.LocalTable, len(terms))
			for _, t := range terms {
				table[t] = make(models.Counter)
			}
			local.Set(dim0, dim1, table)
		}
		for _, t := range terms {
			v, ok := bucket.Terms[t]
			if !ok {
				return nil, fmt.Errorf("bucket %v lacks term %q", bucket.Terms, t)
			}
			table.Add(t, v, bucket.Count)
		}
	}
	a.logger.Info("Loaded local tables", zap.Int("buckets", len(buckets)), zap.Int("pairs", local.Len()))
	return local, nil
}

// windowCount is the number of windows a baseline spanning [start, end)
// stands for: days when the span is a whole number of days, hours otherwise.
func windowCount(start, end time.Time) int {
	hours := int(end.Sub(start) / time.Hour)
	count := hours
	if hours%24 == 0 {
		count = hours / 24
	}
	if count == 0 {
		count = 1
	}
	return count
}

// GlobalTables rebuilds the baseline from the backend's multi-day rollup,
// covering the profile's GlobalTableAge up to now.
func (a *Analyzer) GlobalTables(ctx context.Context) (models.GlobalTables, error) {
	end := a.now().UTC().Truncate(time.Second)
	start := end.Add(-a.profile.GlobalTableAge)
	dims := a.profile.Dimensions

	rollups, err := a.backend.Stats(ctx, start, end, a.profile.Index, dims[:], a.profile.dimensionsValues())
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}

	count := windowCount(start, end)
	global := make(models.GlobalTables)
	rollups.Each(func(dim0, dim1 string, r models.Rollup) {
		subCountAvg := roundInt(r.SubCountAvg)
		global.Set(dim0, dim1, models.GlobalTable{
			StartTS:            start,
			EndTS:              end,
			WindowCount:        count,
			SubCountAvg:        subCountAvg,
			SubCountMax:        r.SubCountMax,
			SampCountAvg:       roundInt(r.SampCountAvg),
			SampCountMax:       r.SampCountMax,
			SampSubCountAvg:    roundInt(ratio(r.SubCountAvg, r.SampCountAvg)),
			SampSubCountMax:    r.SampSubCountMax,
			ThresholdSuggested: max(subCountAvg, a.profile.DimensionThreshold(dims[0], dim0)),
		})
	})
	a.logger.Info("Loaded global tables from backend",
		zap.Time("start", start), zap.Time("end", end), zap.Int("pairs", global.Len()))
	return global, nil
}
