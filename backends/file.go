package backends

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"telemetry-peak-analyzer/models"
)

// FileBackend reads telemetry from JSON or JSON Lines files. Records are
// streamed on every operation, never held as a whole, so Stats trades one
// scan per calendar day for bounded memory.
type FileBackend struct {
	paths  []string
	logger *zap.Logger
}

func NewFileBackend(pattern string, logger *zap.Logger) (*FileBackend, error) {
	if pattern == "" {
		return nil, fmt.Errorf("file backend: empty input pattern")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("file backend: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("file backend: no files match %q", pattern)
	}

	paths := make([]string, 0, len(matches))
	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("file backend: %w", err)
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)

	logger.Info("Loaded files", zap.Int("count", len(paths)))
	for _, p := range paths {
		logger.Debug("Loaded file", zap.String("path", p))
	}
	return &FileBackend{paths: paths, logger: logger}, nil
}

func (b *FileBackend) Paths() []string {
	return append([]string(nil), b.paths...)
}

func (b *FileBackend) scan(ctx context.Context, operation string, fn func(record) error) error {
	scanned := 0
	for _, path := range b.paths {
		err := scanFile(ctx, path, func(rec record) error {
			scanned++
			return fn(rec)
		})
		if err != nil {
			return err
		}
	}
	recordsScannedTotal.WithLabelValues(operation).Add(float64(scanned))
	return nil
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}

const keySep = "\x00"

func (b *FileBackend) GroupBy(ctx context.Context, start, end time.Time, index models.Index, dimensions []string) ([]models.Bucket, error) {
	if len(dimensions) < 2 {
		return nil, fmt.Errorf("group_by needs at least two dimensions, got %d", len(dimensions))
	}
	terms := append(append([]string(nil), dimensions...), index.Sample)
	fields := newFieldSet(append([]string{index.Timestamp}, terms...)...)

	counters := make(map[string]int)
	err := b.scan(ctx, "group_by", func(rec record) error {
		res := rec.lookup(fields)
		ts, err := rec.timestamp(index.Timestamp, res[0])
		if err != nil {
			return err
		}
		if !inRange(ts, start, end) {
			return nil
		}
		values := make([]string, len(terms))
		for i, r := range res[1:] {
			v, ok := term(r)
			if !ok && isRequiredTerm(i, len(terms)) {
				return nil
			}
			values[i] = v
		}
		counters[strings.Join(values, keySep)]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]models.Bucket, 0, len(keys))
	for _, k := range keys {
		values := strings.Split(k, keySep)
		bucket := models.Bucket{Terms: make(map[string]string, len(terms)), Count: counters[k]}
		for i, t := range terms {
			bucket.Terms[t] = values[i]
		}
		buckets = append(buckets, bucket)
	}
	b.logger.Debug("Grouped records", zap.Int("buckets", len(buckets)))
	return buckets, nil
}

// isRequiredTerm reports whether the i-th of n group_by terms must be present:
// the two grouping dimensions and the trailing sample field.
func isRequiredTerm(i, n int) bool {
	return i < 2 || i == n-1
}

type pairKey struct {
	dim0, dim1 string
}

// rollupAccumulator folds daily counts into running sums and maximums.
type rollupAccumulator struct {
	subSum, subMax   int
	sampSum, sampMax int
	ratioMax         float64
}

func (a *rollupAccumulator) fold(sub, samp int) {
	a.subSum += sub
	a.sampSum += samp
	a.subMax = max(a.subMax, sub)
	a.sampMax = max(a.sampMax, samp)
	if samp > 0 {
		a.ratioMax = max(a.ratioMax, float64(sub)/float64(samp))
	}
}

func (a *rollupAccumulator) rollup(days int) models.Rollup {
	return models.Rollup{
		SubCountAvg:     float64(a.subSum) / float64(days),
		SubCountMax:     a.subMax,
		SampCountAvg:    float64(a.sampSum) / float64(days),
		SampCountMax:    a.sampMax,
		SampSubCountMax: a.ratioMax,
	}
}

func (b *FileBackend) Stats(ctx context.Context, start, end time.Time, index models.Index, dimensions []string, _ map[string][]string) (models.Grid[models.Rollup], error) {
	if len(dimensions) < 2 {
		return nil, fmt.Errorf("stats needs two dimensions, got %d", len(dimensions))
	}
	fields := newFieldSet(index.Timestamp, index.Sample, dimensions[0], dimensions[1])

	days, err := b.days(ctx, start, end, index.Timestamp)
	if err != nil {
		return nil, err
	}
	b.logger.Debug("Collected days", zap.Int("days", len(days)))

	running := make(map[pairKey]*rollupAccumulator)
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		subCount := make(map[pairKey]int)
		samples := make(map[pairKey]map[string]struct{})
		dayEnd := day.AddDate(0, 0, 1)

		err := b.scan(ctx, "stats", func(rec record) error {
			res := rec.lookup(fields)
			ts, err := rec.timestamp(index.Timestamp, res[0])
			if err != nil {
				return err
			}
			if !inRange(ts, day, dayEnd) || !inRange(ts, start, end) {
				return nil
			}
			sample, ok0 := term(res[1])
			dim0, ok1 := term(res[2])
			dim1, ok2 := term(res[3])
			if !ok0 || !ok1 || !ok2 {
				return nil
			}
			key := pairKey{dim0, dim1}
			subCount[key]++
			set, ok := samples[key]
			if !ok {
				set = make(map[string]struct{})
				samples[key] = set
			}
			set[sample] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, err
		}

		for key, sub := range subCount {
			acc, ok := running[key]
			if !ok {
				acc = &rollupAccumulator{}
				running[key] = acc
			}
			acc.fold(sub, len(samples[key]))
		}
		b.logger.Debug("Folded day", zap.Time("day", day), zap.Int("pairs", len(subCount)))
	}

	out := make(models.Grid[models.Rollup])
	for key, acc := range running {
		out.Set(key.dim0, key.dim1, acc.rollup(len(days)))
	}
	return out, nil
}

// days is the first pass of Stats: the sorted UTC calendar days holding at
// least one record in range.
func (b *FileBackend) days(ctx context.Context, start, end time.Time, timestampField string) ([]time.Time, error) {
	fields := newFieldSet(timestampField)
	seen := make(map[time.Time]struct{})
	err := b.scan(ctx, "stats", func(rec record) error {
		ts, err := rec.timestamp(timestampField, rec.lookup(fields)[0])
		if err != nil {
			return err
		}
		if inRange(ts, start, end) {
			seen[ts.Truncate(24*time.Hour)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}
