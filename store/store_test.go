package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry-peak-analyzer/models"
)

func sampleTables() models.GlobalTables {
	tables := models.GlobalTables{}
	tables.Set("malicious", "PdfFile", models.GlobalTable{
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
	})
	return tables
}

func samplePeaks() models.TelemetryPeaks {
	peaks := models.TelemetryPeaks{}
	peaks.Set("malicious", "PdfFile", models.TelemetryPeak{
		SubCount:                 400,
		SampCount:                3,
		SampSubCountMax:          380,
		SampSubCountMean:         133.33333333333334,
		SampSubCountStd:          213.8,
		SampSubRatio:             0.95,
		GlobalSampSubCountMax:    4.5,
		GlobalThresholdSuggested: 120,
	})
	return peaks
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "global_table.json"), filepath.Join(dir, "peaks.json"))
	require.NoError(t, err)

	_, err = s.LoadGlobalTables(ctx)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.LoadPeaks(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveGlobalTables(ctx, sampleTables()))
	require.NoError(t, s.SavePeaks(ctx, samplePeaks()))

	tables, err := s.LoadGlobalTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTables(), tables)

	peaks, err := s.LoadPeaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, samplePeaks(), peaks)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"2021-08-01 00:00:00"`)
}

func TestFileStoreWithoutPeaksPath(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(filepath.Join(t.TempDir(), "global_table.json"), "")
	require.NoError(t, err)

	require.NoError(t, s.SavePeaks(ctx, samplePeaks()))
	_, err = s.LoadPeaks(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptBaseline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "global_table.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"a": {"b": [1, 2]}}`), 0o644))

	s, err := NewFileStore(path, "")
	require.NoError(t, err)
	_, err = s.LoadGlobalTables(context.Background())
	require.ErrorIs(t, err, models.ErrInvalidTable)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := New(ctx, Config{
		Kind: KindRedis,
		Redis: RedisOptions{
			Addr:     mr.Addr(),
			PeaksTTL: time.Hour,
		},
	})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.LoadGlobalTables(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SaveGlobalTables(ctx, sampleTables()))
	require.NoError(t, s.SavePeaks(ctx, samplePeaks()))

	tables, err := s.LoadGlobalTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleTables(), tables)

	peaks, err := s.LoadPeaks(ctx)
	require.NoError(t, err)
	assert.Equal(t, samplePeaks(), peaks)

	assert.Equal(t, time.Duration(0), mr.TTL("peak_analyzer:global_tables"))
	assert.Equal(t, time.Hour, mr.TTL("peak_analyzer:peaks"))

	mr.FastForward(2 * time.Hour)
	_, err = s.LoadPeaks(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	require.Error(t, err)
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(context.Background(), Config{Kind: "tape"})
	require.Error(t, err)
}
