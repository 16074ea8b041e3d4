package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, DefaultAnalyzer, cfg.Analyzer)
	assert.Equal(t, DefaultBackendKind, cfg.Backend.Kind)
	assert.Equal(t, 0, cfg.Threshold)
	assert.Equal(t, 1, cfg.Delta)
	assert.Equal(t, Peak{
		LocalMinCount:     50,
		GlobalCountWeight: 0.8,
		MinSampSubRatio:   0.5,
		StdWeight:         1.0,
	}, cfg.Peak)
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, DefaultStorePath, cfg.Store.Path)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.PeaksTTL)
	assert.Equal(t, ":8080", cfg.Serve.Addr)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analyzer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analyzer: network_type
threshold: 25
backend:
  kind: json
  input: /data/*.json
peak:
  std_weight: 2.5
store:
  kind: redis
  peaks_ttl: 1h
`), 0o644))

	t.Setenv("PEAK_ANALYZER_STORE_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("PEAK_ANALYZER_DELTA", "3")

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "network_type", cfg.Analyzer)
	assert.Equal(t, 25, cfg.Threshold)
	assert.Equal(t, "/data/*.json", cfg.Backend.Input)
	assert.Equal(t, 2.5, cfg.Peak.StdWeight)
	assert.Equal(t, 0.8, cfg.Peak.GlobalCountWeight)
	assert.Equal(t, "redis", cfg.Store.Kind)
	assert.Equal(t, "redis.internal:6380", cfg.Store.RedisAddr)
	assert.Equal(t, time.Hour, cfg.Store.PeaksTTL)
	assert.Equal(t, 3, cfg.Delta)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty analyzer", func(c *Config) { c.Analyzer = "" }},
		{"negative threshold", func(c *Config) { c.Threshold = -1 }},
		{"zero delta", func(c *Config) { c.Delta = 0 }},
		{"negative delay", func(c *Config) { c.Delay = -2 }},
		{"unknown store", func(c *Config) { c.Store.Kind = "s3" }},
		{"file store without path", func(c *Config) { c.Store.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New(), "")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestResolveWindow(t *testing.T) {
	now := time.Date(2021, 8, 8, 17, 30, 0, 0, time.UTC)
	day := func(d int) time.Time { return time.Date(2021, 8, d, 0, 0, 0, 0, time.UTC) }

	t.Run("explicit dates", func(t *testing.T) {
		start, end, err := ResolveWindow("2021-08-01", "2021-08-03", 1, 0, now)
		require.NoError(t, err)
		assert.Equal(t, day(1), start)
		assert.Equal(t, day(3), end)
	})

	t.Run("end not after start", func(t *testing.T) {
		_, _, err := ResolveWindow("2021-08-03", "2021-08-03", 1, 0, now)
		require.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, _, err := ResolveWindow("2021-13-01", "2021-08-03", 1, 0, now)
		require.Error(t, err)
	})

	t.Run("delta and delay", func(t *testing.T) {
		start, end, err := ResolveWindow("", "", 2, 1, now)
		require.NoError(t, err)
		assert.Equal(t, day(5), start)
		assert.Equal(t, day(7), end)
	})

	t.Run("single date falls back to delta", func(t *testing.T) {
		start, end, err := ResolveWindow("2021-07-01", "", 1, 0, now)
		require.NoError(t, err)
		assert.Equal(t, day(7), start)
		assert.Equal(t, day(8), end)
	})

	t.Run("non utc clock", func(t *testing.T) {
		tz := time.FixedZone("UTC+9", 9*3600)
		// 2021-08-09 02:00 in UTC+9 is still the 8th in UTC
		start, end, err := ResolveWindow("", "", 1, 0, time.Date(2021, 8, 9, 2, 0, 0, 0, tz))
		require.NoError(t, err)
		assert.Equal(t, day(7), start)
		assert.Equal(t, day(8), end)
	})
}
