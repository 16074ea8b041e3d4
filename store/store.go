package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telemetry-peak-analyzer/models"
)

// ErrNotFound is returned when nothing has been persisted yet.
var ErrNotFound = errors.New("not found")

// Store persists the baseline between runs and keeps the latest peaks.
// A single writer per store is assumed.
type Store interface {
	LoadGlobalTables(ctx context.Context) (models.GlobalTables, error)
	SaveGlobalTables(ctx context.Context, tables models.GlobalTables) error
	LoadPeaks(ctx context.Context) (models.TelemetryPeaks, error)
	SavePeaks(ctx context.Context, peaks models.TelemetryPeaks) error
	Close() error
}

type Kind string

const (
	KindFile  Kind = "file"
	KindRedis Kind = "redis"
)

type Config struct {
	Kind Kind
	// Path is the baseline file of the file store.
	Path string
	// PeaksPath optionally receives the peaks of the file store.
	PeaksPath string
	Redis     RedisOptions
}

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	PeaksTTL  time.Duration
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Kind {
	case KindFile, "":
		return NewFileStore(cfg.Path, cfg.PeaksPath)
	case KindRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
