package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"telemetry-peak-analyzer/models"
)

const defaultKeyPrefix = "peak_analyzer"

// RedisStore keeps the baseline document and the latest peaks under two
// keys. Peaks expire after PeaksTTL, the baseline never does.
type RedisStore struct {
	client *redis.Client
	opts   RedisOptions
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = defaultKeyPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:       opts.Addr,
		Password:   opts.Password,
		DB:         opts.DB,
		MaxRetries: 3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis store: ping %s: %w", opts.Addr, err)
	}

	return &RedisStore{
		client: rdb,
		opts:   opts,
	}, nil
}

func (rs *RedisStore) Close() error {
	return rs.client.Close()
}

func (rs *RedisStore) globalTablesKey() string {
	return rs.opts.KeyPrefix + ":global_tables"
}

func (rs *RedisStore) peaksKey() string {
	return rs.opts.KeyPrefix + ":peaks"
}

func (rs *RedisStore) LoadGlobalTables(ctx context.Context) (models.GlobalTables, error) {
	val, err := rs.get(ctx, rs.globalTablesKey())
	if err != nil {
		return nil, err
	}
	return models.DecodeGlobalTables(bytes.NewReader(val))
}

func (rs *RedisStore) SaveGlobalTables(ctx context.Context, tables models.GlobalTables) error {
	var buf bytes.Buffer
	if err := models.EncodeGlobalTables(&buf, tables); err != nil {
		return err
	}
	return rs.client.Set(ctx, rs.globalTablesKey(), buf.Bytes(), 0).Err()
}

func (rs *RedisStore) LoadPeaks(ctx context.Context) (models.TelemetryPeaks, error) {
	val, err := rs.get(ctx, rs.peaksKey())
	if err != nil {
		return nil, err
	}
	return models.DecodePeaks(bytes.NewReader(val))
}

func (rs *RedisStore) SavePeaks(ctx context.Context, peaks models.TelemetryPeaks) error {
	var buf bytes.Buffer
	if err := models.EncodePeaks(&buf, peaks); err != nil {
		return err
	}
	return rs.client.Set(ctx, rs.peaksKey(), buf.Bytes(), rs.opts.PeaksTTL).Err()
}

func (rs *RedisStore) get(ctx context.Context, key string) ([]byte, error) {
	val, err := rs.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: redis key %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}
