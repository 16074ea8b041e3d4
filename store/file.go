package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"

	"telemetry-peak-analyzer/models"
)

// FileStore keeps the baseline in the JSON document format shared with
// previous runs. Writes replace the file atomically.
type FileStore struct {
	path      string
	peaksPath string
}

func NewFileStore(path, peaksPath string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: empty baseline path")
	}
	return &FileStore{path: path, peaksPath: peaksPath}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) LoadGlobalTables(_ context.Context) (models.GlobalTables, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return models.DecodeGlobalTables(f)
}

func (s *FileStore) SaveGlobalTables(_ context.Context, tables models.GlobalTables) error {
	var buf bytes.Buffer
	if err := models.EncodeGlobalTables(&buf, tables); err != nil {
		return err
	}
	return atomic.WriteFile(s.path, &buf)
}

func (s *FileStore) LoadPeaks(_ context.Context) (models.TelemetryPeaks, error) {
	if s.peaksPath == "" {
		return nil, fmt.Errorf("%w: no peaks file configured", ErrNotFound)
	}
	f, err := os.Open(s.peaksPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.peaksPath)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return models.DecodePeaks(f)
}

// SavePeaks is a no-op without a peaks path.
func (s *FileStore) SavePeaks(_ context.Context, peaks models.TelemetryPeaks) error {
	if s.peaksPath == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := models.EncodePeaks(&buf, peaks); err != nil {
		return err
	}
	return atomic.WriteFile(s.peaksPath, &buf)
}

func (s *FileStore) Close() error { return nil }
