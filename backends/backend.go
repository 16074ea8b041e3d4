package backends

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"telemetry-peak-analyzer/models"
)

var (
	ErrUnknownBackend     = errors.New("unknown backend")
	ErrBackendUnavailable = errors.New("backend not available in this build")
)

// Backend feeds the analyzer with two views of the raw telemetry found in
// [start, end). Both operations are read-only and deterministic.
//
// dimensions[0] and dimensions[1] are the grouping pair: records lacking
// either of them, or lacking the index sample field, are left out. Any
// further dimension is auxiliary and a missing value is reported as "".
type Backend interface {
	// GroupBy counts records per combination of dimensions plus the index
	// sample field. Each bucket's Terms holds every one of those fields.
	GroupBy(ctx context.Context, start, end time.Time, index models.Index, dimensions []string) ([]models.Bucket, error)

	// Stats rolls the range up per calendar day and reports, for every pair,
	// the mean and max of the daily submission and sample counts and the max
	// daily submissions-per-sample ratio.
	Stats(ctx context.Context, start, end time.Time, index models.Index, dimensions []string, values map[string][]string) (models.Grid[models.Rollup], error)
}

type Kind string

const (
	KindJSON Kind = "json"
	// KindSearch is the search-cluster backend. Only its contract is part of
	// this repository.
	KindSearch Kind = "search"
)

type Factory func(input string, logger *zap.Logger) (Backend, error)

var registry = map[Kind]Factory{
	KindJSON: func(input string, logger *zap.Logger) (Backend, error) {
		return NewFileBackend(input, logger)
	},
	KindSearch: func(string, *zap.Logger) (Backend, error) {
		return nil, fmt.Errorf("%w: %s", ErrBackendUnavailable, KindSearch)
	},
}

// New builds the backend registered under kind. input is backend specific:
// a file glob for the json backend.
func New(kind Kind, input string, logger *zap.Logger) (Backend, error) {
	factory, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownBackend, kind, Kinds())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(input, logger.Named("backend").With(zap.String("kind", string(kind))))
}

func Kinds() []Kind {
	kinds := make([]Kind, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
