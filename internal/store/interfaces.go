package store

import (
	"context"
	"errors"
	"fmt"

	"basegraph.app/faultline/internal/model"
)

const (
	DefaultTopK      = 5
	DefaultThreshold = 0.80
)

var (
	// ErrNotFound is returned when a requested pattern does not exist in the scope.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks every failure of the backing store, including timeouts.
	ErrStorage = errors.New("storage error")

	ErrDimensionMismatch = errors.New("fingerprint dimension mismatch")
)

// StorageError wraps a backend failure with the operation that hit it.
// errors.Is(err, ErrStorage) holds for every StorageError.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// QueryOptions bounds a similarity query. Zero values fall back to defaults.
type QueryOptions struct {
	TopK      int
	Threshold float64
}

func (o QueryOptions) normalized() QueryOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Threshold < 0 {
		o.Threshold = 0
	}
	return o
}

// PatternStore persists failure fingerprints and answers nearest-neighbour queries
// within a scope. Implementations are safe for concurrent use.
type PatternStore interface {
	// Insert stores a new pattern and returns its identifier. The pattern's ID,
	// Scope, OccurrenceCount and timestamps are set by the store.
	Insert(ctx context.Context, scope string, p *model.FailurePattern) (int64, error)

	// QuerySimilar returns patterns whose cosine similarity to fp is strictly
	// greater than the threshold, best first, ties by ascending id.
	QuerySimilar(ctx context.Context, scope string, fp model.Fingerprint, opts QueryOptions) ([]model.PatternMatch, error)

	Get(ctx context.Context, scope string, id int64) (*model.FailurePattern, error)
	Count(ctx context.Context, scope string) (int, error)
	Dimensions() int
}
