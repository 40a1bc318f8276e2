package store

import (
	"context"
	"sync"
	"time"

	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
)

// MemoryPatternStore keeps patterns in process and answers queries with an exact
// cosine scan. Used by tests and by the offline CLI.
type MemoryPatternStore struct {
	mu       sync.RWMutex
	dims     int
	patterns map[string][]model.FailurePattern
	now      func() time.Time
}

func NewMemoryPatternStore(dims int) *MemoryPatternStore {
	if dims <= 0 {
		dims = model.DefaultDimensions
	}
	return &MemoryPatternStore{
		dims:     dims,
		patterns: make(map[string][]model.FailurePattern),
		now:      time.Now,
	}
}

func (s *MemoryPatternStore) Dimensions() int {
	return s.dims
}

func (s *MemoryPatternStore) Insert(ctx context.Context, scope string, p *model.FailurePattern) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr("insert", err)
	}
	if err := checkDimensions(p.Fingerprint, s.dims); err != nil {
		return 0, storageErr("insert", err)
	}

	preparePattern(scope, p, s.now().UTC())

	s.mu.Lock()
	s.patterns[scope] = append(s.patterns[scope], clonePattern(*p))
	s.mu.Unlock()

	return p.ID, nil
}

func (s *MemoryPatternStore) QuerySimilar(ctx context.Context, scope string, fp model.Fingerprint, opts QueryOptions) ([]model.PatternMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("query_similar", err)
	}
	if err := checkDimensions(fp, s.dims); err != nil {
		return nil, storageErr("query_similar", err)
	}
	opts = opts.normalized()

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]model.PatternMatch, 0)
	for _, p := range s.patterns[scope] {
		sim := fingerprint.CosineSimilarity(fp, p.Fingerprint)
		if sim <= opts.Threshold {
			continue
		}
		snapshot := clonePattern(p)
		snapshot.Fingerprint = nil
		matches = append(matches, model.PatternMatch{
			PatternID:  p.ID,
			Similarity: clamp01(sim),
			Pattern:    snapshot,
		})
	}

	return sortMatches(matches, opts.TopK), nil
}

func (s *MemoryPatternStore) Get(ctx context.Context, scope string, id int64) (*model.FailurePattern, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("get", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.patterns[scope] {
		if p.ID == id {
			out := clonePattern(p)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryPatternStore) Count(ctx context.Context, scope string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storageErr("count", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.patterns[scope]), nil
}
