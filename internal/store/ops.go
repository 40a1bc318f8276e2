package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"basegraph.app/faultline/common/id"
	"basegraph.app/faultline/internal/model"
)

// DefaultTimeout applies to each store operation when the caller's context has
// no earlier deadline.
const DefaultTimeout = 5 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

func checkDimensions(fp model.Fingerprint, dims int) error {
	if len(fp) != dims {
		return fmt.Errorf("%w: got %d, store expects %d", ErrDimensionMismatch, len(fp), dims)
	}
	return nil
}

// preparePattern fills the fields the store owns on insert.
func preparePattern(scope string, p *model.FailurePattern, now time.Time) {
	p.ID = id.New()
	p.Scope = scope
	p.OccurrenceCount = 1
	p.FirstSeenAt = now
	p.LastSeenAt = now
	if p.AffectedFiles == nil {
		p.AffectedFiles = []string{}
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// sortMatches orders by similarity descending, then id ascending, and caps at k.
func sortMatches(matches []model.PatternMatch, k int) []model.PatternMatch {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].PatternID < matches[j].PatternID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func clonePattern(p model.FailurePattern) model.FailurePattern {
	out := p
	out.Fingerprint = append(model.Fingerprint(nil), p.Fingerprint...)
	out.AffectedFiles = append([]string{}, p.AffectedFiles...)
	if p.StackTrace != nil {
		s := *p.StackTrace
		out.StackTrace = &s
	}
	if p.TestName != nil {
		s := *p.TestName
		out.TestName = &s
	}
	return out
}
