// Package recommend ranks which tests to run next from three signals: similar past
// failures, files touched by the change, and the tests that are failing right now.
package recommend

import (
	"fmt"
	"sort"

	"basegraph.app/faultline/internal/model"
)

const (
	MaxRecommendations    = 10
	PatternMatchWeight    = 0.8
	ChangedFileConfidence = 0.6
	FailedTestConfidence  = 0.9

	ReasonRerunFailed = "re-run previously failed test"
)

// Recommend merges the three signals into at most MaxRecommendations entries, one per
// test name, sorted by confidence descending. When a name is nominated more than once the
// higher confidence wins and keeps its reason; equal confidence keeps the first nomination.
func Recommend(failedTests []model.FailedTest, changedFiles []string, matches []model.PatternMatch) []model.RecommendedTest {
	r := newRanking()

	for _, m := range matches {
		if m.Pattern.TestName == nil || *m.Pattern.TestName == "" {
			continue
		}
		r.offer(*m.Pattern.TestName, matchReason(m), m.Similarity*PatternMatchWeight)
	}

	for _, file := range changedFiles {
		for _, name := range TestFileCandidates(file) {
			r.offer(name, "related to changed file "+file, ChangedFileConfidence)
		}
	}

	for _, t := range failedTests {
		if t.TestName == "" {
			continue
		}
		r.offer(t.TestName, ReasonRerunFailed, FailedTestConfidence)
	}

	return r.ranked(MaxRecommendations)
}

func matchReason(m model.PatternMatch) string {
	count := m.Pattern.OccurrenceCount
	if count < 1 {
		count = 1
	}
	times := "times"
	if count == 1 {
		times = "time"
	}
	return fmt.Sprintf("similar to a past failure (%.0f%% match, seen %d %s)", m.Similarity*100, count, times)
}

type ranking struct {
	entries []model.RecommendedTest
	index   map[string]int
}

func newRanking() *ranking {
	return &ranking{index: make(map[string]int)}
}

func (r *ranking) offer(name, reason string, confidence float64) {
	if i, ok := r.index[name]; ok {
		if confidence > r.entries[i].ConfidenceScore {
			r.entries[i].Reason = reason
			r.entries[i].ConfidenceScore = confidence
		}
		return
	}
	r.index[name] = len(r.entries)
	r.entries = append(r.entries, model.RecommendedTest{
		TestName:        name,
		Reason:          reason,
		ConfidenceScore: confidence,
	})
}

// ranked sorts by confidence; ties keep first-nomination order.
func (r *ranking) ranked(limit int) []model.RecommendedTest {
	out := make([]model.RecommendedTest, len(r.entries))
	copy(out, r.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
