package queue

import "basegraph.app/faultline/internal/model"

// Notification is the payload handed from the ingestion API to the notifier
// worker after a failure has been processed.
type Notification struct {
	Scope           string                  `json:"scope"`
	PatternID       int64                   `json:"pattern_id"`
	CommitSHA       string                  `json:"commit_sha"`
	Branch          string                  `json:"branch,omitempty"`
	Author          string                  `json:"author,omitempty"`
	FailedTests     []string                `json:"failed_tests"`
	Analysis        string                  `json:"analysis,omitempty"`
	Matches         []NotificationMatch     `json:"matches,omitempty"`
	Recommendations []model.RecommendedTest `json:"recommendations,omitempty"`

	// Transport metadata, carried as separate stream fields.
	TraceID string `json:"-"`
	Attempt int    `json:"-"`
}

type NotificationMatch struct {
	PatternID       int64   `json:"pattern_id"`
	Similarity      float64 `json:"similarity"`
	Summary         string  `json:"summary"`
	OccurrenceCount int     `json:"occurrence_count"`
}
