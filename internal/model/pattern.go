package model

import "time"

// DefaultDimensions is the fingerprint length used by every store unless configured otherwise.
const DefaultDimensions = 1536

// Fingerprint is a fixed-length, unit-normalized vector derived from failure text.
type Fingerprint []float64

// FailurePattern is a stored fingerprint of a previously seen failure.
type FailurePattern struct {
	ID              int64       `json:"id"`
	Scope           string      `json:"scope"`
	Fingerprint     Fingerprint `json:"-"`
	Summary         string      `json:"summary"`
	ErrorMessage    string      `json:"error_message"`
	StackTrace      *string     `json:"stack_trace,omitempty"`
	AffectedFiles   []string    `json:"affected_files,omitempty"`
	TestName        *string     `json:"test_name,omitempty"`
	OccurrenceCount int         `json:"occurrence_count"`
	FirstSeenAt     time.Time   `json:"first_seen_at"`
	LastSeenAt      time.Time   `json:"last_seen_at"`
}

// PatternMatch is one result of a similarity query. It is never persisted.
type PatternMatch struct {
	PatternID  int64          `json:"pattern_id"`
	Similarity float64        `json:"similarity"`
	Pattern    FailurePattern `json:"pattern"`
}

// RecommendedTest is a ranked suggestion of a test to run. TestName is the dedup key.
type RecommendedTest struct {
	TestName        string  `json:"test_name"`
	Reason          string  `json:"reason"`
	ConfidenceScore float64 `json:"confidence_score"`
}
