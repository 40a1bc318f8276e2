package dto

import (
	"fmt"

	"basegraph.app/faultline/internal/model"
)

type FailedTest struct {
	TestName     string  `json:"test_name"`
	ErrorMessage string  `json:"error_message"`
	StackTrace   *string `json:"stack_trace,omitempty"`
}

type SubmitFailureRequest struct {
	CommitSHA   string       `json:"commit_sha"`
	Branch      string       `json:"branch"`
	Author      string       `json:"author"`
	FailedTests []FailedTest `json:"failed_tests"`
	Diff        *string      `json:"diff,omitempty"`
	FailureLogs *string      `json:"failure_logs,omitempty"`

	TopK      *int     `json:"top_k,omitempty" binding:"omitempty,min=1,max=50"`
	Threshold *float64 `json:"threshold,omitempty" binding:"omitempty,min=0,max=1"`
}

func (r SubmitFailureRequest) Report() model.FailureReport {
	report := model.FailureReport{
		CommitSHA:   r.CommitSHA,
		Branch:      r.Branch,
		Author:      r.Author,
		Diff:        r.Diff,
		FailureLogs: r.FailureLogs,
	}
	for _, t := range r.FailedTests {
		report.FailedTests = append(report.FailedTests, model.FailedTest{
			TestName:     t.TestName,
			ErrorMessage: t.ErrorMessage,
			StackTrace:   t.StackTrace,
		})
	}
	return report
}

type MatchResponse struct {
	PatternID       int64   `json:"pattern_id,string"`
	Similarity      string  `json:"similarity"`
	Summary         string  `json:"summary"`
	TestName        *string `json:"test_name,omitempty"`
	ErrorMessage    string  `json:"error_message,omitempty"`
	OccurrenceCount int     `json:"occurrence_count"`
}

type RecommendationResponse struct {
	TestName        string  `json:"test_name"`
	Reason          string  `json:"reason"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type SubmitFailureResponse struct {
	Status          string                   `json:"status"`
	PatternID       int64                    `json:"pattern_id,string"`
	Analysis        string                   `json:"analysis"`
	Matches         []MatchResponse          `json:"matches"`
	Recommendations []RecommendationResponse `json:"recommendations"`
	ChangedFiles    []string                 `json:"changed_files"`
	Dimensions      int                      `json:"dimensions"`
}

type PatternResponse struct {
	ID              int64    `json:"id,string"`
	Summary         string   `json:"summary"`
	ErrorMessage    string   `json:"error_message"`
	StackTrace      *string  `json:"stack_trace,omitempty"`
	TestName        *string  `json:"test_name,omitempty"`
	AffectedFiles   []string `json:"affected_files"`
	OccurrenceCount int      `json:"occurrence_count"`
	FirstSeenAt     string   `json:"first_seen_at"`
	LastSeenAt      string   `json:"last_seen_at"`
}

// FormatSimilarity renders a similarity in [0,1] as a percentage, e.g. "87.5%".
func FormatSimilarity(s float64) string {
	return fmt.Sprintf("%.1f%%", s*100)
}

func NewMatchResponses(matches []model.PatternMatch) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchResponse{
			PatternID:       m.PatternID,
			Similarity:      FormatSimilarity(m.Similarity),
			Summary:         m.Pattern.Summary,
			TestName:        m.Pattern.TestName,
			ErrorMessage:    m.Pattern.ErrorMessage,
			OccurrenceCount: m.Pattern.OccurrenceCount,
		})
	}
	return out
}

func NewRecommendationResponses(recs []model.RecommendedTest) []RecommendationResponse {
	out := make([]RecommendationResponse, 0, len(recs))
	for _, r := range recs {
		out = append(out, RecommendationResponse(r))
	}
	return out
}

func NewPatternResponse(p *model.FailurePattern) PatternResponse {
	files := p.AffectedFiles
	if files == nil {
		files = []string{}
	}
	return PatternResponse{
		ID:              p.ID,
		Summary:         p.Summary,
		ErrorMessage:    p.ErrorMessage,
		StackTrace:      p.StackTrace,
		TestName:        p.TestName,
		AffectedFiles:   files,
		OccurrenceCount: p.OccurrenceCount,
		FirstSeenAt:     p.FirstSeenAt.Format("2006-01-02T15:04:05Z07:00"),
		LastSeenAt:      p.LastSeenAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
