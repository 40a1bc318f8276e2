// Package service holds the use cases behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/internal/analysis"
	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/queue"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

// Triager is the part of triage.Processor the ingest service uses.
type Triager interface {
	ProcessWithOptions(ctx context.Context, scope string, report model.FailureReport, opts store.QueryOptions) (*triage.Result, error)
	Defaults() store.QueryOptions
}

type IngestParams struct {
	Scope     string
	Report    model.FailureReport
	TopK      *int
	Threshold *float64
}

type IngestResult struct {
	*triage.Result
	AnalysisText     string
	RemainingCredits int64
	Enqueued         bool
}

type IngestService interface {
	Ingest(ctx context.Context, params IngestParams) (*IngestResult, error)
	GetPattern(ctx context.Context, scope string, id int64) (*model.FailurePattern, error)
}

type ingestService struct {
	triager  Triager
	patterns store.PatternStore
	credits  CreditLedger
	producer queue.Producer
	logger   *slog.Logger
}

// NewIngestService wires the ingest use case. credits nil means unlimited and
// producer nil disables notifications.
func NewIngestService(triager Triager, patterns store.PatternStore, credits CreditLedger, producer queue.Producer, logger *slog.Logger) IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	if credits == nil {
		credits = UnlimitedLedger{}
	}
	return &ingestService{
		triager:  triager,
		patterns: patterns,
		credits:  credits,
		producer: producer,
		logger:   logger,
	}
}

func (s *ingestService) Ingest(ctx context.Context, params IngestParams) (*IngestResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Scope:     &params.Scope,
		CommitSHA: &params.Report.CommitSHA,
		Component: "faultline.service.ingest",
	})

	balance, err := s.credits.Balance(ctx, params.Scope)
	if err != nil {
		return nil, fmt.Errorf("checking credits: %w", err)
	}
	if balance <= 0 {
		return nil, ErrInsufficientCredits
	}

	opts := s.triager.Defaults()
	if params.TopK != nil {
		opts.TopK = *params.TopK
	}
	if params.Threshold != nil {
		opts.Threshold = *params.Threshold
	}

	res, err := s.triager.ProcessWithOptions(ctx, params.Scope, params.Report, opts)
	if err != nil {
		return nil, err
	}

	out := &IngestResult{Result: res, AnalysisText: analysis.FallbackText}
	if res.Analysis != nil {
		out.AnalysisText = res.Analysis.Text
	}

	remaining, err := s.credits.Consume(ctx, params.Scope)
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		// A concurrent request spent the last credit; this one is already stored.
		s.logger.WarnContext(ctx, "credit balance exhausted during processing", "pattern_id", res.PatternID)
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to consume credit", "error", err, "pattern_id", res.PatternID)
	default:
		out.RemainingCredits = remaining
	}

	out.Enqueued = s.enqueue(ctx, params, out)

	s.logger.InfoContext(ctx, "failure ingested",
		"pattern_id", res.PatternID,
		"matches", len(res.Matches),
		"recommendations", len(res.Recommendations),
		"enqueued", out.Enqueued)

	return out, nil
}

// enqueue publishes the notification; failures never reach the caller.
func (s *ingestService) enqueue(ctx context.Context, params IngestParams, out *IngestResult) bool {
	if s.producer == nil || params.Report.CommitSHA == "" {
		return false
	}

	n := queue.Notification{
		Scope:           params.Scope,
		PatternID:       out.PatternID,
		CommitSHA:       params.Report.CommitSHA,
		Branch:          params.Report.Branch,
		Author:          params.Report.Author,
		Analysis:        out.AnalysisText,
		Recommendations: out.Recommendations,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		n.TraceID = sc.TraceID().String()
	}
	for _, t := range out.FailedTests {
		n.FailedTests = append(n.FailedTests, t.TestName)
	}
	for _, m := range out.Matches {
		n.Matches = append(n.Matches, queue.NotificationMatch{
			PatternID:       m.PatternID,
			Similarity:      m.Similarity,
			Summary:         m.Pattern.Summary,
			OccurrenceCount: m.Pattern.OccurrenceCount,
		})
	}

	if err := s.producer.Enqueue(ctx, n); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue notification", "error", err, "pattern_id", out.PatternID)
		return false
	}
	return true
}

func (s *ingestService) GetPattern(ctx context.Context, scope string, id int64) (*model.FailurePattern, error) {
	return s.patterns.Get(ctx, scope, id)
}
