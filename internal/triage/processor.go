// Package triage turns a CI failure report into a stored pattern, its nearest
// past failures, and a ranked list of tests to run.
package triage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/faultline/common/logger"
	"basegraph.app/faultline/internal/analysis"
	"basegraph.app/faultline/internal/diff"
	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/recommend"
	"basegraph.app/faultline/internal/store"
)

// Result is everything one Process call produced.
type Result struct {
	PatternID       int64
	Pattern         *model.FailurePattern
	Analysis        *analysis.Analysis
	FailedTests     []model.FailedTest
	Matches         []model.PatternMatch
	Recommendations []model.RecommendedTest
	ChangedFiles    []string
	Dimensions      int
}

// Processor is safe for concurrent use; it holds no per-request state.
type Processor struct {
	embedder fingerprint.Embedder
	store    store.PatternStore
	analyzer *analysis.Analyzer
	defaults store.QueryOptions
}

// NewProcessor wires the pipeline. analyzer may be nil, in which case every
// result carries the fallback analysis. A zero TopK falls back to
// store.DefaultTopK; the threshold is taken as given, so 0 matches any
// positive similarity.
func NewProcessor(embedder fingerprint.Embedder, patterns store.PatternStore, analyzer *analysis.Analyzer, defaults store.QueryOptions) (*Processor, error) {
	if embedder.Dimensions() != patterns.Dimensions() {
		return nil, fmt.Errorf("embedder produces %d dimensions but store holds %d",
			embedder.Dimensions(), patterns.Dimensions())
	}
	if defaults.TopK <= 0 {
		defaults.TopK = store.DefaultTopK
	}
	return &Processor{
		embedder: embedder,
		store:    patterns,
		analyzer: analyzer,
		defaults: defaults,
	}, nil
}

func (p *Processor) Defaults() store.QueryOptions {
	return p.defaults
}

// Process runs the pipeline with the default match options.
func (p *Processor) Process(ctx context.Context, scope string, report model.FailureReport) (*Result, error) {
	return p.ProcessWithOptions(ctx, scope, report, p.defaults)
}

// ProcessWithOptions validates the report, fingerprints it, finds similar past
// failures, ranks tests, and stores the new pattern. Insert is the only
// mutation; validation failures and cancellation before it leave the store
// untouched. Analysis runs last and never fails the call.
func (p *Processor) ProcessWithOptions(ctx context.Context, scope string, report model.FailureReport, opts store.QueryOptions) (*Result, error) {
	sc := logger.StartSpan(ctx, "triage.process")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		Scope:     logger.Ptr(scope),
		CommitSHA: logger.Ptr(report.CommitSHA),
		Component: "faultline.triage.processor",
	})
	sc.Span().SetAttributes(
		attribute.String("faultline.scope", scope),
		attribute.String("faultline.commit_sha", report.CommitSHA),
	)

	if strings.TrimSpace(scope) == "" {
		err := &ValidationError{Field: "scope", Reason: "must not be empty"}
		sc.RecordError(err)
		return nil, err
	}

	tests, err := Normalize(report)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}

	diffText := ""
	if report.Diff != nil {
		diffText = *report.Diff
	}

	fp, err := p.embedder.Embed(ctx, fingerprintText(tests, diffText))
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFingerprint, err)
		sc.RecordError(err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.TopK <= 0 {
		opts.TopK = p.defaults.TopK
	}
	matches, err := p.store.QuerySimilar(ctx, scope, fp, opts)
	if err != nil {
		sc.RecordError(err)
		return nil, fmt.Errorf("querying similar patterns: %w", err)
	}

	changed := diff.ExtractChangedFiles(diffText)
	recs := recommend.Recommend(tests, changed, matches)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pattern := newPattern(fp, tests, changed)
	id, err := p.store.Insert(ctx, scope, pattern)
	if err != nil {
		sc.RecordError(err)
		return nil, fmt.Errorf("storing pattern: %w", err)
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{PatternID: logger.Ptr(id)})
	sc.Span().SetAttributes(
		attribute.Int64("faultline.pattern_id", id),
		attribute.Int("faultline.match_count", len(matches)),
	)

	result := p.analyzer.Analyze(ctx, analysis.Input{
		CommitSHA:   report.CommitSHA,
		Branch:      report.Branch,
		FailedTests: tests,
		Logs:        deref(report.FailureLogs),
		Diff:        diffText,
		Matches:     matches,
	})

	slog.InfoContext(ctx, "failure processed",
		"failed_tests", len(tests),
		"matches", len(matches),
		"recommendations", len(recs),
		"changed_files", len(changed),
		"analysis_fallback", result.Fallback)

	return &Result{
		PatternID:       id,
		Pattern:         pattern,
		Analysis:        result,
		FailedTests:     tests,
		Matches:         matches,
		Recommendations: recs,
		ChangedFiles:    changed,
		Dimensions:      len(fp),
	}, nil
}

func newPattern(fp model.Fingerprint, tests []model.FailedTest, changed []string) *model.FailurePattern {
	first := tests[0]

	var stack *string
	for _, t := range tests {
		if t.StackTrace != nil {
			stack = t.StackTrace
			break
		}
	}

	name := first.TestName
	return &model.FailurePattern{
		Fingerprint:   fp,
		Summary:       summarize(tests),
		ErrorMessage:  first.ErrorMessage,
		StackTrace:    stack,
		AffectedFiles: changed,
		TestName:      &name,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
