package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/faultline/internal/analysis"
	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/queue"
	"basegraph.app/faultline/internal/service"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

var _ = Describe("IngestService", func() {
	var (
		ctx      context.Context
		triager  *mockTriager
		ledger   *mockLedger
		producer *mockProducer
		patterns *mockPatternStore
		svc      service.IngestService
		params   service.IngestParams
	)

	BeforeEach(func() {
		ctx = context.Background()
		triager = &mockTriager{defaults: store.QueryOptions{TopK: 5, Threshold: 0.8}}
		ledger = &mockLedger{}
		producer = &mockProducer{}
		patterns = &mockPatternStore{}
		svc = service.NewIngestService(triager, patterns, ledger, producer, nil)

		params = service.IngestParams{
			Scope: "group/web",
			Report: model.FailureReport{
				CommitSHA:   "abc123",
				Branch:      "main",
				FailedTests: []model.FailedTest{{TestName: "Auth Test", ErrorMessage: "401"}},
			},
		}

		triager.processFn = func(_ context.Context, _ string, report model.FailureReport, _ store.QueryOptions) (*triage.Result, error) {
			return &triage.Result{
				PatternID:   77,
				FailedTests: report.FailedTests,
				Analysis:    &analysis.Analysis{Text: "Summary: expired token"},
				Matches: []model.PatternMatch{
					{PatternID: 12, Similarity: 0.9, Pattern: model.FailurePattern{ID: 12, Summary: "old", OccurrenceCount: 1}},
				},
				Recommendations: []model.RecommendedTest{
					{TestName: "Auth Test", Reason: "re-run previously failed test", ConfidenceScore: 0.9},
				},
				Dimensions: 1536,
			}, nil
		}
	})

	Describe("Ingest", func() {
		It("processes, consumes one credit and enqueues a notification", func() {
			res, err := svc.Ingest(ctx, params)

			Expect(err).NotTo(HaveOccurred())
			Expect(res.PatternID).To(Equal(int64(77)))
			Expect(res.AnalysisText).To(Equal("Summary: expired token"))
			Expect(res.RemainingCredits).To(Equal(int64(9)))
			Expect(res.Enqueued).To(BeTrue())
			Expect(ledger.consumed).To(Equal(1))

			Expect(producer.sent).To(HaveLen(1))
			n := producer.sent[0]
			Expect(n.Scope).To(Equal("group/web"))
			Expect(n.PatternID).To(Equal(int64(77)))
			Expect(n.CommitSHA).To(Equal("abc123"))
			Expect(n.FailedTests).To(ConsistOf("Auth Test"))
			Expect(n.Matches).To(ConsistOf(queue.NotificationMatch{PatternID: 12, Similarity: 0.9, Summary: "old", OccurrenceCount: 1}))
		})

		It("rejects a scope without credits before processing", func() {
			ledger.balanceFn = func(context.Context, string) (int64, error) { return 0, nil }
			called := false
			triager.processFn = func(context.Context, string, model.FailureReport, store.QueryOptions) (*triage.Result, error) {
				called = true
				return nil, nil
			}

			_, err := svc.Ingest(ctx, params)

			Expect(err).To(MatchError(service.ErrInsufficientCredits))
			Expect(called).To(BeFalse())
			Expect(ledger.consumed).To(BeZero())
		})

		It("does not consume credit when processing fails", func() {
			triager.processFn = func(context.Context, string, model.FailureReport, store.QueryOptions) (*triage.Result, error) {
				return nil, &triage.ValidationError{Field: "failed_tests", Reason: "no failed tests"}
			}

			_, err := svc.Ingest(ctx, params)

			Expect(errors.Is(err, triage.ErrValidation)).To(BeTrue())
			Expect(ledger.consumed).To(BeZero())
			Expect(producer.sent).To(BeEmpty())
		})

		It("surfaces ledger read errors", func() {
			ledger.balanceFn = func(context.Context, string) (int64, error) { return 0, errors.New("redis down") }

			_, err := svc.Ingest(ctx, params)
			Expect(err).To(MatchError(ContainSubstring("checking credits")))
		})

		It("still succeeds when the last credit was spent concurrently", func() {
			ledger.consumeFn = func(context.Context, string) (int64, error) { return 0, service.ErrInsufficientCredits }

			res, err := svc.Ingest(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.PatternID).To(Equal(int64(77)))
		})

		It("swallows enqueue failures", func() {
			producer.enqueueFn = func(context.Context, queue.Notification) error { return errors.New("stream full") }

			res, err := svc.Ingest(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Enqueued).To(BeFalse())
		})

		It("passes per-call overrides over the defaults", func() {
			var got store.QueryOptions
			triager.processFn = func(_ context.Context, _ string, _ model.FailureReport, opts store.QueryOptions) (*triage.Result, error) {
				got = opts
				return &triage.Result{PatternID: 1}, nil
			}
			topK, threshold := 2, 0.5
			params.TopK = &topK
			params.Threshold = &threshold

			res, err := svc.Ingest(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(store.QueryOptions{TopK: 2, Threshold: 0.5}))
			Expect(res.AnalysisText).To(Equal(analysis.FallbackText))
		})

		It("treats a nil ledger as unlimited and skips notifications without a producer", func() {
			svc = service.NewIngestService(triager, patterns, nil, nil, nil)

			res, err := svc.Ingest(ctx, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Enqueued).To(BeFalse())
		})
	})

	Describe("GetPattern", func() {
		It("delegates to the store", func() {
			patterns.getFn = func(_ context.Context, scope string, id int64) (*model.FailurePattern, error) {
				return &model.FailurePattern{ID: id, Scope: scope}, nil
			}

			p, err := svc.GetPattern(ctx, "group/web", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.ID).To(Equal(int64(5)))
		})

		It("returns ErrNotFound for unknown ids", func() {
			_, err := svc.GetPattern(ctx, "group/web", 5)
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})
})
