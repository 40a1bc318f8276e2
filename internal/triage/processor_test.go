package triage_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/faultline/internal/analysis"
	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/recommend"
	"basegraph.app/faultline/internal/store"
	"basegraph.app/faultline/internal/triage"
)

type failingStore struct {
	*store.MemoryPatternStore
	queryErr  error
	insertErr error
}

func (s *failingStore) QuerySimilar(ctx context.Context, scope string, fp model.Fingerprint, opts store.QueryOptions) ([]model.PatternMatch, error) {
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.MemoryPatternStore.QuerySimilar(ctx, scope, fp, opts)
}

func (s *failingStore) Insert(ctx context.Context, scope string, p *model.FailurePattern) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	return s.MemoryPatternStore.Insert(ctx, scope, p)
}

var _ = Describe("Processor", func() {
	var (
		ctx       context.Context
		patterns  *store.MemoryPatternStore
		processor *triage.Processor
	)

	authReport := func() model.FailureReport {
		return model.FailureReport{
			CommitSHA:   "abc123",
			Branch:      "main",
			Author:      "dev@example.com",
			FailedTests: []model.FailedTest{{TestName: "Auth Test", ErrorMessage: "401"}},
		}
	}

	BeforeEach(func() {
		ctx = context.Background()
		patterns = store.NewMemoryPatternStore(model.DefaultDimensions)
		var err error
		processor, err = triage.NewProcessor(
			fingerprint.NewHashEmbedder(model.DefaultDimensions),
			patterns,
			nil,
			store.QueryOptions{TopK: 5, Threshold: 0.8},
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("stores a new pattern and recommends re-running the failed test", func() {
		res, err := processor.Process(ctx, "web", authReport())

		Expect(err).NotTo(HaveOccurred())
		Expect(res.PatternID).NotTo(BeZero())
		Expect(res.Pattern.OccurrenceCount).To(Equal(1))
		Expect(res.Matches).To(BeEmpty())
		Expect(res.Dimensions).To(Equal(1536))
		Expect(res.Recommendations).To(ContainElement(model.RecommendedTest{
			TestName:        "Auth Test",
			Reason:          "re-run previously failed test",
			ConfidenceScore: 0.9,
		}))
		Expect(res.Analysis.Text).To(Equal(analysis.FallbackText))

		stored, err := patterns.Get(ctx, "web", res.PatternID)
		Expect(err).NotTo(HaveOccurred())
		Expect(*stored.TestName).To(Equal("Auth Test"))
		Expect(stored.ErrorMessage).To(Equal("401"))
		Expect(stored.Summary).To(Equal("1 failing test: Auth Test - 401"))
	})

	It("matches the second identical report against the first", func() {
		first, err := processor.Process(ctx, "web", authReport())
		Expect(err).NotTo(HaveOccurred())

		second, err := processor.Process(ctx, "web", authReport())
		Expect(err).NotTo(HaveOccurred())

		Expect(second.PatternID).NotTo(Equal(first.PatternID))
		Expect(second.Matches).To(HaveLen(1))
		Expect(second.Matches[0].PatternID).To(Equal(first.PatternID))
		Expect(second.Matches[0].Similarity).To(BeNumerically("~", 1.0, 1e-9))
		Expect(second.Recommendations[0].TestName).To(Equal("Auth Test"))
		Expect(second.Recommendations[0].ConfidenceScore).To(Equal(recommend.FailedTestConfidence))
		Expect(patterns.Count(ctx, "web")).To(Equal(2))
	})

	It("derives changed files and related tests from the diff", func() {
		report := authReport()
		d := "diff --git a/src/auth.ts b/src/auth.ts\n--- a/src/auth.ts\n+++ b/src/auth.ts\n@@ -1 +1 @@\n-a\n+b\n"
		report.Diff = &d

		res, err := processor.Process(ctx, "web", report)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.ChangedFiles).To(Equal([]string{"src/auth.ts"}))
		Expect(res.Pattern.AffectedFiles).To(Equal([]string{"src/auth.ts"}))
		Expect(res.Recommendations[0].TestName).To(Equal("Auth Test"))
		Expect(res.Recommendations).To(ContainElement(model.RecommendedTest{
			TestName:        "src/auth.test.ts",
			Reason:          "related to changed file src/auth.ts",
			ConfidenceScore: 0.6,
		}))
	})

	It("parses failed tests from logs when none are supplied", func() {
		logs := "--- FAIL: TestCheckout (0.01s)\n    checkout_test.go:9: nil cart"
		res, err := processor.Process(ctx, "web", model.FailureReport{CommitSHA: "def", FailureLogs: &logs})

		Expect(err).NotTo(HaveOccurred())
		Expect(res.FailedTests).To(HaveLen(1))
		Expect(res.FailedTests[0].ErrorMessage).To(Equal("checkout_test.go:9: nil cart"))
		Expect(*res.Pattern.TestName).To(Equal("TestCheckout"))
	})

	It("rejects an unresolvable report without touching the store", func() {
		noise := "everything passed"
		_, err := processor.Process(ctx, "web", model.FailureReport{CommitSHA: "abc", FailureLogs: &noise})

		Expect(errors.Is(err, triage.ErrValidation)).To(BeTrue())
		Expect(patterns.Count(ctx, "web")).To(Equal(0))
	})

	It("rejects an empty scope", func() {
		_, err := processor.Process(ctx, "  ", authReport())
		Expect(errors.Is(err, triage.ErrValidation)).To(BeTrue())
	})

	It("abandons a cancelled request before inserting", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := processor.Process(cancelled, "web", authReport())

		Expect(err).To(HaveOccurred())
		Expect(patterns.Count(ctx, "web")).To(Equal(0))
	})

	It("honours per-call match options", func() {
		for i := 0; i < 4; i++ {
			_, err := processor.Process(ctx, "web", authReport())
			Expect(err).NotTo(HaveOccurred())
		}

		res, err := processor.ProcessWithOptions(ctx, "web", authReport(), store.QueryOptions{TopK: 2, Threshold: 0.5})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Matches).To(HaveLen(2))
	})

	Context("when the store fails", func() {
		var fs *failingStore

		BeforeEach(func() {
			fs = &failingStore{MemoryPatternStore: patterns}
			var err error
			processor, err = triage.NewProcessor(fingerprint.NewHashEmbedder(model.DefaultDimensions), fs, nil, store.QueryOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("surfaces a query failure as a storage error", func() {
			fs.queryErr = &store.StorageError{Op: "query_similar", Err: context.DeadlineExceeded}

			_, err := processor.Process(ctx, "web", authReport())

			Expect(errors.Is(err, store.ErrStorage)).To(BeTrue())
			Expect(patterns.Count(ctx, "web")).To(Equal(0))
		})

		It("surfaces an insert failure as a storage error", func() {
			fs.insertErr = &store.StorageError{Op: "insert", Err: errors.New("connection refused")}

			_, err := processor.Process(ctx, "web", authReport())

			Expect(errors.Is(err, store.ErrStorage)).To(BeTrue())
		})
	})

	It("keeps a zero default threshold instead of replacing it", func() {
		loose, err := triage.NewProcessor(fingerprint.NewHashEmbedder(model.DefaultDimensions), patterns, nil, store.QueryOptions{TopK: 5, Threshold: 0})
		Expect(err).NotTo(HaveOccurred())
		Expect(loose.Defaults().Threshold).To(BeZero())

		_, err = loose.Process(ctx, "web", authReport())
		Expect(err).NotTo(HaveOccurred())

		other := model.FailureReport{
			CommitSHA:   "def456",
			FailedTests: []model.FailedTest{{TestName: "Billing Export", ErrorMessage: "timeout writing csv"}},
		}
		res, err := loose.Process(ctx, "web", other)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Matches).To(HaveLen(1))
		Expect(res.Matches[0].Similarity).To(BeNumerically("<", store.DefaultThreshold))
	})

	It("refuses an embedder whose dimensions differ from the store", func() {
		_, err := triage.NewProcessor(fingerprint.NewHashEmbedder(64), patterns, nil, store.QueryOptions{})
		Expect(err).To(MatchError(ContainSubstring("dimensions")))
	})

	It("keeps the summary bounded", func() {
		report := authReport()
		report.FailedTests[0].ErrorMessage = strings.Repeat("x", 2000)

		res, err := processor.Process(ctx, "web", report)

		Expect(err).NotTo(HaveOccurred())
		Expect(len([]rune(res.Pattern.Summary))).To(BeNumerically("<=", triage.MaxSummaryChars))
	})
})
