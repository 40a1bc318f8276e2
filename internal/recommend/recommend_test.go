package recommend_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/recommend"
)

func match(testName string, similarity float64, occurrences int) model.PatternMatch {
	p := model.FailurePattern{ID: 1, OccurrenceCount: occurrences}
	if testName != "" {
		p.TestName = &testName
	}
	return model.PatternMatch{PatternID: p.ID, Similarity: similarity, Pattern: p}
}

func names(recs []model.RecommendedTest) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.TestName
	}
	return out
}

var _ = Describe("Recommend", func() {
	It("gives a failing test with no other signal a confidence of exactly 0.9", func() {
		recs := recommend.Recommend([]model.FailedTest{{TestName: "T1", ErrorMessage: "boom"}}, nil, nil)

		Expect(recs).To(ConsistOf(model.RecommendedTest{
			TestName:        "T1",
			Reason:          "re-run previously failed test",
			ConfidenceScore: 0.9,
		}))
	})

	It("scales pattern-match confidence by similarity", func() {
		recs := recommend.Recommend(nil, nil, []model.PatternMatch{match("LoginSpec", 0.95, 3)})

		Expect(recs).To(HaveLen(1))
		Expect(recs[0].TestName).To(Equal("LoginSpec"))
		Expect(recs[0].ConfidenceScore).To(BeNumerically("~", 0.76, 1e-9))
		Expect(recs[0].Reason).To(Equal("similar to a past failure (95% match, seen 3 times)"))
	})

	It("skips matches without an originating test", func() {
		recs := recommend.Recommend(nil, nil, []model.PatternMatch{match("", 0.99, 1)})
		Expect(recs).To(BeEmpty())
	})

	It("nominates conventional test files for changed sources", func() {
		recs := recommend.Recommend(nil, []string{"src/auth/login.ts"}, nil)

		Expect(names(recs)).To(Equal([]string{
			"src/auth/login.test.ts",
			"src/auth/login.spec.ts",
			"src/auth/__tests__/login.test.ts",
			"tests/src/auth/login.test.ts",
		}))
		for _, r := range recs {
			Expect(r.ConfidenceScore).To(Equal(0.6))
			Expect(r.Reason).To(Equal("related to changed file src/auth/login.ts"))
		}
	})

	It("keeps the first reason when two changed files nominate the same test", func() {
		recs := recommend.Recommend(nil, []string{"src/a.test.ts", "src/a.ts"}, nil)

		Expect(recs[0].TestName).To(Equal("src/a.test.ts"))
		Expect(recs[0].Reason).To(Equal("related to changed file src/a.test.ts"))
	})

	It("lets a stronger signal replace a weaker one for the same test", func() {
		recs := recommend.Recommend(
			[]model.FailedTest{{TestName: "Auth Test"}},
			nil,
			[]model.PatternMatch{match("Auth Test", 0.8, 2)},
		)

		Expect(recs).To(HaveLen(1))
		Expect(recs[0].ConfidenceScore).To(Equal(0.9))
		Expect(recs[0].Reason).To(Equal(recommend.ReasonRerunFailed))
	})

	It("prefers the failing-test tier over a perfect pattern match", func() {
		recs := recommend.Recommend(
			[]model.FailedTest{{TestName: "Auth Test"}},
			nil,
			[]model.PatternMatch{match("Auth Test", 1.0, 1)},
		)

		Expect(recs).To(HaveLen(1))
		Expect(recs[0].ConfidenceScore).To(Equal(0.9))
		Expect(recs[0].Reason).To(Equal(recommend.ReasonRerunFailed))
	})

	It("orders tiers by confidence", func() {
		recs := recommend.Recommend(
			[]model.FailedTest{{TestName: "failing"}},
			[]string{"lib/x.go"},
			[]model.PatternMatch{match("similar", 0.9, 1)},
		)

		Expect(names(recs)).To(Equal([]string{"failing", "similar", "lib/x_test.go"}))
	})

	It("caps the result at 10 entries with unique names", func() {
		var failed []model.FailedTest
		for i := 0; i < 8; i++ {
			failed = append(failed, model.FailedTest{TestName: fmt.Sprintf("T%d", i)})
		}
		failed = append(failed, model.FailedTest{TestName: "T0"})
		files := []string{"a.ts", "b.ts", "c.ts"}
		var matches []model.PatternMatch
		for i := 0; i < 5; i++ {
			matches = append(matches, match(fmt.Sprintf("M%d", i), 0.9, 1))
		}

		recs := recommend.Recommend(failed, files, matches)

		Expect(recs).To(HaveLen(recommend.MaxRecommendations))
		seen := map[string]bool{}
		for i, r := range recs {
			Expect(seen[r.TestName]).To(BeFalse(), "duplicate %s", r.TestName)
			seen[r.TestName] = true
			if i > 0 {
				Expect(r.ConfidenceScore).To(BeNumerically("<=", recs[i-1].ConfidenceScore))
			}
		}
	})

	It("returns an empty list with no signals", func() {
		Expect(recommend.Recommend(nil, nil, nil)).To(BeEmpty())
	})
})

var _ = Describe("TestFileCandidates", func() {
	DescribeTable("derives names per language",
		func(file string, want []string) {
			Expect(recommend.TestFileCandidates(file)).To(Equal(want))
		},
		Entry("go source", "internal/store/pattern.go", []string{"internal/store/pattern_test.go"}),
		Entry("python source", "app/models.py", []string{"app/test_models.py", "app/models_test.py", "tests/app/test_models.py"}),
		Entry("root level ts", "index.ts", []string{"index.test.ts", "index.spec.ts", "__tests__/index.test.ts", "tests/index.test.ts"}),
		Entry("existing test nominates itself", "src/x.spec.ts", []string{"src/x.spec.ts"}),
		Entry("go test nominates itself", "pkg/a_test.go", []string{"pkg/a_test.go"}),
		Entry("no extension", "Makefile", []string(nil)),
		Entry("windows separators", "src\\util.js", []string{"src/util.test.js", "src/util.spec.js", "src/__tests__/util.test.js", "tests/src/util.test.js"}),
	)
})
