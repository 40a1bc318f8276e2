package notify_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/faultline/internal/model"
	"basegraph.app/faultline/internal/notify"
	"basegraph.app/faultline/internal/queue"
)

type mockCommitCommenter struct {
	postFn func(pid any, sha string, opt *gitlab.PostCommitCommentOptions) error
	pid    any
	sha    string
	note   string
}

func (m *mockCommitCommenter) PostCommitComment(pid any, sha string, opt *gitlab.PostCommitCommentOptions, _ ...gitlab.RequestOptionFunc) (*gitlab.CommitComment, *gitlab.Response, error) {
	m.pid = pid
	m.sha = sha
	if opt != nil && opt.Note != nil {
		m.note = *opt.Note
	}
	if m.postFn != nil {
		return nil, nil, m.postFn(pid, sha, opt)
	}
	return &gitlab.CommitComment{}, nil, nil
}

func sampleNotification() queue.Notification {
	return queue.Notification{
		Scope:       "group/web",
		PatternID:   42,
		CommitSHA:   "0123456789abcdef",
		FailedTests: []string{"Auth Test"},
		Analysis:    "Summary: token expired",
		Matches: []queue.NotificationMatch{
			{PatternID: 7, Similarity: 0.875, Summary: "1 failing test: Auth Test | 401", OccurrenceCount: 1},
		},
		Recommendations: []model.RecommendedTest{
			{TestName: "Auth Test", Reason: "re-run previously failed test", ConfidenceScore: 0.9},
		},
	}
}

var _ = Describe("RenderComment", func() {
	It("renders tests, analysis, matches and recommendations", func() {
		out := notify.RenderComment(sampleNotification())

		Expect(out).To(ContainSubstring("CI failure triage for `01234567`"))
		Expect(out).To(ContainSubstring("- `Auth Test`"))
		Expect(out).To(ContainSubstring("Summary: token expired"))
		Expect(out).To(ContainSubstring(`| 87.5% | 1 | 1 failing test: Auth Test \| 401 |`))
		Expect(out).To(ContainSubstring("- `Auth Test` (90%): re-run previously failed test"))
	})

	It("says so when nothing similar was found", func() {
		n := sampleNotification()
		n.Matches = nil

		Expect(notify.RenderComment(n)).To(ContainSubstring("No similar past failures found"))
	})

	It("caps the recommendation list", func() {
		n := sampleNotification()
		n.Recommendations = nil
		for i := 0; i < 8; i++ {
			n.Recommendations = append(n.Recommendations, model.RecommendedTest{TestName: fmt.Sprintf("T%d", i), ConfidenceScore: 0.6})
		}

		out := notify.RenderComment(n)
		Expect(out).To(ContainSubstring("`T4`"))
		Expect(out).NotTo(ContainSubstring("`T5`"))
		Expect(out).To(ContainSubstring("...and 3 more"))
	})
})

var _ = Describe("GitLabNotifier", func() {
	It("comments on the failing commit of the scope's project", func() {
		commits := &mockCommitCommenter{}
		err := notify.NewGitLabNotifier(commits).Dispatch(context.Background(), sampleNotification())

		Expect(err).NotTo(HaveOccurred())
		Expect(commits.pid).To(Equal("group/web"))
		Expect(commits.sha).To(Equal("0123456789abcdef"))
		Expect(commits.note).To(ContainSubstring("Recommended tests"))
	})

	It("returns API failures for the worker to retry", func() {
		commits := &mockCommitCommenter{postFn: func(any, string, *gitlab.PostCommitCommentOptions) error {
			return errors.New("502 bad gateway")
		}}

		err := notify.NewGitLabNotifier(commits).Dispatch(context.Background(), sampleNotification())
		Expect(err).To(MatchError(ContainSubstring("posting commit comment")))
	})
})

var _ = Describe("NewGitLabClient", func() {
	It("appends the API path to a self-hosted base URL", func() {
		c, err := notify.NewGitLabClient("https://gitlab.example.com/", "token")

		Expect(err).NotTo(HaveOccurred())
		Expect(c.BaseURL().String()).To(Equal("https://gitlab.example.com/api/v4/"))
	})
})
