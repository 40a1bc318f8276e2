// Package notify delivers processed failures to where the author will see them.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/faultline/internal/queue"
)

// Dispatcher delivers one notification. Errors are retried by the worker.
type Dispatcher interface {
	Dispatch(ctx context.Context, n queue.Notification) error
}

// CommitCommenter is the slice of the GitLab commits API the notifier needs.
type CommitCommenter interface {
	PostCommitComment(pid any, sha string, opt *gitlab.PostCommitCommentOptions, options ...gitlab.RequestOptionFunc) (*gitlab.CommitComment, *gitlab.Response, error)
}

// GitLabNotifier posts the rendered triage as a comment on the failing commit.
// The notification scope is used as the GitLab project path or ID.
type GitLabNotifier struct {
	commits CommitCommenter
}

func NewGitLabNotifier(commits CommitCommenter) *GitLabNotifier {
	return &GitLabNotifier{commits: commits}
}

// NewGitLabClient builds a client for baseURL, or gitlab.com when empty.
func NewGitLabClient(baseURL, token string) (*gitlab.Client, error) {
	if baseURL == "" {
		return gitlab.NewClient(token)
	}
	apiURL := strings.TrimSuffix(baseURL, "/")
	if !strings.HasSuffix(apiURL, "/api/v4") {
		apiURL += "/api/v4"
	}
	return gitlab.NewClient(token, gitlab.WithBaseURL(apiURL))
}

func (n *GitLabNotifier) Dispatch(ctx context.Context, msg queue.Notification) error {
	body := RenderComment(msg)

	_, _, err := n.commits.PostCommitComment(msg.Scope, msg.CommitSHA, &gitlab.PostCommitCommentOptions{
		Note: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("posting commit comment: %w", err)
	}

	slog.InfoContext(ctx, "posted commit comment",
		"project", msg.Scope,
		"commit_sha", msg.CommitSHA,
		"pattern_id", msg.PatternID)
	return nil
}

// LogNotifier only logs; used when no GitLab token is configured.
type LogNotifier struct{}

func (LogNotifier) Dispatch(ctx context.Context, msg queue.Notification) error {
	slog.InfoContext(ctx, "notification ready",
		"scope", msg.Scope,
		"commit_sha", msg.CommitSHA,
		"pattern_id", msg.PatternID,
		"recommendations", len(msg.Recommendations),
		"matches", len(msg.Matches))
	return nil
}
