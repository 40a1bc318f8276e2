package notify

import (
	"fmt"
	"strings"

	"basegraph.app/faultline/internal/queue"
)

// maxCommentRecommendations keeps comments short; the API response has the full list.
const maxCommentRecommendations = 5

// RenderComment formats a notification as a GitLab-flavoured markdown comment.
func RenderComment(n queue.Notification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "### CI failure triage for `%s`\n\n", shortSHA(n.CommitSHA))
	if len(n.FailedTests) > 0 {
		b.WriteString("**Failing tests**\n\n")
		for _, t := range n.FailedTests {
			fmt.Fprintf(&b, "- `%s`\n", t)
		}
		b.WriteString("\n")
	}

	if n.Analysis != "" {
		fmt.Fprintf(&b, "**Analysis**\n\n%s\n\n", n.Analysis)
	}

	if len(n.Matches) > 0 {
		b.WriteString("**Similar past failures**\n\n")
		b.WriteString("| Similarity | Seen | Summary |\n|---|---|---|\n")
		for _, m := range n.Matches {
			fmt.Fprintf(&b, "| %.1f%% | %d | %s |\n", m.Similarity*100, m.OccurrenceCount, escapeCell(m.Summary))
		}
		b.WriteString("\n")
	} else {
		b.WriteString("_No similar past failures found._\n\n")
	}

	if len(n.Recommendations) > 0 {
		b.WriteString("**Recommended tests**\n\n")
		for i, r := range n.Recommendations {
			if i == maxCommentRecommendations {
				fmt.Fprintf(&b, "- ...and %d more\n", len(n.Recommendations)-i)
				break
			}
			fmt.Fprintf(&b, "- `%s` (%.0f%%): %s\n", r.TestName, r.ConfidenceScore*100, r.Reason)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
