package triage

import (
	"fmt"
	"strings"

	"basegraph.app/faultline/internal/model"
)

const (
	// MaxSummaryChars bounds FailurePattern.Summary.
	MaxSummaryChars = 500

	// maxFingerprintDiffChars bounds how much of the diff feeds the fingerprint.
	maxFingerprintDiffChars = 3000
)

// fingerprintText is the text embedded for a report: each failed test with its
// error and stack, followed by the head of the diff.
func fingerprintText(tests []model.FailedTest, diff string) string {
	var b strings.Builder
	for _, t := range tests {
		fmt.Fprintf(&b, "Test: %s\nError: %s\n", t.TestName, t.ErrorMessage)
		if t.StackTrace != nil {
			fmt.Fprintf(&b, "Stack: %s\n", *t.StackTrace)
		}
	}
	if d := strings.TrimSpace(diff); d != "" {
		fmt.Fprintf(&b, "Diff:\n%s\n", truncateRunes(d, maxFingerprintDiffChars))
	}
	return b.String()
}

// summarize renders the human-readable one-liner stored with the pattern.
func summarize(tests []model.FailedTest) string {
	names := make([]string, len(tests))
	for i, t := range tests {
		names[i] = t.TestName
	}

	noun := "tests"
	if len(tests) == 1 {
		noun = "test"
	}
	s := fmt.Sprintf("%d failing %s: %s", len(tests), noun, strings.Join(names, ", "))
	if msg := firstLine(tests[0].ErrorMessage); msg != "" {
		s += " - " + msg
	}
	return truncateRunes(s, MaxSummaryChars)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
