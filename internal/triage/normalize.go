package triage

import (
	"regexp"
	"strings"

	"basegraph.app/faultline/internal/model"
)

// MaxParsedTests bounds how many failures are lifted out of free-text logs.
const MaxParsedTests = 50

// maxContinuationLines bounds the message collected under a failure header.
const maxContinuationLines = 20

var (
	goFailRe     = regexp.MustCompile(`^\s*--- FAIL: (\S+)(?: \([0-9.]+s\))?\s*$`)
	jestCrossRe  = regexp.MustCompile(`^\s*[✕×]\s+(.+?)(?:\s+\(\d+(?:\.\d+)?\s*m?s\))?\s*$`)
	jestBulletRe = regexp.MustCompile(`^\s*●\s+(.+?)\s*$`)
	pytestRe     = regexp.MustCompile(`^FAILED\s+(\S+)(?:\s+-\s+(.*?))?\s*$`)
	genericRe    = regexp.MustCompile(`^\s*FAIL(?:ED)?[:\s]\s*(\S.*?)\s*$`)
	goPkgFailRe  = regexp.MustCompile(`^FAIL\s+\S+\s+[0-9.]+s$`)
)

// Normalize resolves a report into one canonical list of failed tests.
// Explicit tests win; otherwise the failure logs are parsed.
func Normalize(report model.FailureReport) ([]model.FailedTest, error) {
	tests := make([]model.FailedTest, 0, len(report.FailedTests))
	for _, t := range report.FailedTests {
		name := strings.TrimSpace(t.TestName)
		if name == "" {
			continue
		}
		tests = append(tests, model.FailedTest{
			TestName:     name,
			ErrorMessage: strings.TrimSpace(t.ErrorMessage),
			StackTrace:   nonEmpty(t.StackTrace),
		})
	}
	if len(tests) > 0 {
		return tests, nil
	}

	if report.FailureLogs != nil {
		if parsed := ParseFailureLogs(*report.FailureLogs); len(parsed) > 0 {
			return parsed, nil
		}
	}

	return nil, &ValidationError{
		Field:  "failed_tests",
		Reason: "no failed tests supplied and none could be parsed from failure_logs",
	}
}

// ParseFailureLogs extracts failed tests from Go, Jest and pytest output. Lines
// of the form "FAIL name" are used only when no runner-specific format matched.
func ParseFailureLogs(logs string) []model.FailedTest {
	lines := strings.Split(strings.ReplaceAll(logs, "\r\n", "\n"), "\n")

	var (
		found   []model.FailedTest
		generic []model.FailedTest
		crosses []model.FailedTest
	)

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := goFailRe.FindStringSubmatch(line); m != nil {
			found = append(found, withContinuation(m[1], lines, i+1, isGoBoundary))
			continue
		}
		if m := jestBulletRe.FindStringSubmatch(line); m != nil {
			found = append(found, withContinuation(m[1], lines, i+1, isJestBoundary))
			continue
		}
		if m := jestCrossRe.FindStringSubmatch(line); m != nil {
			crosses = append(crosses, model.FailedTest{TestName: m[1]})
			continue
		}
		if m := pytestRe.FindStringSubmatch(line); m != nil {
			found = append(found, model.FailedTest{TestName: m[1], ErrorMessage: m[2]})
			continue
		}
		if goPkgFailRe.MatchString(strings.TrimSpace(line)) {
			continue
		}
		if m := genericRe.FindStringSubmatch(line); m != nil {
			generic = append(generic, model.FailedTest{TestName: m[1]})
		}
	}

	// Jest prints "✕ name" in the summary and "● Suite › name" with the error;
	// keep the detailed entry when both are present.
	for _, c := range crosses {
		if !coveredByBullet(c.TestName, found) {
			found = append(found, c)
		}
	}

	if len(found) == 0 {
		found = generic
	}
	return dedupTests(found)
}

func withContinuation(name string, lines []string, start int, boundary func(string) bool) model.FailedTest {
	var body []string
	for j := start; j < len(lines) && len(body) < maxContinuationLines; j++ {
		if boundary(lines[j]) {
			break
		}
		if trimmed := strings.TrimSpace(lines[j]); trimmed != "" {
			body = append(body, trimmed)
		}
	}

	t := model.FailedTest{TestName: name}
	if len(body) > 0 {
		t.ErrorMessage = body[0]
	}
	if len(body) > 1 {
		stack := strings.Join(body[1:], "\n")
		t.StackTrace = &stack
	}
	return t
}

func isGoBoundary(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "--- ") || strings.HasPrefix(t, "=== ") ||
		t == "FAIL" || t == "PASS" || strings.HasPrefix(t, "FAIL\t") || strings.HasPrefix(t, "ok ")
}

func isJestBoundary(line string) bool {
	t := strings.TrimSpace(line)
	return jestBulletRe.MatchString(line) || strings.HasPrefix(t, "Test Suites:") ||
		strings.HasPrefix(t, "Tests:") || strings.HasPrefix(t, "FAIL ") || strings.HasPrefix(t, "PASS ")
}

func coveredByBullet(name string, tests []model.FailedTest) bool {
	for _, t := range tests {
		if t.TestName == name || strings.HasSuffix(t.TestName, " › "+name) {
			return true
		}
	}
	return false
}

func dedupTests(tests []model.FailedTest) []model.FailedTest {
	seen := make(map[string]struct{}, len(tests))
	out := make([]model.FailedTest, 0, len(tests))
	for _, t := range tests {
		t.TestName = strings.TrimSpace(t.TestName)
		if t.TestName == "" {
			continue
		}
		if _, ok := seen[t.TestName]; ok {
			continue
		}
		seen[t.TestName] = struct{}{}
		out = append(out, t)
		if len(out) == MaxParsedTests {
			break
		}
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
