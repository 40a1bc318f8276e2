// Package analysis asks an LLM for a root-cause explanation of a CI failure.
// It never fails the caller: provider errors are retried a bounded number of
// times and then replaced by FallbackText.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/faultline/common/llm"
	"basegraph.app/faultline/internal/model"
)

// FallbackText is returned whenever no analysis could be produced.
const FallbackText = "AI analysis unavailable"

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultMaxLogChars    = 4000
	DefaultMaxDiffChars   = 3000
	DefaultMaxTokens      = 1500
)

var ErrProvider = errors.New("analysis provider error")

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxLogChars    int
	MaxDiffChars   int
	MaxTokens      int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
	if c.MaxLogChars <= 0 {
		c.MaxLogChars = DefaultMaxLogChars
	}
	if c.MaxDiffChars <= 0 {
		c.MaxDiffChars = DefaultMaxDiffChars
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	return c
}

// Input is everything the provider sees about one failure.
type Input struct {
	CommitSHA   string
	Branch      string
	FailedTests []model.FailedTest
	Logs        string
	Diff        string
	Matches     []model.PatternMatch
}

// Analysis is the rendered provider answer. When Fallback is set, Text is
// FallbackText and Err carries the last provider error.
type Analysis struct {
	Text         string
	Summary      string
	RootCause    string
	SuggestedFix string
	Confidence   string
	Attempts     int
	Fallback     bool
	Err          error
}

type response struct {
	Summary      string `json:"summary" jsonschema:"description=One sentence describing the failure"`
	RootCause    string `json:"root_cause" jsonschema:"description=Most likely root cause"`
	SuggestedFix string `json:"suggested_fix" jsonschema:"description=Concrete next step for the author"`
	Confidence   string `json:"confidence" jsonschema:"enum=low,enum=medium,enum=high"`
}

var responseSchema = llm.GenerateSchema[response]()

type Analyzer struct {
	client llm.Client
	cfg    Config
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(client llm.Client, cfg Config) *Analyzer {
	return &Analyzer{
		client: client,
		cfg:    cfg.withDefaults(),
		sleep:  sleepContext,
	}
}

// Analyze returns the provider's explanation or a fallback. A nil Analyzer
// always falls back.
func (a *Analyzer) Analyze(ctx context.Context, in Input) *Analysis {
	if a == nil || a.client == nil {
		return fallback(0, fmt.Errorf("%w: no provider configured", ErrProvider))
	}

	req := llm.Request{
		SystemPrompt: systemPrompt,
		UserPrompt:   a.buildPrompt(in),
		SchemaName:   "failure_analysis",
		Schema:       responseSchema,
		MaxTokens:    a.cfg.MaxTokens,
		Temperature:  llm.Temp(0.2),
	}

	backoff := a.cfg.InitialBackoff
	attempts := 0
	var lastErr error
	for attempt := 1; attempt <= a.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		var resp response
		_, err := a.client.Chat(ctx, req, &resp)
		if err == nil {
			return render(resp, attempt)
		}
		lastErr = err

		if !llm.IsRetryable(ctx, err) || attempt == a.cfg.MaxAttempts {
			break
		}

		slog.WarnContext(ctx, "analysis attempt failed, backing off",
			"attempt", attempt,
			"backoff_ms", backoff.Milliseconds(),
			"error", err)

		if err := a.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
	}

	result := fallback(attempts, fmt.Errorf("%w: %v", ErrProvider, lastErr))
	slog.WarnContext(ctx, "analysis unavailable, using fallback", "error", result.Err)
	return result
}

func (a *Analyzer) buildPrompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Commit: %s\nBranch: %s\n\n", orUnknown(in.CommitSHA), orUnknown(in.Branch))

	b.WriteString("Failed tests:\n")
	for _, t := range in.FailedTests {
		fmt.Fprintf(&b, "- %s: %s\n", t.TestName, t.ErrorMessage)
	}

	logs := in.Logs
	if strings.TrimSpace(logs) == "" {
		logs = testLogs(in.FailedTests)
	}
	fmt.Fprintf(&b, "\nFailure logs:\n%s\n", Truncate(logs, a.cfg.MaxLogChars))

	if strings.TrimSpace(in.Diff) != "" {
		fmt.Fprintf(&b, "\nDiff:\n%s\n", Truncate(in.Diff, a.cfg.MaxDiffChars))
	}

	if len(in.Matches) > 0 {
		b.WriteString("\nSimilar past failures:\n")
		for _, m := range in.Matches {
			fmt.Fprintf(&b, "- %.1f%% similar: %s\n", m.Similarity*100, m.Pattern.Summary)
		}
	}

	return b.String()
}

func testLogs(tests []model.FailedTest) string {
	var b strings.Builder
	for _, t := range tests {
		fmt.Fprintf(&b, "%s\n%s\n", t.TestName, t.ErrorMessage)
		if t.StackTrace != nil {
			fmt.Fprintf(&b, "%s\n", *t.StackTrace)
		}
	}
	return b.String()
}

func render(resp response, attempts int) *Analysis {
	var b strings.Builder
	if resp.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", resp.Summary)
	}
	if resp.RootCause != "" {
		fmt.Fprintf(&b, "Root cause: %s\n", resp.RootCause)
	}
	if resp.SuggestedFix != "" {
		fmt.Fprintf(&b, "Suggested fix: %s\n", resp.SuggestedFix)
	}
	if resp.Confidence != "" {
		fmt.Fprintf(&b, "Confidence: %s\n", resp.Confidence)
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return fallback(attempts, fmt.Errorf("%w: empty analysis", ErrProvider))
	}

	return &Analysis{
		Text:         text,
		Summary:      resp.Summary,
		RootCause:    resp.RootCause,
		SuggestedFix: resp.SuggestedFix,
		Confidence:   resp.Confidence,
		Attempts:     attempts,
	}
}

func fallback(attempts int, err error) *Analysis {
	return &Analysis{Text: FallbackText, Attempts: attempts, Fallback: true, Err: err}
}

// Truncate keeps the first max characters of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const systemPrompt = `You are a CI failure triage assistant. Given failing tests, their logs,
the change under test and similar past failures, explain the most likely root cause
and the next concrete step for the author. Be brief and specific. If the evidence is
thin, say so and lower your confidence.`
