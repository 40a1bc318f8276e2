package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are attached to every record logged with the enriched context.
type LogFields struct {
	Scope     *string // project the failure belongs to
	PatternID *int64
	CommitSHA *string
	MessageID *string // Redis stream message ID
	Component string  // e.g. "faultline.triage.processor"
}

// WithLogFields merges fields into ctx. Newer non-empty values win.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	return context.WithValue(ctx, logFieldsKey, mergeFields(GetLogFields(ctx), fields))
}

// GetLogFields returns the fields carried by ctx, or the zero value.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.Scope != nil {
		result.Scope = next.Scope
	}
	if next.PatternID != nil {
		result.PatternID = next.PatternID
	}
	if next.CommitSHA != nil {
		result.CommitSHA = next.CommitSHA
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr returns a pointer to v, for inline LogFields literals.
func Ptr[T any](v T) *T {
	return &v
}

// Truncate shortens s to at most maxLen runes, appending "..." when cut.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
