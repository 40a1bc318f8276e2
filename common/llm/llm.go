package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

var nameInvalidChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ReasoningEffort controls the amount of reasoning for supported models.
type ReasoningEffort string

const (
	ReasoningEffortLow    ReasoningEffort = "low"
	ReasoningEffortMedium ReasoningEffort = "medium"
	ReasoningEffortHigh   ReasoningEffort = "high"
)

type Config struct {
	Provider        string // "openai" or "anthropic"
	APIKey          string
	BaseURL         string // Optional: custom API endpoint
	Model           string
	ReasoningEffort ReasoningEffort // Optional: only sent to OpenAI reasoning models
}

// Client produces a structured response decoded into result.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64 // nil = model default, explicit 0 = deterministic
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

// New selects the provider named by cfg.Provider. OpenAI is the default.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch cfg.Provider {
	case "", ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

// SanitizeName makes s usable as a tool or schema name (^[a-zA-Z0-9_-]{1,64}$).
func SanitizeName(s string) string {
	sanitized := nameInvalidChars.ReplaceAllString(s, "_")
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}

// decode unmarshals a provider payload into result.
func decode(content []byte, result any) error {
	if len(content) == 0 {
		return fmt.Errorf("empty response content")
	}
	if err := json.Unmarshal(content, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// IsRetryable reports whether a Chat error is worth another attempt:
// rate limits, server errors and transport failures are; client errors and
// context cancellation are not.
func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	case errors.Is(err, ErrMalformedResponse):
		slog.WarnContext(ctx, "llm returned malformed output, will retry", "error", err)
		return true
	default:
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	}

	switch {
	case status == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status)
		return false
	}
}

// ErrMalformedResponse is returned when the provider answered but the payload
// could not be decoded into the requested shape.
var ErrMalformedResponse = errors.New("malformed llm response")
