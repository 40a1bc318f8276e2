package fingerprint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"basegraph.app/faultline/internal/model"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// OpenAIEmbedder calls the OpenAI embeddings API. Its output is re-normalized so it can
// share a store with HashEmbedder fingerprints of the same dimensionality.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
}

func NewOpenAIEmbedder(apiKey, baseURL, embeddingModel string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  embeddingModel,
		dims:   dims,
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) (model.Fingerprint, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	start := time.Now()
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	slog.DebugContext(ctx, "embedding completed",
		"model", e.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens)

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings in response")
	}

	vec := resp.Data[0].Embedding
	if len(vec) != e.dims {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(vec), e.dims)
	}

	fp := make(model.Fingerprint, len(vec))
	copy(fp, vec)
	return Normalize(fp)
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}
