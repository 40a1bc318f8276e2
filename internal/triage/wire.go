package triage

import (
	"fmt"
	"log/slog"

	"basegraph.app/faultline/common/llm"
	"basegraph.app/faultline/core/config"
	"basegraph.app/faultline/internal/analysis"
	"basegraph.app/faultline/internal/fingerprint"
	"basegraph.app/faultline/internal/store"
)

// NewFromConfig builds the embedder and optional analyzer described by cfg
// and binds them to patterns.
func NewFromConfig(cfg config.Config, patterns store.PatternStore) (*Processor, error) {
	embedder, err := fingerprint.New(fingerprint.Config{
		Provider:   cfg.Embedding.Provider,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	var analyzer *analysis.Analyzer
	if cfg.Analysis.Enabled() {
		client, err := llm.New(llm.Config{
			Provider:        cfg.Analysis.Provider,
			APIKey:          cfg.Analysis.APIKey,
			BaseURL:         cfg.Analysis.BaseURL,
			Model:           cfg.Analysis.Model,
			ReasoningEffort: llm.ReasoningEffort(cfg.Analysis.ReasoningEffort),
		})
		if err != nil {
			return nil, fmt.Errorf("creating analysis client: %w", err)
		}
		analyzer = analysis.New(client, analysis.Config{
			MaxAttempts:    cfg.Analysis.MaxAttempts,
			InitialBackoff: cfg.Analysis.InitialBackoff,
			MaxLogChars:    cfg.Analysis.MaxLogChars,
			MaxDiffChars:   cfg.Analysis.MaxDiffChars,
			MaxTokens:      cfg.Analysis.MaxTokens,
		})
		slog.Info("analysis enabled", "provider", cfg.Analysis.Provider, "model", client.Model())
	} else {
		slog.Info("analysis disabled (no API key configured)")
	}

	return NewProcessor(embedder, patterns, analyzer, store.QueryOptions{
		TopK:      cfg.Matching.TopK,
		Threshold: cfg.Matching.Threshold,
	})
}
