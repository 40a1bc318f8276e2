// Package fingerprint turns free-text failure descriptions into fixed-length unit vectors.
package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"math"

	"basegraph.app/faultline/internal/model"
)

// ErrEmptyInput is returned when the text cannot produce a vector with a non-zero norm.
var ErrEmptyInput = errors.New("fingerprint: empty input")

// Provider constants for embedder selection.
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
)

// Embedder produces fingerprints of a fixed dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Fingerprint, error)
	Dimensions() int
}

// Config selects and configures an Embedder.
type Config struct {
	Provider   string // "hash" (default) or "openai"
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// New builds the Embedder named by cfg.Provider.
func New(cfg Config) (Embedder, error) {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = model.DefaultDimensions
	}

	switch cfg.Provider {
	case "", ProviderHash:
		return NewHashEmbedder(dims), nil
	case ProviderOpenAI:
		return NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, cfg.Model, dims)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// HashEmbedder is the deterministic offline embedder. It is a content hash laid out
// as a vector: identical text always yields an identical fingerprint, but closeness
// between different texts carries little meaning.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = model.DefaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Embed(_ context.Context, text string) (model.Fingerprint, error) {
	return Generate(text, e.dims)
}

func (e *HashEmbedder) Dimensions() int {
	return e.dims
}

// Generate computes the hash fingerprint of text with dims components.
//
// For the code point c at rune position i, (c/255) mod 1 is added into slot (c*i) mod dims
// and the slot wraps modulo 1. The vector is then scaled to unit length.
func Generate(text string, dims int) (model.Fingerprint, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if dims <= 0 {
		return nil, fmt.Errorf("fingerprint: invalid dimensions %d", dims)
	}

	fp := make(model.Fingerprint, dims)
	var pos int64
	for _, r := range text {
		c := int64(r)
		idx := (c * pos) % int64(dims)
		fp[idx] = math.Mod(fp[idx]+math.Mod(float64(c)/255, 1), 1)
		pos++
	}

	return Normalize(fp)
}

// Normalize scales v to unit length in place and returns it.
func Normalize(v model.Fingerprint) (model.Fingerprint, error) {
	norm := Norm(v)
	if norm == 0 || math.IsNaN(norm) {
		return nil, ErrEmptyInput
	}
	for i := range v {
		v[i] /= norm
	}
	return v, nil
}

// Norm returns the Euclidean length of v.
func Norm(v model.Fingerprint) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// CosineSimilarity returns 1 - cosine distance between a and b.
// Vectors of different length, or with a zero norm, have similarity 0.
func CosineSimilarity(a, b model.Fingerprint) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
