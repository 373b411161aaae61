package ai

import (
	"context"
	"errors"
	"time"
)

// Embedder converts text into fixed-dimension vectors. The dimension is
// fixed at construction and must match the vector index schema.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
}

// Completer produces a natural-language completion for a prompt. A
// failed call returns an error; it never returns a partial answer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Provider is enumeration of supported embedding providers
type Provider string

const (
	ProviderOpenAI   Provider = "openai"
	ProviderVertexAI Provider = "vertexai"
	ProviderStub     Provider = "stub"
)

// ClientConfig holds configuration for AI clients
type ClientConfig struct {
	APIKey      string
	EmbedModel  string
	GenModel    string
	Dim         int
	ProjectID   string
	Location    string
	Provider    Provider
	Timeout     time.Duration
	OllamaURL   string
	OllamaModel string
}

// NewEmbedder creates a new embedding client based on configuration
func NewEmbedder(config *ClientConfig) (Embedder, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}

	switch config.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(config), nil
	case ProviderVertexAI:
		return NewVertexAIClient(context.Background(), config)
	case ProviderStub:
		return NewStubEmbedder(config.Dim), nil
	default:
		return nil, errors.New("unsupported provider: " + string(config.Provider))
	}
}

// StubEmbedder is a stub implementation of the Embedder interface for
// testing and offline runs.
type StubEmbedder struct {
	dim int
}

// NewStubEmbedder creates a new StubEmbedder
func NewStubEmbedder(dim int) *StubEmbedder {
	if dim == 0 {
		dim = 1536
	}
	return &StubEmbedder{dim: dim}
}

// Embed returns a zero vector of the configured dimension
func (s *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, s.dim), nil
}

// EmbedBatch returns one zero vector per input text
func (s *StubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, s.dim)
	}
	return out, nil
}

// Dim returns the embedding dimension
func (s *StubEmbedder) Dim() int {
	return s.dim
}
