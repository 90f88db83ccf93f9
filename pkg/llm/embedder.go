package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/xhad/paperqa/internal/types"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	Model             string
	BaseURL           string  // Ollama server URL
	RequestsPerSecond float64 // 0 disables rate limiting
}

// EmbeddingClient is the embedding call of an Ollama model.
type EmbeddingClient interface {
	CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error)
}

// Embedder turns texts into vectors with an Ollama embedding model.
type Embedder struct {
	config  EmbedderConfig
	client  EmbeddingClient
	limiter *rate.Limiter
}

var _ types.Embedder = (*Embedder)(nil)

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	config = embedderDefaults(config)

	emb, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	return NewEmbedderWithClient(config, emb), nil
}

// NewEmbedderWithClient builds an Embedder around an existing client.
func NewEmbedderWithClient(config EmbedderConfig, client EmbeddingClient) *Embedder {
	config = embedderDefaults(config)

	e := &Embedder{
		config: config,
		client: client,
	}
	if config.RequestsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return e
}

func embedderDefaults(config EmbedderConfig) EmbedderConfig {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest" // Default Ollama model
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config
}

// Name identifies the embedding space. Vectors from embedders with different
// names must not be compared.
func (e *Embedder) Name() string {
	return "ollama/" + e.config.Model
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, types.Wrap(types.ErrEmbedding, "embed", err)
		}
	}

	vectors, err := e.client.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, "embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, &types.Error{
			Kind: types.ErrEmbedding,
			Op:   "embed",
			Err:  fmt.Errorf("model %s returned %d vectors for %d texts", e.config.Model, len(vectors), len(texts)),
		}
	}

	return vectors, nil
}
