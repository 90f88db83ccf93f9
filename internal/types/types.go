package types

import (
	"context"

	"github.com/xhad/paperqa/internal/models"
)

// Core interfaces

// Loader extracts ordered page text from a document.
type Loader interface {
	Load(ctx context.Context, path string) ([]models.Page, error)
}

// Embedder maps texts into a fixed-dimension vector space. Name identifies the
// space; vectors from embedders with different names are not comparable.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer runs a language-model completion for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Scorer returns a relevance score for a (query, text) pair.
type Scorer interface {
	Score(ctx context.Context, query, text string) (float64, error)
}

// StreamCompleter is a Completer that can also deliver the completion in
// pieces as it is generated. The returned string is the full completion.
type StreamCompleter interface {
	Completer
	CompleteStream(ctx context.Context, prompt string, onChunk func(string) error) (string, error)
}
