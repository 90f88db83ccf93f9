package retriever

import (
	"context"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
)

// DefaultK is the number of candidates returned when the caller does not ask
// for a specific count.
const DefaultK = 8

// Index is the part of a vector index the retriever needs.
type Index interface {
	EmbedQuery(ctx context.Context, embedder types.Embedder, query string) ([]float32, error)
	SearchVector(q []float32, k int) ([]models.SearchResult, error)
}

type Retriever struct {
	embedder types.Embedder
	k        int
}

func New(embedder types.Embedder, k int) *Retriever {
	if k <= 0 {
		k = DefaultK
	}
	return &Retriever{embedder: embedder, k: k}
}

func (r *Retriever) K() int { return r.k }

func (r *Retriever) Embedder() types.Embedder { return r.embedder }

// Retrieve returns up to k chunks for query, best first, with each chunk id
// appearing once. k <= 0 uses the retriever's default.
func (r *Retriever) Retrieve(ctx context.Context, idx Index, query string, k int) ([]models.SearchResult, error) {
	q, err := r.EmbedQuery(ctx, idx, query)
	if err != nil {
		return nil, err
	}
	return r.RetrieveVector(idx, q, k)
}

// EmbedQuery embeds query in the index's embedding space.
func (r *Retriever) EmbedQuery(ctx context.Context, idx Index, query string) ([]float32, error) {
	return idx.EmbedQuery(ctx, r.embedder, query)
}

// RetrieveVector is Retrieve for an already embedded query.
func (r *Retriever) RetrieveVector(idx Index, q []float32, k int) ([]models.SearchResult, error) {
	if k <= 0 {
		k = r.k
	}

	results, err := idx.SearchVector(q, k)
	if err != nil {
		return nil, err
	}

	return dedup(results), nil
}

// dedup keeps the first, highest ranked, occurrence of each chunk id.
func dedup(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(results))
	out := results[:0:0]
	for _, r := range results {
		if _, ok := seen[r.Chunk.ID]; ok {
			continue
		}
		seen[r.Chunk.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
