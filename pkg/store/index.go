package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
)

type BuildOptions struct {
	Workers   int
	BatchSize int
}

type record struct {
	chunk  models.Chunk
	vector []float32
	norm   float64
}

// Index is an immutable in-memory vector index over the chunks of one
// document. It is safe for concurrent searches.
type Index struct {
	model     string
	dimension int
	records   []record
}

// Build embeds every chunk and returns the index. Batches are embedded in
// parallel; each batch writes only its own slots, so record order always
// matches chunk order. An empty chunk list yields an empty index.
func Build(ctx context.Context, embedder types.Embedder, chunks []models.Chunk, opts BuildOptions) (*Index, error) {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}

	idx := &Index{model: embedder.Name()}
	if len(chunks) == 0 {
		return idx, nil
	}

	records := make([]record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for start := 0; start < len(chunks); start += opts.BatchSize {
		start := start
		end := min(start+opts.BatchSize, len(chunks))

		g.Go(func() error {
			texts := make([]string, 0, end-start)
			for _, c := range chunks[start:end] {
				texts = append(texts, c.Text)
			}

			vectors, err := embedder.Embed(gctx, texts)
			if err != nil {
				return types.Wrap(types.ErrEmbedding, "build index", err)
			}
			if len(vectors) != len(texts) {
				return &types.Error{
					Kind: types.ErrEmbedding,
					Op:   "build index",
					Err:  fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(texts)),
				}
			}

			for i, v := range vectors {
				records[start+i] = record{chunk: chunks[start+i], vector: v, norm: norm(v)}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Workers that never started report nothing on cancellation.
	if err := ctx.Err(); err != nil {
		return nil, types.Wrap(types.ErrCancelled, "build index", err)
	}

	idx.dimension = len(records[0].vector)
	for _, r := range records {
		if len(r.vector) == 0 || len(r.vector) != idx.dimension {
			return nil, &types.Error{
				Kind: types.ErrEmbedding,
				Op:   "build index",
				Err:  fmt.Errorf("chunk %s: dimension %d, expected %d", r.chunk.ID, len(r.vector), idx.dimension),
			}
		}
	}
	idx.records = records

	return idx, nil
}

// Search embeds query with embedder and returns the k most similar chunks,
// best first. Equal scores keep insertion order. k <= 0 returns every record.
func (idx *Index) Search(ctx context.Context, embedder types.Embedder, query string, k int) ([]models.SearchResult, error) {
	q, err := idx.EmbedQuery(ctx, embedder, query)
	if err != nil {
		return nil, err
	}
	return idx.SearchVector(q, k)
}

// EmbedQuery embeds query for this index. The embedder must be the one the
// index was built with; a different embedding space fails with ErrEmbedding
// instead of returning noise.
func (idx *Index) EmbedQuery(ctx context.Context, embedder types.Embedder, query string) ([]float32, error) {
	if len(idx.records) == 0 {
		return nil, &types.Error{Kind: types.ErrIndexEmpty, Op: "search"}
	}
	if name := embedder.Name(); name != idx.model {
		return nil, &types.Error{
			Kind: types.ErrEmbedding,
			Op:   "embed query",
			Err:  fmt.Errorf("query embedder %q does not match index embedder %q", name, idx.model),
		}
	}

	vectors, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, types.Wrap(types.ErrEmbedding, "embed query", err)
	}
	if len(vectors) != 1 {
		return nil, &types.Error{
			Kind: types.ErrEmbedding,
			Op:   "embed query",
			Err:  fmt.Errorf("got %d vectors for one query", len(vectors)),
		}
	}
	return vectors[0], nil
}

// SearchVector ranks every record against q by cosine similarity.
func (idx *Index) SearchVector(q []float32, k int) ([]models.SearchResult, error) {
	if len(idx.records) == 0 {
		return nil, &types.Error{Kind: types.ErrIndexEmpty, Op: "search"}
	}
	if len(q) != idx.dimension {
		return nil, &types.Error{
			Kind: types.ErrEmbedding,
			Op:   "search",
			Err:  fmt.Errorf("query dimension %d, index dimension %d", len(q), idx.dimension),
		}
	}
	qNorm := norm(q)

	results := make([]models.SearchResult, len(idx.records))
	for i, r := range idx.records {
		results[i] = models.SearchResult{
			Chunk: r.chunk,
			Score: cosine(q, qNorm, r.vector, r.norm),
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > 0 && k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (idx *Index) Len() int { return len(idx.records) }

// Model names the embedding space the index was built in.
func (idx *Index) Model() string { return idx.model }

func (idx *Index) Dimension() int { return idx.dimension }

// Chunks returns the indexed chunks in insertion order.
func (idx *Index) Chunks() []models.Chunk {
	out := make([]models.Chunk, len(idx.records))
	for i, r := range idx.records {
		out[i] = r.chunk
	}
	return out
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
