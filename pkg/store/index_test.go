package store_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/store"
)

// bagEmbedder maps text to word counts over a fixed vocabulary.
type bagEmbedder struct {
	name  string
	vocab []string
	calls atomic.Int32
	texts atomic.Int32
	err   error
}

func newBagEmbedder(name string) *bagEmbedder {
	return &bagEmbedder{
		name:  name,
		vocab: []string{"traffic", "flow", "gan", "architecture", "results", "accuracy"},
	}
}

func (e *bagEmbedder) Name() string { return e.name }

func (e *bagEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.calls.Add(1)
	e.texts.Add(int32(len(texts)))
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		lower := strings.ToLower(text)
		v := make([]float32, len(e.vocab))
		for j, w := range e.vocab {
			v[j] = float32(strings.Count(lower, w))
		}
		out[i] = v
	}
	return out, nil
}

// shapeEmbedder returns vectors whose length depends on the text.
type shapeEmbedder struct{}

func (shapeEmbedder) Name() string { return "shape" }

func (shapeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = make([]float32, len(t)%3+1)
		out[i][0] = 1
	}
	return out, nil
}

func paperChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "0:0", Text: "Traffic flow is modeled on a road network.", Section: "1. Introduction"},
		{ID: "1:0", Text: "We use a GAN architecture with a recurrent discriminator.", Section: "2. Method"},
		{ID: "2:0", Text: "Results show improved accuracy.", Section: "3. Results"},
	}
}

func TestBuildAndSearch(t *testing.T) {
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, idx.Len())
	assert.Equal(t, "bag", idx.Model())
	assert.Equal(t, 6, idx.Dimension())

	results, err := idx.Search(context.Background(), emb, "What architecture is used?", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "1:0", results[0].Chunk.ID)
	assert.InDelta(t, 1/1.4142135, results[0].Score, 1e-6)
	// The two zero-similarity chunks keep insertion order.
	assert.Equal(t, "0:0", results[1].Chunk.ID)
	assert.Equal(t, "2:0", results[2].Chunk.ID)
	assert.Equal(t, 0.0, results[1].Score)
}

func TestSearchLimitsAndDeterminism(t *testing.T) {
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	first, err := idx.Search(context.Background(), emb, "traffic flow results", 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "0:0", first[0].Chunk.ID)
	assert.GreaterOrEqual(t, first[0].Score, first[1].Score)

	again, err := idx.Search(context.Background(), emb, "traffic flow results", 2)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	all, err := idx.Search(context.Background(), emb, "traffic", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	more, err := idx.Search(context.Background(), emb, "traffic", 10)
	require.NoError(t, err)
	assert.Len(t, more, 3)
}

func TestSearchStableTies(t *testing.T) {
	var chunks []models.Chunk
	for i := 0; i < 20; i++ {
		chunks = append(chunks, models.Chunk{ID: fmt.Sprintf("0:%d", i), Text: "gan architecture"})
	}
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, chunks, store.BuildOptions{Workers: 4, BatchSize: 3})
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), emb, "gan", 0)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, fmt.Sprintf("0:%d", i), r.Chunk.ID)
	}
}

func TestBuildEmpty(t *testing.T) {
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, nil, store.BuildOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	_, err = idx.Search(context.Background(), emb, "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrIndexEmpty)
	assert.False(t, types.Retryable(err))
	assert.Equal(t, int32(0), emb.calls.Load())
}

func TestSearchRejectsOtherEmbeddingSpace(t *testing.T) {
	idx, err := store.Build(context.Background(), newBagEmbedder("bag-v1"), paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	other := newBagEmbedder("bag-v2")
	_, err = idx.Search(context.Background(), other, "architecture", 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.Equal(t, int32(0), other.calls.Load())
}

func TestBuildDimensionMismatch(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "0:0", Text: "a"},
		{ID: "0:1", Text: "ab"},
	}
	_, err := store.Build(context.Background(), shapeEmbedder{}, chunks, store.BuildOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
}

func TestSearchDimensionMismatch(t *testing.T) {
	idx, err := store.Build(context.Background(), shapeEmbedder{}, []models.Chunk{{ID: "0:0", Text: "abc"}}, store.BuildOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, idx.Dimension())

	_, err = idx.Search(context.Background(), shapeEmbedder{}, "ab", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
}

func TestBuildBackendFailure(t *testing.T) {
	emb := newBagEmbedder("bag")
	emb.err = errors.New("connection refused")

	_, err := store.Build(context.Background(), emb, paperChunks(), store.BuildOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmbedding)
	assert.True(t, types.Retryable(err))
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCancellation(t *testing.T) {
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Build(ctx, emb, paperChunks(), store.BuildOptions{})
	assert.ErrorIs(t, err, types.ErrCancelled)

	_, err = idx.Search(ctx, emb, "architecture", 1)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.False(t, types.Retryable(err))
}

func TestParallelBuildMatchesSerial(t *testing.T) {
	var chunks []models.Chunk
	words := []string{"traffic", "flow", "gan", "architecture", "results", "accuracy"}
	for i := 0; i < 57; i++ {
		text := strings.Repeat(words[i%len(words)]+" ", i%4+1) + words[(i*7)%len(words)]
		chunks = append(chunks, models.Chunk{ID: fmt.Sprintf("0:%d", i), Text: text})
	}

	emb := newBagEmbedder("bag")
	serial, err := store.Build(context.Background(), emb, chunks, store.BuildOptions{Workers: 1, BatchSize: len(chunks)})
	require.NoError(t, err)
	parallel, err := store.Build(context.Background(), emb, chunks, store.BuildOptions{Workers: 8, BatchSize: 2})
	require.NoError(t, err)

	assert.Equal(t, serial.Chunks(), parallel.Chunks())

	for _, q := range []string{"gan", "traffic accuracy", "flow results architecture"} {
		a, err := serial.Search(context.Background(), emb, q, 10)
		require.NoError(t, err)
		b, err := parallel.Search(context.Background(), emb, q, 10)
		require.NoError(t, err)
		assert.Equal(t, a, b, q)
	}
}

func TestConcurrentSearch(t *testing.T) {
	emb := newBagEmbedder("bag")
	idx, err := store.Build(context.Background(), emb, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := idx.Search(context.Background(), emb, "gan architecture", 1)
			assert.NoError(t, err)
			if assert.Len(t, results, 1) {
				assert.Equal(t, "1:0", results[0].Chunk.ID)
			}
		}()
	}
	wg.Wait()
}
