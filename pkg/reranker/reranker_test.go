package reranker_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/reranker"
)

// keywordScorer counts query words present in the text.
type keywordScorer struct {
	failOn string
	calls  int
}

func (s *keywordScorer) Score(_ context.Context, query, text string) (float64, error) {
	s.calls++
	if s.failOn != "" && strings.Contains(text, s.failOn) {
		return 0, errors.New("scorer unavailable")
	}
	var n float64
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(strings.ToLower(text), w) {
			n++
		}
	}
	return n, nil
}

func candidates() []models.SearchResult {
	return []models.SearchResult{
		{Chunk: models.Chunk{ID: "a", Text: "traffic flow model"}, Score: 0.9},
		{Chunk: models.Chunk{ID: "b", Text: "gan architecture generator"}, Score: 0.8},
		{Chunk: models.Chunk{ID: "c", Text: "gan training"}, Score: 0.7},
		{Chunk: models.Chunk{ID: "d", Text: "results table"}, Score: 0.6},
	}
}

func ids(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Chunk.ID
	}
	return out
}

func TestRerank(t *testing.T) {
	tests := []struct {
		name string
		topN int
		want []string
	}{
		{"top two", 2, []string{"b", "c"}},
		{"top one", 1, []string{"b"}},
		{"more than candidates", 10, []string{"b", "c", "a", "d"}},
		{"default keeps all", 0, []string{"b", "c", "a", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reranker.New(&keywordScorer{}, 0, nil)
			got, err := r.Rerank(context.Background(), "gan architecture", candidates(), tt.topN)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestRerankRecordsScores(t *testing.T) {
	r := reranker.New(&keywordScorer{}, 4, nil)

	got, err := r.Rerank(context.Background(), "gan architecture", candidates(), 0)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.True(t, got[0].Reranked)
	assert.Equal(t, 2.0, got[0].RerankScore)
	assert.Equal(t, 0.8, got[0].Score, "vector score is preserved")

	ev := models.NewEvidence(got[0])
	require.NotNil(t, ev.RerankScore)
	assert.Equal(t, 2.0, *ev.RerankScore)
}

func TestRerankUsesConfiguredTopN(t *testing.T) {
	r := reranker.New(&keywordScorer{}, 3, nil)
	got, err := r.Rerank(context.Background(), "gan", candidates(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRerankEmpty(t *testing.T) {
	s := &keywordScorer{}
	got, err := reranker.New(s, 2, nil).Rerank(context.Background(), "q", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, s.calls)
}

func TestRerankScorerFailure(t *testing.T) {
	r := reranker.New(&keywordScorer{failOn: "training"}, 2, nil)

	_, err := r.Rerank(context.Background(), "gan", candidates(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrRerank)
	assert.True(t, types.Retryable(err))
}

func TestRerankCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &keywordScorer{}
	_, err := reranker.New(s, 2, nil).Rerank(ctx, "gan", candidates(), 0)
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.Equal(t, 0, s.calls)
}
