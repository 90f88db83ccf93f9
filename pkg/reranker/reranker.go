package reranker

import (
	"context"
	"log/slog"
	"sort"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
)

// Reranker reorders retrieval candidates by a joint (query, text) relevance
// score, which is slower and sharper than vector similarity.
type Reranker struct {
	scorer types.Scorer
	topN   int
	logger *slog.Logger
}

func New(scorer types.Scorer, topN int, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{scorer: scorer, topN: topN, logger: logger}
}

func (r *Reranker) TopN() int { return r.topN }

// Rerank scores every candidate and returns the topN best, highest first.
// Equal scores keep retrieval order. topN <= 0 or beyond the candidate count
// returns all candidates in score order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.SearchResult, topN int) ([]models.SearchResult, error) {
	if topN <= 0 {
		topN = r.topN
	}

	scored := make([]models.SearchResult, len(candidates))
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, types.Wrap(types.ErrCancelled, "rerank", err)
		}
		score, err := r.scorer.Score(ctx, query, c.Chunk.Text)
		if err != nil {
			return nil, types.Wrap(types.ErrRerank, "rerank "+c.Chunk.ID, err)
		}
		c.RerankScore = score
		c.Reranked = true
		scored[i] = c
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].RerankScore > scored[j].RerankScore
	})

	if topN > 0 && topN < len(scored) {
		scored = scored[:topN]
	}

	r.logger.Debug("reranked candidates", "candidates", len(candidates), "kept", len(scored))
	return scored, nil
}
