package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/paperqa/pkg/config"
	"github.com/xhad/paperqa/pkg/pipeline"
)

func TestFromConfig(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	cfg.Cache.Type = "memory"

	p, closeFn, err := pipeline.FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.False(t, p.Reranking())

	cfg.Reranker.Enabled = true
	cfg.Segmenter.ExtraKeywords = []string{"Abstract"}
	p, closeFn2, err := pipeline.FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer closeFn2()
	assert.True(t, p.Reranking())
}

func TestFromConfigRejectsInvalidConfig(t *testing.T) {
	cfg, err := config.LoadConfig("")
	require.NoError(t, err)
	overlap := cfg.Processor.ChunkSize
	cfg.Processor.ChunkOverlap = &overlap

	_, closeFn, err := pipeline.FromConfig(context.Background(), cfg, nil)
	defer closeFn()
	assert.ErrorContains(t, err, "chunk_overlap")
}
