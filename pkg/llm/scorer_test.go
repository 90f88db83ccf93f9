package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/llm"
)

func TestScorer(t *testing.T) {
	tests := []struct {
		reply string
		want  float64
	}{
		{"8", 8},
		{"Relevance: 7.5/10", 7.5},
		{"  3\n", 3},
		{"15", 10},
		{"-2", 0},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			completer := &stubCompleter{reply: tt.reply}
			score, err := llm.NewScorer(completer).Score(context.Background(), "What architecture?", "We use a GAN.")
			require.NoError(t, err)
			assert.Equal(t, tt.want, score)
			assert.Contains(t, completer.prompt, "Question: What architecture?")
			assert.Contains(t, completer.prompt, "We use a GAN.")
		})
	}
}

func TestScorerErrors(t *testing.T) {
	_, err := llm.NewScorer(&stubCompleter{reply: "very relevant"}).Score(context.Background(), "q", "p")
	assert.ErrorIs(t, err, types.ErrRerank)

	_, err = llm.NewScorer(&stubCompleter{err: errors.New("down")}).Score(context.Background(), "q", "p")
	assert.ErrorIs(t, err, types.ErrRerank)
	assert.True(t, types.Retryable(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = llm.NewScorer(&stubCompleter{reply: "5"}).Score(ctx, "q", "p")
	assert.ErrorIs(t, err, types.ErrCancelled)
	assert.NotErrorIs(t, err, types.ErrRerank)
}
