package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/prompts"

	"github.com/xhad/paperqa/internal/types"
)

const scoreTemplate = `Rate how relevant the passage is to the question on a scale from 0 (unrelated) to 10 (answers it directly).
Reply with the number only.

Question: {{.question}}

Passage:
{{.passage}}

Relevance:`

var scoreNumber = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Scorer asks a chat model to grade (question, passage) relevance from 0 to 10.
type Scorer struct {
	completer types.Completer
	template  prompts.PromptTemplate
}

var _ types.Scorer = (*Scorer)(nil)

func NewScorer(completer types.Completer) *Scorer {
	return &Scorer{
		completer: completer,
		template:  prompts.NewPromptTemplate(scoreTemplate, []string{"question", "passage"}),
	}
}

func (s *Scorer) Score(ctx context.Context, query, text string) (float64, error) {
	prompt, err := s.template.Format(map[string]any{
		"question": query,
		"passage":  text,
	})
	if err != nil {
		return 0, rerankError(err)
	}

	out, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return 0, rerankError(err)
	}

	m := scoreNumber.FindString(out)
	if m == "" {
		return 0, rerankError(fmt.Errorf("no score in reply %q", out))
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, rerankError(err)
	}
	return max(0, min(10, score)), nil
}

func rerankError(err error) error {
	if errors.Is(err, types.ErrCancelled) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return types.Wrap(types.ErrCancelled, "score", err)
	}
	return &types.Error{Kind: types.ErrRerank, Op: "score", Err: err}
}
