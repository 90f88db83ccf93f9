package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
)

// RefusalSentence is what the model is told to answer when the context does
// not contain the answer.
const RefusalSentence = "I cannot find the answer to this question in the provided paper."

// RefusalInstruction is included verbatim in every answer prompt.
const RefusalInstruction = `If the context does not contain the answer, reply with exactly this sentence and nothing else: "` + RefusalSentence + `" Never invent facts that are not in the context.`

const answerTemplate = `You are a research assistant answering questions about a scientific paper.
Answer using only the context below. ` + RefusalInstruction + `

Context:
{{.context}}

Question: {{.question}}

Answer:`

// Synthesizer turns a question and its grounding chunks into an answer.
type Synthesizer struct {
	completer    types.Completer
	template     prompts.PromptTemplate
	withSections bool
}

type SynthesizerOption func(*Synthesizer)

// WithSectionLabels prefixes every context passage with its section heading.
func WithSectionLabels(on bool) SynthesizerOption {
	return func(s *Synthesizer) { s.withSections = on }
}

func NewSynthesizer(completer types.Completer, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		completer:    completer,
		template:     prompts.NewPromptTemplate(answerTemplate, []string{"context", "question"}),
		withSections: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPrompt renders the instruction template for query over grounding.
func (s *Synthesizer) BuildPrompt(query string, grounding []models.SearchResult) (string, error) {
	parts := make([]string, 0, len(grounding))
	for _, g := range grounding {
		if s.withSections && g.Chunk.Section != "" {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", g.Chunk.Section, g.Chunk.Text))
		} else {
			parts = append(parts, g.Chunk.Text)
		}
	}

	return s.template.Format(map[string]any{
		"context":  strings.Join(parts, "\n\n"),
		"question": query,
	})
}

// Answer returns the model output unmodified. Whether it is grounded is left
// to the instruction template.
func (s *Synthesizer) Answer(ctx context.Context, query string, grounding []models.SearchResult) (string, error) {
	prompt, err := s.BuildPrompt(query, grounding)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "build prompt", err)
	}

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "answer", err)
	}
	return answer, nil
}

// AnswerStream is Answer with partial output delivered to onChunk. A
// completer without streaming support delivers the whole answer at once.
func (s *Synthesizer) AnswerStream(ctx context.Context, query string, grounding []models.SearchResult, onChunk func(string) error) (string, error) {
	sc, ok := s.completer.(types.StreamCompleter)
	if !ok {
		answer, err := s.Answer(ctx, query, grounding)
		if err != nil {
			return "", err
		}
		if err := onChunk(answer); err != nil {
			return answer, err
		}
		return answer, nil
	}

	prompt, err := s.BuildPrompt(query, grounding)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "build prompt", err)
	}
	answer, err := sc.CompleteStream(ctx, prompt, onChunk)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "answer", err)
	}
	return answer, nil
}
