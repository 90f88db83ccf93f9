package llm_test

import (
	"context"

	"github.com/tmc/langchaingo/llms"
)

// fakeModel is a langchaingo model that records its last call.
type fakeModel struct {
	reply  string
	chunks []string
	err    error

	prompt string
	opts   llms.CallOptions
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.opts = llms.CallOptions{}
	for _, o := range options {
		o(&m.opts)
	}
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		switch tc := messages[0].Parts[0].(type) {
		case llms.TextContent:
			m.prompt = tc.Text
		case *llms.TextContent:
			m.prompt = tc.Text
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	if m.opts.StreamingFunc != nil {
		for _, c := range m.chunks {
			if err := m.opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// stubCompleter returns a fixed reply and records the prompt.
type stubCompleter struct {
	reply  string
	err    error
	prompt string
	calls  int
}

func (s *stubCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.reply, s.err
}

type fakeEmbeddingClient struct {
	dim   int
	err   error
	short bool
	calls int
}

func (c *fakeEmbeddingClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	n := len(texts)
	if c.short {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, c.dim)
		out[i][0] = float32(len(texts[i]))
	}
	return out, nil
}
