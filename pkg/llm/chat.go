package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/paperqa/internal/types"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string // Ollama server URL
}

// ChatEngine runs single-prompt completions against an LLM.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

var _ types.StreamCompleter = (*ChatEngine)(nil)

// NewWithConfig creates a new ChatEngine backed by Ollama.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := chatDefaults(config)
	if err != nil {
		return nil, err
	}

	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    llm,
	}, nil
}

// NewWithModel creates a ChatEngine around any langchaingo model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := chatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func chatDefaults(config ChatConfig) (ChatConfig, error) {
	// Validate and set default values for config fields if necessary
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return config, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config, nil
}

func (ce *ChatEngine) Model() string { return ce.config.Model }

// Complete returns the model's completion of prompt.
func (ce *ChatEngine) Complete(ctx context.Context, prompt string) (string, error) {
	out, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, ce.options()...)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "complete", err)
	}
	return out, nil
}

// CompleteStream is Complete with onChunk called for every generated piece.
// An error from onChunk stops generation.
func (ce *ChatEngine) CompleteStream(ctx context.Context, prompt string, onChunk func(string) error) (string, error) {
	var sb strings.Builder
	opts := append(ce.options(), llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		sb.Write(chunk)
		return onChunk(string(chunk))
	}))

	out, err := llms.GenerateFromSinglePrompt(ctx, ce.llm, prompt, opts...)
	if err != nil {
		return "", types.Wrap(types.ErrGeneration, "complete stream", err)
	}
	if out == "" {
		out = sb.String()
	}
	return out, nil
}

func (ce *ChatEngine) options() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}
