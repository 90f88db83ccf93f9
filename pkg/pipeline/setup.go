package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/config"
	"github.com/xhad/paperqa/pkg/llm"
	"github.com/xhad/paperqa/pkg/loader"
	"github.com/xhad/paperqa/pkg/processor"
	"github.com/xhad/paperqa/pkg/reranker"
	"github.com/xhad/paperqa/pkg/retriever"
	"github.com/xhad/paperqa/pkg/segmenter"
	"github.com/xhad/paperqa/pkg/store"
)

// FromConfig builds an Ollama-backed pipeline from cfg. The returned close
// function releases the embedding cache connection, if any.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	closeFn := func() {}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, closeFn, fmt.Errorf("invalid config: %v", errs[0])
	}

	ldr := loader.NewWithConfig(loader.LoaderConfig{
		RateLimit: cfg.Loader.RateLimit,
		Timeout:   cfg.Loader.Timeout,
		MaxBytes:  cfg.Loader.MaxBytes,
	})

	segOpts := []segmenter.Option{segmenter.WithPreamble(cfg.Segmenter.KeepPreamble)}
	if len(cfg.Segmenter.ExtraKeywords) > 0 {
		keywords := append(append([]string{}, segmenter.DefaultKeywords...), cfg.Segmenter.ExtraKeywords...)
		segOpts = append(segOpts, segmenter.WithMatchers(segmenter.NumberedMatcher(), segmenter.KeywordMatcher(keywords...)))
	}
	seg := segmenter.New(segOpts...)

	procCfg := processor.ProcessorConfig{ChunkSize: cfg.Processor.ChunkSize}
	if cfg.Processor.ChunkOverlap != nil {
		procCfg.ChunkOverlap = *cfg.Processor.ChunkOverlap
	}
	proc := processor.NewWithConfig(procCfg)

	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:             cfg.Embedder.Model,
		BaseURL:           cfg.Embedder.BaseURL,
		RequestsPerSecond: cfg.Embedder.RequestsPerSecond,
	})
	if err != nil {
		return nil, closeFn, err
	}

	var embedder types.Embedder = emb
	switch cfg.Cache.Type {
	case "memory":
		embedder = store.NewCachedEmbedder(emb, store.NewMemoryCache(), cfg.Cache.Namespace, logger)
	case "postgres":
		pg, err := store.NewPGCache(ctx, store.PGCacheConfig{
			ConnString: cfg.Cache.DatabaseURL,
			TableName:  cfg.Cache.TableName,
			Namespace:  cfg.Cache.Namespace,
		})
		if err != nil {
			return nil, closeFn, fmt.Errorf("failed to initialize embedding cache: %w", err)
		}
		closeFn = pg.Close
		embedder = store.NewCachedEmbedder(emb, pg, cfg.Cache.Namespace, logger)
	}

	chatCfg := llm.ChatConfig{
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
		BaseURL:   cfg.LLM.BaseURL,
	}
	if cfg.LLM.Temperature != nil {
		chatCfg.Temperature = *cfg.LLM.Temperature
	}
	chat, err := llm.NewWithConfig(chatCfg)
	if err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	opts := []Option{WithLogger(logger)}
	if cfg.Reranker.Enabled {
		judge, err := llm.NewWithConfig(llm.ChatConfig{
			Model:     cfg.Reranker.Model,
			MaxTokens: 8,
			BaseURL:   cfg.LLM.BaseURL,
		})
		if err != nil {
			closeFn()
			return nil, func() {}, fmt.Errorf("failed to initialize reranker: %w", err)
		}
		opts = append(opts, WithReranker(reranker.New(llm.NewScorer(judge), cfg.Reranker.TopN, logger)))
	}

	p := New(
		Config{
			TopK: cfg.Retriever.TopK,
			TopN: cfg.Reranker.TopN,
			Build: store.BuildOptions{
				Workers:   cfg.Embedder.Workers,
				BatchSize: cfg.Embedder.BatchSize,
			},
		},
		ldr,
		seg,
		proc,
		retriever.New(embedder, cfg.Retriever.TopK),
		llm.NewSynthesizer(chat),
		opts...,
	)
	return p, closeFn, nil
}
