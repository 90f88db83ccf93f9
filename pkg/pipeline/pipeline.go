// Package pipeline wires loading, segmentation, chunking, indexing, retrieval,
// reranking and answer synthesis into the two operations callers use:
// IndexDocument and Query.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/xhad/paperqa/internal/models"
	"github.com/xhad/paperqa/internal/types"
	"github.com/xhad/paperqa/pkg/llm"
	"github.com/xhad/paperqa/pkg/processor"
	"github.com/xhad/paperqa/pkg/reranker"
	"github.com/xhad/paperqa/pkg/retriever"
	"github.com/xhad/paperqa/pkg/segmenter"
	"github.com/xhad/paperqa/pkg/store"
)

var _ retriever.Index = (*store.Index)(nil)

// Handle is an indexed document. It never changes after IndexDocument
// returns it, so a query holding a handle keeps a consistent snapshot.
type Handle struct {
	ID         string
	Source     string
	Hash       string
	Pages      int
	Characters int
	Words      int
	Sections   []models.Section
	Index      *store.Index
	CreatedAt  time.Time
}

type Config struct {
	TopK  int // retriever default when Query is called with k <= 0
	TopN  int // candidates kept by the reranker
	Build store.BuildOptions
}

type Option func(*Pipeline)

// WithReranker inserts a reranking stage between retrieval and synthesis.
func WithReranker(r *reranker.Reranker) Option {
	return func(p *Pipeline) { p.reranker = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithLibrary(library *Library) Option {
	return func(p *Pipeline) { p.library = library }
}

type Pipeline struct {
	config      Config
	loader      types.Loader
	segmenter   *segmenter.Segmenter
	processor   processor.Processor
	retriever   *retriever.Retriever
	reranker    *reranker.Reranker
	synthesizer *llm.Synthesizer
	library     *Library
	logger      *slog.Logger
}

// New assembles a pipeline. The retriever's embedder is used both to build
// indexes and to embed queries.
func New(
	config Config,
	loader types.Loader,
	seg *segmenter.Segmenter,
	proc processor.Processor,
	ret *retriever.Retriever,
	synth *llm.Synthesizer,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		config:      config,
		loader:      loader,
		segmenter:   seg,
		processor:   proc,
		retriever:   ret,
		synthesizer: synth,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.library == nil {
		p.library = NewLibrary()
	}
	// Unset limits fall back to the stages' own defaults.
	if p.config.TopK <= 0 {
		p.config.TopK = ret.K()
	}
	if p.config.TopN <= 0 && p.reranker != nil {
		p.config.TopN = p.reranker.TopN()
	}
	return p
}

func (p *Pipeline) Library() *Library { return p.library }

// Reranking reports whether queries go through a reranker.
func (p *Pipeline) Reranking() bool { return p.reranker != nil }

// IndexDocument loads, segments, chunks and embeds the document at path.
// Content already indexed with the same embedder returns the existing handle.
// A document without headings is chunked as a whole; one without text gives
// a handle with an empty index.
func (p *Pipeline) IndexDocument(ctx context.Context, path string) (*Handle, error) {
	start := time.Now()
	logger := p.logger.With("source", path)

	pages, err := p.loader.Load(ctx, path)
	if err != nil {
		logger.Warn("document load failed", "error", err)
		return nil, err
	}

	embedder := p.retriever.Embedder()
	hash := contentHash(embedder.Name(), pages)
	if h, ok := p.library.Lookup(hash); ok {
		logger.Info("document already indexed", "doc_id", h.ID)
		return h, nil
	}

	text := joinPages(pages)
	sections := p.segmenter.Segment(pages)

	var chunks []models.Chunk
	if len(sections) > 0 {
		chunks, err = p.processor.Process(sections)
	} else {
		logger.Debug("no sections detected, chunking whole document")
		chunks, err = p.processor.ProcessText(text)
	}
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", path, err)
	}

	idx, err := store.Build(ctx, embedder, chunks, p.config.Build)
	if err != nil {
		logger.Warn("index build failed", "chunks", len(chunks), "error", err)
		return nil, err
	}

	h := p.library.Add(&Handle{
		ID:         uuid.NewString(),
		Source:     path,
		Hash:       hash,
		Pages:      len(pages),
		Characters: utf8.RuneCountInString(text),
		Words:      len(strings.Fields(text)),
		Sections:   sections,
		Index:      idx,
		CreatedAt:  time.Now(),
	})

	logger.Info("indexed document",
		"doc_id", h.ID,
		"pages", len(pages),
		"sections", len(sections),
		"chunks", idx.Len(),
		"elapsed", time.Since(start),
	)
	return h, nil
}

// Query answers question from the document behind h. k <= 0 uses the
// configured default.
//
// When only the language model fails, the result still carries the evidence
// alongside an ErrGeneration error.
func (p *Pipeline) Query(ctx context.Context, h *Handle, question string, k int) (*models.Result, error) {
	return p.QueryStream(ctx, h, question, k, nil, nil)
}

// QueryStream is Query with progress callbacks. onState sees every state the
// query enters; onChunk, when set, receives the answer as it is generated.
func (p *Pipeline) QueryStream(
	ctx context.Context,
	h *Handle,
	question string,
	k int,
	onState func(State),
	onChunk func(string) error,
) (*models.Result, error) {
	if h == nil || h.Index == nil {
		return nil, errors.New("query: no document handle")
	}
	if k <= 0 {
		k = p.config.TopK
	}

	t := newTracker(p.logger.With("doc_id", h.ID), onState)

	if err := ctx.Err(); err != nil {
		return nil, t.fail(types.Wrap(types.ErrCancelled, "query", err))
	}

	t.to(StateEmbeddingQuery)
	q, err := p.retriever.EmbedQuery(ctx, h.Index, question)
	if err != nil {
		return nil, t.fail(err)
	}

	t.to(StateRetrieving)
	candidates, err := p.retriever.RetrieveVector(h.Index, q, k)
	if err != nil {
		return nil, t.fail(err)
	}

	grounding := candidates
	if p.reranker != nil {
		t.to(StateReranking)
		grounding, err = p.reranker.Rerank(ctx, question, candidates, p.config.TopN)
		if err != nil {
			return nil, t.fail(err)
		}
	}

	result := &models.Result{
		Question: question,
		Evidence: make([]models.Evidence, 0, len(grounding)),
	}
	for _, g := range grounding {
		result.Evidence = append(result.Evidence, models.NewEvidence(g))
	}

	t.to(StateSynthesizing)
	var answer string
	if onChunk != nil {
		answer, err = p.synthesizer.AnswerStream(ctx, question, grounding, onChunk)
	} else {
		answer, err = p.synthesizer.Answer(ctx, question, grounding)
	}
	if err != nil {
		if errors.Is(err, types.ErrCancelled) {
			return nil, t.fail(err)
		}
		return result, t.fail(err)
	}
	result.Answer = answer

	t.to(StateAnswered)
	p.logger.Info("answered query",
		"doc_id", h.ID,
		"candidates", len(candidates),
		"grounding", len(grounding),
		"elapsed", time.Since(t.start),
	)
	return result, nil
}

func joinPages(pages []models.Page) string {
	texts := make([]string, len(pages))
	for i, p := range pages {
		texts[i] = p.Text
	}
	return strings.Join(texts, "\n")
}

func contentHash(model string, pages []models.Page) string {
	h := sha256.New()
	h.Write([]byte(model))
	for _, p := range pages {
		h.Write([]byte{'\f'})
		h.Write([]byte(p.Text))
	}
	return hex.EncodeToString(h.Sum(nil))
}
