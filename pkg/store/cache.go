package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xhad/paperqa/internal/types"
)

// Cache stores embeddings by content key.
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Put(ctx context.Context, key string, vector []float32) error
}

type MemoryCache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{vectors: make(map[string][]float32)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.vectors[key]
	if !ok {
		return nil, false, nil
	}
	return append([]float32(nil), v...), true, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vectors[key] = append([]float32(nil), vector...)
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

// CachedEmbedder serves repeated texts from a cache and embeds only misses.
// It reports the wrapped embedder's name, so indexes built through it are
// searchable with the bare embedder and the other way round.
type CachedEmbedder struct {
	inner     types.Embedder
	cache     Cache
	namespace string
	logger    *slog.Logger
}

var _ types.Embedder = (*CachedEmbedder)(nil)

func NewCachedEmbedder(inner types.Embedder, cache Cache, namespace string, logger *slog.Logger) *CachedEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedder{
		inner:     inner,
		cache:     cache,
		namespace: namespace,
		logger:    logger,
	}
}

func (e *CachedEmbedder) Name() string { return e.inner.Name() }

// Embed returns vectors in input order. Cache failures are logged and treated
// as misses.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		keys[i] = e.key(text)
		v, ok, err := e.cache.Get(ctx, keys[i])
		if err != nil {
			e.logger.Debug("embedding cache read failed", "error", err)
		}
		if ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	vectors, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
	}

	for j, v := range vectors {
		i := missIdx[j]
		out[i] = v
		if err := e.cache.Put(ctx, keys[i], v); err != nil {
			e.logger.Debug("embedding cache write failed", "error", err)
		}
	}

	e.logger.Debug("embedded texts",
		"model", e.inner.Name(),
		"hits", len(texts)-len(missTexts),
		"misses", len(missTexts),
	)
	return out, nil
}

// key is content addressed within the namespace and the embedding space.
func (e *CachedEmbedder) key(text string) string {
	h := sha256.New()
	h.Write([]byte(e.namespace))
	h.Write([]byte{0})
	h.Write([]byte(e.inner.Name()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}
