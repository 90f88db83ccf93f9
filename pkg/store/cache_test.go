package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/paperqa/pkg/store"
)

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]float32, bool, error) {
	return nil, false, errors.New("cache down")
}

func (brokenCache) Put(context.Context, string, []float32) error {
	return errors.New("cache down")
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := store.NewMemoryCache()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	v := []float32{1, 2, 3}
	require.NoError(t, c.Put(ctx, "k", v))
	v[0] = 9

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedderIsTransparent(t *testing.T) {
	ctx := context.Background()
	inner := newBagEmbedder("bag")
	cache := store.NewMemoryCache()
	cached := store.NewCachedEmbedder(inner, cache, "in_memory_cache", nil)

	assert.Equal(t, inner.Name(), cached.Name())

	texts := []string{"gan architecture", "traffic flow", "gan architecture"}
	want, err := newBagEmbedder("bag").Embed(ctx, texts)
	require.NoError(t, err)

	got, err := cached.Embed(ctx, texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 2, cache.Len())

	inner.texts.Store(0)
	got, err = cached.Embed(ctx, []string{"traffic flow", "results accuracy", "gan architecture"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.texts.Load())
	assert.Equal(t, want[1], got[0])
	assert.Equal(t, want[0], got[2])
}

func TestCachedEmbedderIndexInterchangeable(t *testing.T) {
	ctx := context.Background()
	inner := newBagEmbedder("bag")
	cached := store.NewCachedEmbedder(inner, store.NewMemoryCache(), "ns", nil)

	idx, err := store.Build(ctx, cached, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)

	viaCache, err := idx.Search(ctx, cached, "architecture", 3)
	require.NoError(t, err)
	direct, err := idx.Search(ctx, inner, "architecture", 3)
	require.NoError(t, err)
	assert.Equal(t, direct, viaCache)
}

func TestCachedEmbedderNamespaces(t *testing.T) {
	ctx := context.Background()
	cache := store.NewMemoryCache()

	a := store.NewCachedEmbedder(newBagEmbedder("bag"), cache, "a", nil)
	b := store.NewCachedEmbedder(newBagEmbedder("bag"), cache, "b", nil)

	_, err := a.Embed(ctx, []string{"gan"})
	require.NoError(t, err)
	_, err = b.Embed(ctx, []string{"gan"})
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Len())
}

func TestCachedEmbedderSurvivesCacheFailure(t *testing.T) {
	ctx := context.Background()
	inner := newBagEmbedder("bag")
	cached := store.NewCachedEmbedder(inner, brokenCache{}, "ns", nil)

	got, err := cached.Embed(ctx, []string{"gan", "flow"})
	require.NoError(t, err)
	want, _ := newBagEmbedder("bag").Embed(ctx, []string{"gan", "flow"})
	assert.Equal(t, want, got)
}

func TestCachedEmbedderPropagatesBackendError(t *testing.T) {
	inner := newBagEmbedder("bag")
	inner.err = errors.New("backend down")
	cached := store.NewCachedEmbedder(inner, store.NewMemoryCache(), "ns", nil)

	_, err := cached.Embed(context.Background(), []string{"gan"})
	assert.EqualError(t, err, "backend down")
}

func TestPGCache(t *testing.T) {
	connString := os.Getenv("PAPERQA_TEST_DATABASE_URL")
	if connString == "" {
		t.Skip("PAPERQA_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	c, err := store.NewPGCache(ctx, store.PGCacheConfig{
		ConnString: connString,
		TableName:  "test_embedding_cache",
		Namespace:  "paperqa_test",
	})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Clear(ctx))

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "k", []float32{0.5, 1, 2}))
	require.NoError(t, c.Put(ctx, "k", []float32{1, 2, 3}))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, got)

	cached := store.NewCachedEmbedder(newBagEmbedder("bag"), c, "paperqa_test", nil)
	idx, err := store.Build(ctx, cached, paperChunks(), store.BuildOptions{})
	require.NoError(t, err)
	results, err := idx.Search(ctx, cached, "architecture", 1)
	require.NoError(t, err)
	assert.Equal(t, "1:0", results[0].Chunk.ID)
}
