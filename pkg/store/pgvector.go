package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type PGCacheConfig struct {
	ConnString string
	TableName  string
	Namespace  string
}

// PGCache keeps embeddings in a Postgres table with a pgvector column, so
// they survive restarts and can be shared between processes.
type PGCache struct {
	config PGCacheConfig
	pool   *pgxpool.Pool
}

var _ Cache = (*PGCache)(nil)

func NewPGCache(ctx context.Context, config PGCacheConfig) (*PGCache, error) {
	if config.TableName == "" {
		config.TableName = "embedding_cache"
	}
	if config.Namespace == "" {
		config.Namespace = "in_memory_cache"
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	c := &PGCache{
		config: config,
		pool:   pool,
	}

	if err := c.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return c, nil
}

func (c *PGCache) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := c.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	// The column is unsized so one table can hold several embedding spaces.
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			namespace TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			embedding vector NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (namespace, content_hash)
		)`, pgx.Identifier{c.config.TableName}.Sanitize())

	_, err = c.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

func (c *PGCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	query := fmt.Sprintf(`
		SELECT embedding
		FROM %s
		WHERE namespace = $1 AND content_hash = $2`,
		pgx.Identifier{c.config.TableName}.Sanitize())

	var v pgvector.Vector
	err := c.pool.QueryRow(ctx, query, c.config.Namespace, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read embedding: %w", err)
	}
	return v.Slice(), true, nil
}

func (c *PGCache) Put(ctx context.Context, key string, vector []float32) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (namespace, content_hash, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (namespace, content_hash) DO UPDATE SET
			embedding = EXCLUDED.embedding`,
		pgx.Identifier{c.config.TableName}.Sanitize())

	_, err := c.pool.Exec(ctx, stmt, c.config.Namespace, key, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}

// Clear drops every cached embedding in the namespace.
func (c *PGCache) Clear(ctx context.Context) error {
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE namespace = $1`, pgx.Identifier{c.config.TableName}.Sanitize())
	if _, err := c.pool.Exec(ctx, stmt, c.config.Namespace); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", c.config.Namespace, err)
	}
	return nil
}

func (c *PGCache) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
