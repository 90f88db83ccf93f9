package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	} else if !validURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "invalid Ollama base URL",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 1) {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 1",
		})
	}

	// Validate Embedder config
	if c.Embedder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedder.Workers < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.workers",
			Message: "workers must be positive",
		})
	}

	if c.Embedder.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.requests_per_second",
			Message: "requests_per_second must not be negative",
		})
	}

	// Validate Cache config
	switch c.Cache.Type {
	case "memory", "none":
	case "postgres":
		if c.Cache.DatabaseURL == "" || !validURL(c.Cache.DatabaseURL) {
			errors = append(errors, ValidationError{
				Field:   "cache.database_url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "cache.type",
			Message: fmt.Sprintf("unknown cache type: %s", c.Cache.Type),
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if o := c.Processor.ChunkOverlap; o != nil && (*o < 0 || *o >= c.Processor.ChunkSize) {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate retrieval
	if c.Retriever.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Reranker.Enabled && c.Reranker.TopN < 1 {
		errors = append(errors, ValidationError{
			Field:   "reranker.top_n",
			Message: "top_n must be positive",
		})
	}

	// Validate Loader config
	if c.Loader.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "loader.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Loader.MaxBytes < 1 {
		errors = append(errors, ValidationError{
			Field:   "loader.max_bytes",
			Message: "max_bytes must be positive",
		})
	}

	return errors
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
