package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type LLMConfig struct {
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	// Temperature is a pointer so that an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature"`
}

type EmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	BatchSize         int     `yaml:"batch_size"`
	Workers           int     `yaml:"workers"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type CacheConfig struct {
	// Type is one of "memory", "postgres" or "none".
	Type        string `yaml:"type"`
	Namespace   string `yaml:"namespace"`
	DatabaseURL string `yaml:"database_url"`
	TableName   string `yaml:"table_name"`
}

type ProcessorConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	// ChunkOverlap defaults to a fifth of ChunkSize, capped at 200. An explicit
	// 0 disables overlap.
	ChunkOverlap *int `yaml:"chunk_overlap"`
}

type SegmenterConfig struct {
	KeepPreamble  bool     `yaml:"keep_preamble"`
	ExtraKeywords []string `yaml:"extra_keywords"`
}

type RetrieverConfig struct {
	TopK int `yaml:"top_k"`
}

type RerankerConfig struct {
	Enabled bool   `yaml:"enabled"`
	TopN    int    `yaml:"top_n"`
	Model   string `yaml:"model"`
}

type LoaderConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type UIConfig struct {
	ShowEvidence bool   `yaml:"show_evidence"`
	Theme        string `yaml:"theme"` // "plain" turns colors off
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Cache     CacheConfig     `yaml:"cache"`
	Processor ProcessorConfig `yaml:"processor"`
	Segmenter SegmenterConfig `yaml:"segmenter"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Reranker  RerankerConfig  `yaml:"reranker"`
	Loader    LoaderConfig    `yaml:"loader"`
	Server    ServerConfig    `yaml:"server"`
	UI        UIConfig        `yaml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/paperqa/config.yaml"),
			"/etc/paperqa/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == nil {
		temperature := 0.2
		config.LLM.Temperature = &temperature
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Embedder.Model == "" {
		config.Embedder.Model = "nomic-embed-text:latest"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = config.LLM.BaseURL
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 16
	}
	if config.Embedder.Workers == 0 {
		config.Embedder.Workers = 4
	}

	if config.Cache.Type == "" {
		config.Cache.Type = "memory"
	}
	if config.Cache.Namespace == "" {
		config.Cache.Namespace = "in_memory_cache"
	}
	if config.Cache.TableName == "" {
		config.Cache.TableName = "embedding_cache"
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == nil {
		overlap := min(200, config.Processor.ChunkSize/5)
		config.Processor.ChunkOverlap = &overlap
	}

	if config.Retriever.TopK == 0 {
		config.Retriever.TopK = 8
	}

	if config.Reranker.TopN == 0 {
		config.Reranker.TopN = 4
	}
	if config.Reranker.Model == "" {
		config.Reranker.Model = config.LLM.Model
	}

	if config.Loader.Timeout == 0 {
		config.Loader.Timeout = 30 * time.Second
	}
	if config.Loader.RateLimit == 0 {
		config.Loader.RateLimit = 2.0
	}
	if config.Loader.MaxBytes == 0 {
		config.Loader.MaxBytes = 50 << 20
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.UI.Theme == "" {
		config.UI.Theme = "default"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
		config.Embedder.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Cache.DatabaseURL = dbURL
	}
	if model := os.Getenv("PAPERQA_MODEL"); model != "" {
		config.LLM.Model = model
	}
}
