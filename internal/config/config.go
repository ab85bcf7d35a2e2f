// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (COURSEKIT_* plus provider API key variables)
//  2. Config file (./config.yaml or ~/.coursekit/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: completion provider, model, API key, per-call timeout
//   - Embedding: OpenAI-compatible embedding endpoint and model
//   - Retrieval: chunk size/overlap, max search results, name resolution
//   - Conversation: max history exchanges, tool-round budget
//   - Server: listen address, CORS origins, docs folder
//
// Sensitive values (API keys) are never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates no completion API key was configured.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the completion provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidChunking indicates chunk size/overlap values are inconsistent.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidMaxResults indicates the search result cap is out of range.
	ErrInvalidMaxResults = errors.New("invalid max results")

	// ErrInvalidMaxHistory indicates the history window is out of range.
	ErrInvalidMaxHistory = errors.New("invalid max history")

	// ErrInvalidToolRounds indicates the tool-round budget is out of range.
	ErrInvalidToolRounds = errors.New("invalid tool round budget")
)

// Completion provider identifiers used in Config.Provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Defaults mirror the values the retrieval pipeline was tuned with.
const (
	DefaultModel          = "claude-sonnet-4-20250514"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChunkSize      = 800
	DefaultChunkOverlap   = 100
	DefaultMaxResults     = 5
	DefaultMaxHistory     = 2
	DefaultMaxToolRounds  = 2
	DefaultRequestTimeout = 30 * time.Second
	DefaultAddr           = "127.0.0.1:8000"
)

// EmbeddingConfig describes the OpenAI-compatible embedding endpoint used by
// the vector store. BaseURL and APIKey fall back to the completion provider's
// values when empty.
type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

// Config stores application configuration.
type Config struct {
	// Completion provider configuration
	Provider       string        `mapstructure:"provider"` // "anthropic" (default) or "openai"
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"` // SENSITIVE: never log
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Embedding endpoint configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Retrieval configuration
	ChunkSize            int     `mapstructure:"chunk_size"`
	ChunkOverlap         int     `mapstructure:"chunk_overlap"`
	MaxResults           int     `mapstructure:"max_results"`
	ResolveMinSimilarity float32 `mapstructure:"resolve_min_similarity"` // 0 = accept any catalog match

	// Conversation configuration
	MaxHistory    int `mapstructure:"max_history"`     // retained exchanges per session
	MaxToolRounds int `mapstructure:"max_tool_rounds"` // tool-execution rounds per query

	// Server configuration
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	DataDir     string   `mapstructure:"data_dir"`
	DocsDir     string   `mapstructure:"docs_dir"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from file, environment, and defaults.
//
// The config file is optional; a missing file is not an error. Environment
// variables use the COURSEKIT_ prefix with underscores (for example
// COURSEKIT_MAX_TOOL_ROUNDS). The API key additionally falls back to
// ANTHROPIC_API_KEY or OPENAI_API_KEY depending on the provider.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".coursekit"))
	}

	v.SetEnvPrefix("COURSEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	applyFallbacks(&cfg)
	return &cfg, nil
}

// Default returns a Config populated with defaults only. Used by tests and
// by commands that do not need a config file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Unmarshal of in-memory defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	applyFallbacks(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderAnthropic)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", DefaultEmbeddingModel)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("max_results", DefaultMaxResults)
	v.SetDefault("resolve_min_similarity", 0.0)

	v.SetDefault("max_history", DefaultMaxHistory)
	v.SetDefault("max_tool_rounds", DefaultMaxToolRounds)

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("cors_origins", []string{})
	v.SetDefault("data_dir", "./data")
	v.SetDefault("docs_dir", "./docs")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// applyFallbacks fills values that depend on other settings or on
// conventional environment variables.
func applyFallbacks(cfg *Config) {
	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" && cfg.Provider == ProviderOpenAI {
		cfg.Embedding.APIKey = cfg.APIKey
	}
}

// Validate checks the configuration for values the core cannot work with.
// It returns sentinel errors wrapped with detail, suitable for errors.Is.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderAnthropic, ProviderOpenAI:
	default:
		return fmt.Errorf("%w: %q (supported: anthropic, openai)", ErrInvalidProvider, c.Provider)
	}

	if c.APIKey == "" {
		return fmt.Errorf("%w: set api_key or the provider's API key environment variable", ErrMissingAPIKey)
	}

	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_size=%d chunk_overlap=%d (need 0 <= overlap < size)",
			ErrInvalidChunking, c.ChunkSize, c.ChunkOverlap)
	}

	if c.MaxResults <= 0 || c.MaxResults > 100 {
		return fmt.Errorf("%w: %d (need 1-100)", ErrInvalidMaxResults, c.MaxResults)
	}

	if c.MaxHistory < 0 || c.MaxHistory > 1000 {
		return fmt.Errorf("%w: %d (need 0-1000)", ErrInvalidMaxHistory, c.MaxHistory)
	}

	if c.MaxToolRounds < 0 || c.MaxToolRounds > 10 {
		return fmt.Errorf("%w: %d (need 0-10)", ErrInvalidToolRounds, c.MaxToolRounds)
	}

	return nil
}
