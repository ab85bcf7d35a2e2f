// Package app assembles the application: model client, embedding function,
// vector store, tools, agent loop, sessions, and the orchestrator.
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"

	"github.com/coursekit/coursekit/internal/agent"
	"github.com/coursekit/coursekit/internal/config"
	"github.com/coursekit/coursekit/internal/rag"
	"github.com/coursekit/coursekit/internal/search"
	"github.com/coursekit/coursekit/internal/session"
	"github.com/coursekit/coursekit/internal/vectorstore"
)

// Completion parameters forwarded on every model call.
const (
	temperature = 0.0
	maxTokens   = 800
)

// Model calls are throttled to stay inside provider rate limits. Bursts cover
// the back-to-back calls of one tool-using query.
const (
	modelCallsPerSecond = 2
	modelCallBurst      = 4
)

// App holds the assembled application.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    *vectorstore.Store
	Sessions *session.Store
	System   *rag.System
}

// New assembles an App from validated configuration. The vector database is
// opened (or created) under cfg.DataDir.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	model, err := newModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}

	store, err := vectorstore.Open(
		filepath.Join(cfg.DataDir, "chromem"),
		newEmbeddingFunc(cfg),
		vectorstore.Config{
			MaxResults:    cfg.MaxResults,
			MinSimilarity: cfg.ResolveMinSimilarity,
			Logger:        logger,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	dispatcher, err := search.NewDispatcher(
		search.NewContentSearchTool(store),
		search.NewCourseOutlineTool(store),
	)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	loop := agent.New(model, dispatcher, agent.Config{
		Model:         cfg.Model,
		MaxToolRounds: cfg.MaxToolRounds,
		Temperature:   temperature,
		MaxTokens:     maxTokens,
		Limiter:       rate.NewLimiter(rate.Every(time.Second/modelCallsPerSecond), modelCallBurst),
		Logger:        logger,
	})

	sessions := session.NewStore(cfg.MaxHistory)

	system := rag.New(store, sessions, loop, rag.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		Logger:       logger,
	})

	return &App{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Sessions: sessions,
		System:   system,
	}, nil
}

// newModel builds the completion client for the configured provider.
func newModel(cfg *config.Config) (agent.CompletionModel, error) {
	switch cfg.Provider {
	case config.ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.APIKey),
			anthropic.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// newEmbeddingFunc builds the embedding function for both collections. Any
// OpenAI-compatible embeddings endpoint works; the default is OpenAI itself.
func newEmbeddingFunc(cfg *config.Config) chromem.EmbeddingFunc {
	baseURL := cfg.Embedding.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return chromem.NewEmbeddingFuncOpenAICompat(baseURL, cfg.Embedding.APIKey, cfg.Embedding.Model, nil)
}
