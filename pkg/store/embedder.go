package store

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"
)

type EmbedderConfig struct {
	Model     string
	BaseURL   string  // Ollama server URL
	RateLimit float64 // embedding requests per second
}

// OllamaEmbedder computes embeddings through a local Ollama server. Requests
// are rate limited so bulk ingestion does not saturate the embedding model.
type OllamaEmbedder struct {
	config  EmbedderConfig
	llm     *ollama.LLM
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*OllamaEmbedder, error) {
	if config.Model == "" {
		config.Model = "nomic-embed-text:latest"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 10
	}

	llm, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding model: %w", err)
	}

	return &OllamaEmbedder{
		config:  config,
		llm:     llm,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	embeddings, err := e.llm.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	return embeddings, nil
}
