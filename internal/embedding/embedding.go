package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-chat/internal/config"
)

// NewEmbedder creates the batched embedder for the configured provider.
func NewEmbedder(ctx context.Context, cfg config.EmbedderConfig) (embeddings.Embedder, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating embedder")

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s embedding client: %w", cfg.Provider, err)
	}
	embedder, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newClient(ctx context.Context, cfg config.EmbedderConfig) (embeddings.EmbedderClient, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case config.ProviderOpenAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderGoogleAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(key),
			googleai.WithDefaultEmbeddingModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
