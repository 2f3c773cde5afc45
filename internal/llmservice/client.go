package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"pdf-chat/internal/config"
)

// ErrEmptyResponse is returned when the model answers without any choice.
var ErrEmptyResponse = errors.New("model returned no choices")

// NewModel creates the chat model for the configured provider.
func NewModel(ctx context.Context, cfg config.LLMConfig) (llms.Model, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating chat model")

	switch cfg.Provider {
	case config.ProviderGoogleAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
		return googleai.New(ctx,
			googleai.WithAPIKey(key),
			googleai.WithDefaultModel(cfg.Model),
		)
	case config.ProviderOpenAI:
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
		}
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case config.ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}

// GenerateText sends messages to llm and returns the first choice verbatim.
func GenerateText(ctx context.Context, llm llms.Model, messages []llms.MessageContent, options ...llms.CallOption) (string, error) {
	res, err := llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return res.Choices[0].Content, nil
}
