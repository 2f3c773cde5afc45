package llmservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"pdf-chat/internal/config"
)

type stubModel struct {
	resp *llms.ContentResponse
	err  error
	temp float64
}

func (m *stubModel) GenerateContent(_ context.Context, _ []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	m.temp = opts.Temperature
	return m.resp, m.err
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestGenerateText(t *testing.T) {
	msgs := []llms.MessageContent{llms.TextParts(schema.ChatMessageTypeHuman, "hi")}

	m := &stubModel{resp: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "first"}, {Content: "second"}}}}
	got, err := GenerateText(context.Background(), m, msgs, llms.WithTemperature(0.2))
	if err != nil || got != "first" {
		t.Errorf("GenerateText = %q, %v", got, err)
	}
	if m.temp != 0.2 {
		t.Errorf("temperature = %v", m.temp)
	}

	_, err = GenerateText(context.Background(), &stubModel{resp: &llms.ContentResponse{}}, msgs)
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("err = %v, want ErrEmptyResponse", err)
	}

	boom := errors.New("boom")
	if _, err := GenerateText(context.Background(), &stubModel{err: boom}, msgs); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestNewModel(t *testing.T) {
	t.Setenv("PDF_CHAT_TEST_LLM_KEY", "sk-test")

	tests := []struct {
		name    string
		cfg     config.LLMConfig
		wantErr string
	}{
		{name: "ollama", cfg: config.LLMConfig{Provider: config.ProviderOllama, Model: "llama3.1"}},
		{name: "openai", cfg: config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o-mini", APIKeyEnv: "PDF_CHAT_TEST_LLM_KEY", BaseURL: "https://openrouter.ai/api/v1"}},
		{name: "googleai without key", cfg: config.LLMConfig{Provider: config.ProviderGoogleAI, APIKeyEnv: "PDF_CHAT_TEST_UNSET"}, wantErr: "missing API key"},
		{name: "openai without key", cfg: config.LLMConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "PDF_CHAT_TEST_UNSET"}, wantErr: "missing API key"},
		{name: "unknown", cfg: config.LLMConfig{Provider: "bard"}, wantErr: "unsupported llm provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewModel(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil || m == nil {
				t.Fatalf("NewModel = %v, %v", m, err)
			}
		})
	}
}
