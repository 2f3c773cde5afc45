package embedding

import (
	"context"
	"strings"
	"testing"

	"pdf-chat/internal/config"
)

func TestNewEmbedder(t *testing.T) {
	t.Setenv("PDF_CHAT_TEST_EMBED_KEY", "sk-test")

	tests := []struct {
		name    string
		cfg     config.EmbedderConfig
		wantErr string
	}{
		{name: "ollama", cfg: config.EmbedderConfig{Provider: config.ProviderOllama, Model: "all-minilm", BatchSize: 16}},
		{name: "ollama with server", cfg: config.EmbedderConfig{Provider: config.ProviderOllama, Model: "all-minilm", BaseURL: "http://ollama:11434"}},
		{name: "openai", cfg: config.EmbedderConfig{Provider: config.ProviderOpenAI, Model: "text-embedding-3-small", APIKeyEnv: "PDF_CHAT_TEST_EMBED_KEY"}},
		{name: "openai without key", cfg: config.EmbedderConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "PDF_CHAT_TEST_UNSET"}, wantErr: "missing API key"},
		{name: "googleai without key", cfg: config.EmbedderConfig{Provider: config.ProviderGoogleAI, APIKeyEnv: "PDF_CHAT_TEST_UNSET"}, wantErr: "missing API key"},
		{name: "unknown", cfg: config.EmbedderConfig{Provider: "word2vec"}, wantErr: "unsupported embedding provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(context.Background(), tt.cfg)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEmbedder: %v", err)
			}
			if e == nil {
				t.Fatal("nil embedder")
			}
		})
	}
}
