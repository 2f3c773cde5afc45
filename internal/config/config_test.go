package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Provider != ProviderGoogleAI || cfg.LLM.Model != "gemini-1.5-flash" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.APIKeyEnv != "GOOGLE_API_KEY" {
		t.Errorf("api key env = %q", cfg.LLM.APIKeyEnv)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", cfg.LLM.Temperature)
	}
	if !cfg.LLM.ConvertSystemToHuman() {
		t.Error("system messages should be folded into the human message by default")
	}
	if cfg.Chunker.ChunkSize != 1000 || cfg.Chunker.ChunkOverlap != 200 || cfg.Chunker.Separator != "\n" {
		t.Errorf("chunker = %+v", cfg.Chunker)
	}
	if cfg.Retriever.TopK != 4 || cfg.Retriever.Backend != BackendChromem {
		t.Errorf("retriever = %+v", cfg.Retriever)
	}
	if cfg.Embedder.Provider != ProviderOllama || cfg.Embedder.Model != "all-minilm" {
		t.Errorf("embedder = %+v", cfg.Embedder)
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.Server.SessionTTL)
	}
	if cfg.UI.PageTitle != "Chat with multiple PDFs" {
		t.Errorf("page title = %q", cfg.UI.PageTitle)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
llm:
  provider: openai
  temperature: 0.5
  system_as_human: false
chunker:
  chunk_size: 500
  chunk_overlap: 50
  separator: "\n\n"
server:
  session_ttl: 10m
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.LLM.APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("llm = %+v", cfg.LLM)
	}
	if cfg.LLM.ConvertSystemToHuman() {
		t.Error("system_as_human: false was ignored")
	}
	if cfg.LLM.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.LLM.Temperature)
	}
	if cfg.Chunker.ChunkSize != 500 || cfg.Chunker.ChunkOverlap != 50 || cfg.Chunker.Separator != "\n\n" {
		t.Errorf("chunker = %+v", cfg.Chunker)
	}
	if cfg.Server.SessionTTL != 10*time.Minute {
		t.Errorf("session ttl = %v", cfg.Server.SessionTTL)
	}
}

func TestLoadConfigChunkOverlap(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"explicit zero", "chunker:\n  chunk_overlap: 0\n", 0},
		{"omitted", "chunker:\n  chunk_size: 800\n", 200},
		{"set", "chunker:\n  chunk_overlap: 50\n", 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("LoadConfig: %v", err)
			}
			if cfg.Chunker.ChunkOverlap != tt.want {
				t.Errorf("chunk overlap = %d, want %d", cfg.Chunker.ChunkOverlap, tt.want)
			}
		})
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown llm", "llm:\n  provider: bard\n", "unknown llm provider"},
		{"unknown embedder", "embedder:\n  provider: word2vec\n", "unknown embedder provider"},
		{"unknown chunker", "chunker:\n  type: sentence\n", "unknown chunker"},
		{"overlap too large", "chunker:\n  chunk_size: 100\n  chunk_overlap: 100\n", "must be smaller"},
		{"pgvector without dsn", "retriever:\n  backend: pgvector\n", "dsn is required"},
		{"unknown backend", "retriever:\n  backend: faiss\n", "unknown retriever backend"},
		{"bad yaml", "llm: [", "failed to parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("PDF_CHAT_TEST_KEY", "secret")
	c := LLMConfig{APIKeyEnv: "PDF_CHAT_TEST_KEY"}
	if got := c.APIKey(); got != "secret" {
		t.Errorf("APIKey() = %q", got)
	}
	if got := (LLMConfig{}).APIKey(); got != "" {
		t.Errorf("APIKey() without env name = %q", got)
	}
}
