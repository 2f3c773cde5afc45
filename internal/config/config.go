package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"

	ChunkerWindow    = "window"
	ChunkerRecursive = "recursive"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	DriverPgdriver = "pgdriver"
	DriverPq       = "pq"
)

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Retriever RetrieverConfig `yaml:"retriever"`
	Database  DatabaseConfig  `yaml:"database"`
	Server    ServerConfig    `yaml:"server"`
	UI        UIConfig        `yaml:"ui"`
	Log       LogConfig       `yaml:"log"`
}

// LLMConfig configures the chat model answering questions.
type LLMConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	Temperature   float64 `yaml:"temperature"`
	SystemAsHuman *bool   `yaml:"system_as_human"`
}

// EmbedderConfig configures the model turning chunks into vectors.
type EmbedderConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	BatchSize int    `yaml:"batch_size"`
}

type ChunkerConfig struct {
	Type         string `yaml:"type"`
	Separator    string `yaml:"separator"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type RetrieverConfig struct {
	Backend string `yaml:"backend"`
	TopK    int    `yaml:"top_k"`
}

// DatabaseConfig is only read when the retriever backend is pgvector.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	SessionTTL      time.Duration `yaml:"session_ttl"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type UIConfig struct {
	PageTitle string `yaml:"page_title"`
	PageIcon  string `yaml:"page_icon"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// APIKey resolves the LLM credential from the environment.
func (c LLMConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// APIKey resolves the embedder credential from the environment.
func (c EmbedderConfig) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

// ConvertSystemToHuman reports whether system prompts are folded into the human message.
func (c LLMConfig) ConvertSystemToHuman() bool {
	return c.SystemAsHuman == nil || *c.SystemAsHuman
}

// LoadConfig reads the YAML config at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := seed()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := seed()
	applyDefaults(&cfg)
	return &cfg
}

// seed holds defaults for fields where zero is a valid setting. They are set
// before decoding so an explicit zero in the file is kept.
func seed() Config {
	return Config{Chunker: ChunkerConfig{ChunkOverlap: 200}}
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderGoogleAI
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case ProviderGoogleAI:
			cfg.LLM.Model = "gemini-1.5-flash"
		case ProviderOpenAI:
			cfg.LLM.Model = "gpt-4o-mini"
		case ProviderOllama:
			cfg.LLM.Model = "llama3.1"
		}
	}
	if cfg.LLM.APIKeyEnv == "" {
		switch cfg.LLM.Provider {
		case ProviderGoogleAI:
			cfg.LLM.APIKeyEnv = "GOOGLE_API_KEY"
		case ProviderOpenAI:
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		}
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}

	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = ProviderOllama
	}
	if cfg.Embedder.Model == "" {
		switch cfg.Embedder.Provider {
		case ProviderOllama:
			cfg.Embedder.Model = "all-minilm"
		case ProviderOpenAI:
			cfg.Embedder.Model = "text-embedding-3-small"
		case ProviderGoogleAI:
			cfg.Embedder.Model = "text-embedding-004"
		}
	}
	if cfg.Embedder.APIKeyEnv == "" {
		switch cfg.Embedder.Provider {
		case ProviderOpenAI:
			cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
		case ProviderGoogleAI:
			cfg.Embedder.APIKeyEnv = "GOOGLE_API_KEY"
		}
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = ChunkerWindow
	}
	if cfg.Chunker.Separator == "" {
		cfg.Chunker.Separator = "\n"
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1000
	}

	if cfg.Retriever.Backend == "" {
		cfg.Retriever.Backend = BackendChromem
	}
	if cfg.Retriever.TopK == 0 {
		cfg.Retriever.TopK = 4
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPgdriver
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = 30 * time.Minute
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 5 * time.Second
	}

	if cfg.UI.PageTitle == "" {
		cfg.UI.PageTitle = "Chat with multiple PDFs"
	}
	if cfg.UI.PageIcon == "" {
		cfg.UI.PageIcon = "📚"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGoogleAI, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown llm provider: %s", c.LLM.Provider)
	}
	switch c.Embedder.Provider {
	case ProviderGoogleAI, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown embedder provider: %s", c.Embedder.Provider)
	}
	switch c.Chunker.Type {
	case ChunkerWindow, ChunkerRecursive:
	default:
		return fmt.Errorf("unknown chunker: %s", c.Chunker.Type)
	}
	if c.Chunker.ChunkSize < 0 || c.Chunker.ChunkOverlap < 0 {
		return errors.New("chunk size and overlap must not be negative")
	}
	if c.Chunker.ChunkOverlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.Chunker.ChunkOverlap, c.Chunker.ChunkSize)
	}
	switch c.Retriever.Backend {
	case BackendChromem:
	case BackendPgvector:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for the pgvector backend")
		}
		switch c.Database.Driver {
		case DriverPgdriver, DriverPq:
		default:
			return fmt.Errorf("unknown database driver: %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown retriever backend: %s", c.Retriever.Backend)
	}
	if c.Retriever.TopK < 0 {
		return errors.New("top_k must not be negative")
	}
	return nil
}
