package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"document-qa/internal/models"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderHash   = "hash"

	StoreMemory  = "memory"
	StoreChromem = "chromem"

	// DefaultPath is the config file used when no -config flag is given.
	DefaultPath = "./configs/config.yaml"

	defaultSessionTTL = 30 * time.Minute

	keyEnv       = "DOCQA_LLM_KEY"
	openAIKeyEnv = "OPENAI_API_KEY"
)

type Config struct {
	LogLevel     string       `yaml:"log_level" toml:"log_level"`
	EmbedLLM     LLMConfig    `yaml:"embed_llm" toml:"embed_llm"`
	InferenceLLM LLMConfig    `yaml:"inference_llm" toml:"inference_llm"`
	RAG          RAGConfig    `yaml:"rag" toml:"rag"`
	Server       ServerConfig `yaml:"server" toml:"server"`
}

type LLMConfig struct {
	Provider    string  `yaml:"provider" toml:"provider"`
	BaseURL     string  `yaml:"base_url" toml:"base_url"`
	Model       string  `yaml:"model" toml:"model"`
	Key         string  `yaml:"key" toml:"key"`
	TimeoutSecs int     `yaml:"timeout_secs" toml:"timeout_secs"`
	Temperature float64 `yaml:"temperature" toml:"temperature"`
	// Dimension is only used by the hash provider.
	Dimension int `yaml:"dimension" toml:"dimension"`
}

type RAGConfig struct {
	ChunkSize    int    `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap" toml:"chunk_overlap"`
	TopK         int    `yaml:"top_k" toml:"top_k"`
	Store        string `yaml:"store" toml:"store"`
	UploadDir    string `yaml:"upload_dir" toml:"upload_dir"`
}

type ServerConfig struct {
	Addr    string `yaml:"addr" toml:"addr"`
	GinMode string `yaml:"gin_mode" toml:"gin_mode"`
	// SessionTTL is how long an idle browser session is kept, e.g. "30m".
	SessionTTL time.Duration `yaml:"session_ttl" toml:"session_ttl"`
}

// LoadConfig reads a YAML or TOML config file. Only the default path may be
// missing, in which case the defaults are used.
func LoadConfig(path string) (*Config, error) {
	return loadConfig(path, filepath.Clean(path) == filepath.Clean(DefaultPath))
}

func loadConfig(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case optional && errors.Is(err, os.ErrNotExist):
		applyEnv(cfg)
		return cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for _, llm := range []*LLMConfig{&cfg.EmbedLLM, &cfg.InferenceLLM} {
		if llm.Provider == "" {
			llm.Provider = ProviderOllama
		}
		if llm.Model == "" && llm.Provider != ProviderHash {
			llm.Model = "deepseek-r1:1.5b"
		}
		if llm.BaseURL == "" && llm.Provider == ProviderOllama {
			llm.BaseURL = "http://localhost:11434"
		}
	}
	if cfg.EmbedLLM.Provider == ProviderHash && cfg.EmbedLLM.Dimension == 0 {
		cfg.EmbedLLM.Dimension = 256
	}
	if cfg.InferenceLLM.TimeoutSecs == 0 {
		cfg.InferenceLLM.TimeoutSecs = 120
	}
	if cfg.RAG.ChunkSize == 0 {
		cfg.RAG.ChunkSize = models.DefaultChunkSize
		if cfg.RAG.ChunkOverlap == 0 {
			cfg.RAG.ChunkOverlap = models.DefaultChunkOverlap
		}
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = models.DefaultTopK
	}
	if cfg.RAG.Store == "" {
		cfg.RAG.Store = StoreMemory
	}
	if cfg.RAG.UploadDir == "" {
		cfg.RAG.UploadDir = models.DefaultUploadDir
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8501"
	}
	if cfg.Server.GinMode == "" {
		cfg.Server.GinMode = "release"
	}
	if cfg.Server.SessionTTL == 0 {
		cfg.Server.SessionTTL = defaultSessionTTL
	}
}

func applyEnv(cfg *Config) {
	key := os.Getenv(keyEnv)
	if key == "" {
		key = os.Getenv(openAIKeyEnv)
	}
	if key == "" {
		return
	}
	for _, llm := range []*LLMConfig{&cfg.EmbedLLM, &cfg.InferenceLLM} {
		if llm.Key == "" {
			llm.Key = key
		}
	}
}

func (c *Config) Validate() error {
	if c.RAG.ChunkSize <= 0 {
		return fmt.Errorf("rag.chunk_size must be positive, got %d", c.RAG.ChunkSize)
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, %d), got %d", c.RAG.ChunkSize, c.RAG.ChunkOverlap)
	}
	if c.RAG.TopK <= 0 {
		return fmt.Errorf("rag.top_k must be positive, got %d", c.RAG.TopK)
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_ttl must not be negative, got %s", c.Server.SessionTTL)
	}
	switch c.RAG.Store {
	case StoreMemory, StoreChromem:
	default:
		return fmt.Errorf("unknown rag.store %q", c.RAG.Store)
	}
	switch c.EmbedLLM.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderHash:
	default:
		return fmt.Errorf("unknown embed_llm.provider %q", c.EmbedLLM.Provider)
	}
	switch c.InferenceLLM.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown inference_llm.provider %q", c.InferenceLLM.Provider)
	}
	return nil
}
