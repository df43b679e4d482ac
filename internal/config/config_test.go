package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"document-qa/internal/models"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
log_level: debug
embed_llm:
  provider: hash
inference_llm:
  provider: openai
  model: gpt-4o-mini
  key: sk-test
rag:
  chunk_size: 500
  chunk_overlap: 50
  top_k: 5
  store: chromem
server:
  session_ttl: 10m
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "debug" || cfg.EmbedLLM.Provider != ProviderHash || cfg.EmbedLLM.Dimension != 256 {
		t.Fatalf("unexpected embed config %+v", cfg.EmbedLLM)
	}
	if cfg.InferenceLLM.Model != "gpt-4o-mini" || cfg.InferenceLLM.Key != "sk-test" || cfg.InferenceLLM.TimeoutSecs != 120 {
		t.Fatalf("unexpected inference config %+v", cfg.InferenceLLM)
	}
	if cfg.RAG.ChunkSize != 500 || cfg.RAG.ChunkOverlap != 50 || cfg.RAG.TopK != 5 || cfg.RAG.Store != StoreChromem {
		t.Fatalf("unexpected rag config %+v", cfg.RAG)
	}
	if cfg.Server.SessionTTL != 10*time.Minute {
		t.Fatalf("session ttl %s, want 10m", cfg.Server.SessionTTL)
	}
	if cfg.RAG.UploadDir != models.DefaultUploadDir || cfg.Server.Addr != ":8501" {
		t.Fatalf("defaults not applied: %+v %+v", cfg.RAG, cfg.Server)
	}
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
log_level = "warn"

[inference_llm]
provider = "ollama"
model = "llama3"

[rag]
top_k = 2

[server]
addr = "127.0.0.1:9000"
session_ttl = "1h"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.LogLevel != "warn" || cfg.InferenceLLM.Model != "llama3" || cfg.RAG.TopK != 2 || cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Server.SessionTTL != time.Hour {
		t.Fatalf("session ttl %s, want 1h", cfg.Server.SessionTTL)
	}
	if cfg.RAG.ChunkSize != models.DefaultChunkSize || cfg.RAG.ChunkOverlap != models.DefaultChunkOverlap {
		t.Fatalf("chunk defaults not applied: %+v", cfg.RAG)
	}
}

func TestLoadConfigMissingExplicitPath(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "conifg.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a not-exist error for a mistyped path, got %v", err)
	}
}

func TestLoadConfigMissingDefaultPathUsesDefaults(t *testing.T) {
	// tests run in the package dir, which has no configs/ folder
	if _, err := os.Stat(DefaultPath); !errors.Is(err, os.ErrNotExist) {
		t.Skipf("%s exists in the test dir", DefaultPath)
	}
	cfg, err := LoadConfig(DefaultPath)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.SessionTTL != 30*time.Minute {
		t.Fatalf("session ttl default %s", cfg.Server.SessionTTL)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.RAG.ChunkSize != 1000 || cfg.RAG.ChunkOverlap != 200 || cfg.RAG.TopK != 3 {
		t.Fatalf("unexpected defaults %+v", cfg.RAG)
	}
	if cfg.InferenceLLM.Provider != ProviderOllama || cfg.InferenceLLM.BaseURL != "http://localhost:11434" {
		t.Fatalf("unexpected llm defaults %+v", cfg.InferenceLLM)
	}
}

func TestLoadConfigKeyFromEnv(t *testing.T) {
	t.Setenv(keyEnv, "")
	t.Setenv(openAIKeyEnv, "sk-env")
	path := writeConfig(t, "config.yaml", "inference_llm:\n  provider: openai\n  key: sk-file\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.InferenceLLM.Key != "sk-file" {
		t.Fatalf("file key should win, got %q", cfg.InferenceLLM.Key)
	}
	if cfg.EmbedLLM.Key != "sk-env" {
		t.Fatalf("env key not applied, got %q", cfg.EmbedLLM.Key)
	}

	t.Setenv(keyEnv, "sk-docqa")
	cfg, err = loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.InferenceLLM.Key != "sk-docqa" {
		t.Fatalf("DOCQA key should take precedence, got %q", cfg.InferenceLLM.Key)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"overlap too large": "rag:\n  chunk_size: 100\n  chunk_overlap: 100\n",
		"negative top_k":    "rag:\n  top_k: -1\n",
		"unknown store":     "rag:\n  store: redis\n",
		"hash inference":    "inference_llm:\n  provider: hash\n",
		"bad yaml":          "rag: [\n",
		"negative ttl":      "server:\n  session_ttl: -1m\n",
	}
	for name, content := range cases {
		path := writeConfig(t, "config.yaml", content)
		if _, err := LoadConfig(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
