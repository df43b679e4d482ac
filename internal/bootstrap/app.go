package bootstrap

import (
	"fmt"
	"time"

	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chromemdb"
	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/index"
	"document-qa/internal/llmservice"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/session"
)

const collectionName = "document_chunks"

// App holds the model clients shared by every session. Each session gets its
// own index through NewPipeline.
type App struct {
	Config   *config.Config
	Embedder embeddings.Embedder
	LLM      llmservice.Completer

	StartedAt time.Time
}

func New(cfg *config.Config) (*App, error) {
	embedder, err := embedding.New(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	llm, err := llmservice.New(&cfg.InferenceLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}
	return NewWithClients(cfg, embedder, llm), nil
}

// NewWithClients wires already built model clients.
func NewWithClients(cfg *config.Config, embedder embeddings.Embedder, llm llmservice.Completer) *App {
	return &App{Config: cfg, Embedder: embedder, LLM: llm, StartedAt: time.Now()}
}

// NewPipeline builds a pipeline with a fresh, empty index.
func (a *App) NewPipeline() (*rag.Pipeline, error) {
	var store index.Store
	switch a.Config.RAG.Store {
	case config.StoreChromem:
		db, err := chromemdb.NewVectorDBManager(collectionName, a.Embedder.EmbedQuery)
		if err != nil {
			return nil, err
		}
		store = db
	default:
		store = index.NewMemoryStore()
	}

	timeout := time.Duration(a.Config.InferenceLLM.TimeoutSecs) * time.Second
	return rag.NewPipeline(
		parser.FileParser{},
		chunker.Options{ChunkSize: a.Config.RAG.ChunkSize, ChunkOverlap: a.Config.RAG.ChunkOverlap},
		index.New(a.Embedder, store),
		rag.NewAnswerer(a.LLM, timeout),
		a.Config.RAG.TopK,
	), nil
}

// NewSession builds a standalone session, as used by the CLI and the TUI.
func (a *App) NewSession(id string) (*session.Session, error) {
	p, err := a.NewPipeline()
	if err != nil {
		return nil, err
	}
	return session.New(id, p, a.Config.RAG.UploadDir), nil
}

// NewManager returns a session manager whose sessions own their pipelines.
func (a *App) NewManager() *session.Manager {
	return session.NewManager(func() (session.Pipeline, error) {
		return a.NewPipeline()
	}, a.Config.RAG.UploadDir, a.Config.Server.SessionTTL)
}
