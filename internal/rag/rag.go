package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/prompts"

	"document-qa/internal/chunker"
	"document-qa/internal/index"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

var promptTemplate = prompts.NewPromptTemplate(
	models.PromptTemplate,
	[]string{models.QueryVar, models.ContextVar},
)

// BuildPrompt fills the answer template with the query and the chunk texts,
// in rank order, separated by a blank line.
func BuildPrompt(query string, chunks []models.SearchResult) (string, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Chunk.Content
	}
	return promptTemplate.Format(map[string]any{
		models.QueryVar:   query,
		models.ContextVar: strings.Join(texts, models.ContextSeparator),
	})
}

// Answerer asks the language model once per question.
type Answerer struct {
	llm     llmservice.Completer
	timeout time.Duration
}

func NewAnswerer(llm llmservice.Completer, timeout time.Duration) *Answerer {
	return &Answerer{llm: llm, timeout: timeout}
}

// Answer returns the model output verbatim. It is never retried.
func (a *Answerer) Answer(ctx context.Context, query string, chunks []models.SearchResult) (string, error) {
	const op = "answer"
	prompt, err := BuildPrompt(query, chunks)
	if err != nil {
		return "", models.NewError(models.ErrGeneration, op, err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	answer, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", models.NewError(models.ErrGeneration, op, err)
	}
	return answer, nil
}

// Pipeline runs ingest, chunk and index for a document, and retrieve and
// answer for each question, against one owned index.
type Pipeline struct {
	parser   parser.Parser
	chunks   chunker.Options
	index    *index.Index
	answerer *Answerer
	topK     int
}

func NewPipeline(p parser.Parser, opts chunker.Options, ix *index.Index, answerer *Answerer, topK int) *Pipeline {
	if p == nil {
		p = parser.FileParser{}
	}
	if topK <= 0 {
		topK = models.DefaultTopK
	}
	return &Pipeline{parser: p, chunks: opts, index: ix, answerer: answerer, topK: topK}
}

// DocumentInfo describes a loaded document.
type DocumentInfo struct {
	Label  string
	Path   string
	Pages  int
	Chunks int
}

// LoadDocument replaces the indexed document with the one at path. On failure
// the index is left empty.
func (p *Pipeline) LoadDocument(ctx context.Context, path, label string) (DocumentInfo, error) {
	start := time.Now()
	if err := p.index.Reset(); err != nil {
		return DocumentInfo{}, fmt.Errorf("failed to reset index: %w", err)
	}

	pages, err := p.parser.LoadPages(path)
	if err != nil {
		return DocumentInfo{}, err
	}

	chunks, err := chunker.Split(label, pages, p.chunks)
	if err != nil {
		return DocumentInfo{}, models.NewError(models.ErrInvalidInput, "chunk "+label, err)
	}
	log.Debug().Str("document", label).Int("pages", len(pages)).Int("chunks", len(chunks)).Msg("Chunked document")

	if err := p.index.Add(ctx, chunks); err != nil {
		// Add is all-or-nothing, the index is still empty
		return DocumentInfo{}, err
	}

	info := DocumentInfo{Label: label, Path: path, Pages: len(pages), Chunks: len(chunks)}
	log.Info().
		Str("document", label).
		Int("pages", info.Pages).
		Int("chunks", info.Chunks).
		Dur("took", time.Since(start)).
		Msg("Document loaded")
	return info, nil
}

// Retrieve returns the top-k chunks for query.
func (p *Pipeline) Retrieve(ctx context.Context, query string) ([]models.SearchResult, error) {
	return p.index.Search(ctx, query, p.topK)
}

// Ask retrieves the most similar chunks and answers query from them.
func (p *Pipeline) Ask(ctx context.Context, query string) (*models.PromptResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.Errorf(models.ErrInvalidInput, "ask", "query is empty")
	}

	start := time.Now()
	results, err := p.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	answer, err := p.answerer.Answer(ctx, query, results)
	if err != nil {
		return nil, err
	}

	log.Info().Int("chunks", len(results)).Dur("took", time.Since(start)).Msg("Query answered")
	return &models.PromptResponse{
		Query:   query,
		Source:  formatSources(results),
		Content: answer,
		Chunks:  results,
	}, nil
}

// IndexSize is the number of chunks currently indexed.
func (p *Pipeline) IndexSize() int { return p.index.Len() }

// Reset empties the index.
func (p *Pipeline) Reset() error { return p.index.Reset() }

func formatSources(results []models.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s p.%d #%d (offset %d, score %.3f)",
			i+1, r.Chunk.Source, r.Chunk.PageNumber, r.Chunk.ChunkID, r.Chunk.StartIndex, r.Score)
	}
	return b.String()
}
