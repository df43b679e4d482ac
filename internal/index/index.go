// Package index holds the per-session vector index: chunks, their embeddings
// and exhaustive cosine-similarity search over them.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/models"
)

// Entry is a chunk together with its embedding.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Store keeps entries in insertion order and ranks them against a query
// vector. Results are sorted by score, highest first, with ties in insertion
// order.
type Store interface {
	Add(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error)
	Len() int
	Reset() error
}

// Index embeds chunks and queries with one embedder and keeps the vectors in
// a Store. It is not safe for concurrent use.
type Index struct {
	embedder  embeddings.Embedder
	store     Store
	dimension int
}

func New(embedder embeddings.Embedder, store Store) *Index {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Index{embedder: embedder, store: store}
}

// Add embeds every chunk and stores them. Either all chunks are stored or, on
// any embedding failure, none are.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk) error {
	const op = "index chunks"
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	start := time.Now()
	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return models.NewError(models.ErrEmbedding, op, err)
	}
	if len(vectors) != len(chunks) {
		return models.Errorf(models.ErrEmbedding, op, "got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := ix.dimension
	entries := make([]Entry, len(chunks))
	for i, v := range vectors {
		if len(v) == 0 {
			return models.Errorf(models.ErrEmbedding, op, "empty vector for chunk %d", i)
		}
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return models.Errorf(models.ErrEmbedding, op, "vector dimension %d, index dimension %d", len(v), dim)
		}
		entries[i] = Entry{Chunk: chunks[i], Vector: v}
	}

	if err := ix.store.Add(ctx, entries); err != nil {
		return fmt.Errorf("failed to store %d entries: %w", len(entries), err)
	}
	ix.dimension = dim

	log.Debug().
		Int("chunks", len(chunks)).
		Int("dimension", dim).
		Dur("took", time.Since(start)).
		Msg("Indexed chunks")
	return nil
}

// Search returns the k chunks most similar to query, or every chunk when the
// index holds fewer than k.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]models.SearchResult, error) {
	const op = "search"
	if k <= 0 {
		return nil, models.Errorf(models.ErrInvalidInput, op, "k must be positive, got %d", k)
	}
	if ix.store.Len() == 0 {
		return nil, models.NewError(models.ErrEmptyIndex, op, nil)
	}

	vector, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, models.NewError(models.ErrEmbedding, op, err)
	}
	if len(vector) != ix.dimension {
		return nil, models.Errorf(models.ErrEmbedding, op, "query dimension %d, index dimension %d", len(vector), ix.dimension)
	}
	return ix.store.Search(ctx, vector, k)
}

func (ix *Index) Len() int { return ix.store.Len() }

// Reset drops every entry.
func (ix *Index) Reset() error {
	if err := ix.store.Reset(); err != nil {
		return err
	}
	ix.dimension = 0
	return nil
}
