package chromemdb

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/index"
	"document-qa/internal/models"
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaChunkID = "chunk_id"
	metaStart   = "start"
	metaSeq     = "seq"
)

// VectorDBManager keeps index entries in an in-memory chromem-go collection.
// It satisfies index.Store.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embed          chromem.EmbeddingFunc
	seq            int
}

// NewVectorDBManager creates an in-memory database with one collection.
// embed is only called by chromem for documents or queries without a vector;
// index.Index always supplies vectors.
func NewVectorDBManager(collectionName string, embed chromem.EmbeddingFunc) (*VectorDBManager, error) {
	m := &VectorDBManager{
		db:             chromem.NewDB(),
		collectionName: collectionName,
		embed:          embed,
	}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Add stores entries as chromem documents, numbered in insertion order.
func (m *VectorDBManager) Add(ctx context.Context, entries []index.Entry) error {
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		seq := m.seq + i
		docs[i] = chromem.Document{
			ID:        strconv.Itoa(seq),
			Content:   e.Chunk.Content,
			Metadata:  createMetadata(e.Chunk, seq),
			Embedding: append([]float32(nil), e.Vector...),
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	m.seq += len(entries)
	return nil
}

// Search asks chromem for every document, then re-ranks so that equal scores
// keep insertion order, and returns the top k.
func (m *VectorDBManager) Search(ctx context.Context, query []float32, k int) ([]models.SearchResult, error) {
	n := m.collection.Count()
	if n == 0 {
		return nil, nil
	}
	results, err := m.collection.QueryEmbedding(ctx, query, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	type ranked struct {
		seq    int
		result models.SearchResult
	}
	out := make([]ranked, len(results))
	for i, r := range results {
		chunk, seq := chunkFromResult(r)
		score := float64(r.Similarity)
		// chromem normalises vectors; a zero vector comes back as NaN
		if math.IsNaN(score) {
			score = 0
		}
		out[i] = ranked{seq: seq, result: models.SearchResult{Chunk: chunk, Score: score}}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].result.Score != out[j].result.Score {
			return out[i].result.Score > out[j].result.Score
		}
		return out[i].seq < out[j].seq
	})
	if k < len(out) {
		out = out[:k]
	}

	log.Debug().Int("documents", n).Int("returned", len(out)).Msg("Queried chromem collection")

	final := make([]models.SearchResult, len(out))
	for i, r := range out {
		final[i] = r.result
	}
	return final, nil
}

func (m *VectorDBManager) Len() int { return m.collection.Count() }

// Reset drops and recreates the collection.
func (m *VectorDBManager) Reset() error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	m.seq = 0
	_, err := m.GetOrCreateCollection()
	return err
}

// meta data will have source filename, page number, chunk id, offset and sequence
func createMetadata(c models.Chunk, seq int) map[string]string {
	return map[string]string{
		metaSource:  c.Source,
		metaPage:    strconv.Itoa(c.PageNumber),
		metaChunkID: strconv.Itoa(c.ChunkID),
		metaStart:   strconv.Itoa(c.StartIndex),
		metaSeq:     strconv.Itoa(seq),
	}
}

func chunkFromResult(r chromem.Result) (models.Chunk, int) {
	atoi := func(key string) int {
		v, _ := strconv.Atoi(r.Metadata[key])
		return v
	}
	return models.Chunk{
		Content:    r.Content,
		Source:     r.Metadata[metaSource],
		PageNumber: atoi(metaPage),
		ChunkID:    atoi(metaChunkID),
		StartIndex: atoi(metaStart),
	}, atoi(metaSeq)
}
