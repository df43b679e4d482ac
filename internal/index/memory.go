package index

import (
	"context"
	"math"
	"sort"

	"document-qa/internal/models"
)

// MemoryStore is a flat slice searched by brute-force cosine similarity.
type MemoryStore struct {
	entries []Entry
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Add(_ context.Context, entries []Entry) error {
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, k int) ([]models.SearchResult, error) {
	results := make([]models.SearchResult, len(s.entries))
	for i, e := range s.entries {
		results[i] = models.SearchResult{Chunk: e.Chunk, Score: Cosine(query, e.Vector)}
	}
	return rank(results, k), nil
}

func (s *MemoryStore) Len() int { return len(s.entries) }

func (s *MemoryStore) Reset() error {
	s.entries = nil
	return nil
}

// rank orders results by score, highest first, keeping the incoming order for
// equal scores, and keeps at most k of them.
func rank(results []models.SearchResult, k int) []models.SearchResult {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if k < len(results) {
		results = results[:k]
	}
	return results
}

// Cosine returns the cosine similarity of a and b. Mismatched lengths and
// zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
