package chunker

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"document-qa/internal/models"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "lorem"
	}
	return strings.Join(parts, " ")
}

func checkChunks(t *testing.T, page string, chunks []models.Chunk, opts Options) {
	t.Helper()
	runes := []rune(page)
	for i, c := range chunks {
		n := utf8.RuneCountInString(c.Content)
		if n == 0 || n > opts.ChunkSize {
			t.Fatalf("chunk %d has %d characters, size %d", i, n, opts.ChunkSize)
		}
		if c.StartIndex < 0 || c.StartIndex+n > len(runes) {
			t.Fatalf("chunk %d out of range: start %d len %d", i, c.StartIndex, n)
		}
		if got := string(runes[c.StartIndex : c.StartIndex+n]); got != c.Content {
			t.Fatalf("chunk %d content does not match page at offset %d", i, c.StartIndex)
		}
		if c.ChunkID != i+1 {
			t.Fatalf("chunk %d has id %d", i, c.ChunkID)
		}
		if i > 0 {
			prev := chunks[i-1]
			prevEnd := prev.StartIndex + utf8.RuneCountInString(prev.Content)
			if c.StartIndex != prevEnd-opts.ChunkOverlap {
				t.Fatalf("chunk %d starts at %d, want %d", i, c.StartIndex, prevEnd-opts.ChunkOverlap)
			}
			if c.StartIndex <= prev.StartIndex {
				t.Fatalf("chunk %d does not advance", i)
			}
		}
	}
}

func TestSplitShortPageIsOneChunk(t *testing.T) {
	pages := []models.Page{{Number: 1, Text: "The sky is blue."}}
	chunks, err := Split("sky.pdf", pages, DefaultOptions())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Content != "The sky is blue." || c.Source != "sky.pdf" || c.PageNumber != 1 || c.StartIndex != 0 {
		t.Fatalf("unexpected chunk %+v", c)
	}
}

func TestSplitBoundsAndOverlap(t *testing.T) {
	opts := Options{ChunkSize: 100, ChunkOverlap: 20}
	page := words(300)
	chunks, err := Split("doc", []models.Page{{Number: 1, Text: page}}, opts)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	checkChunks(t, page, chunks, opts)

	last := chunks[len(chunks)-1]
	if last.StartIndex+utf8.RuneCountInString(last.Content) != utf8.RuneCountInString(page) {
		t.Fatalf("last chunk does not reach the end of the page")
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	first := strings.Repeat("a", 60) + ". " + strings.Repeat("b", 10)
	second := strings.Repeat("c", 50)
	page := first + "\n\n" + second
	opts := Options{ChunkSize: 100, ChunkOverlap: 10}

	chunks, err := Split("doc", []models.Page{{Number: 1, Text: page}}, opts)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected 2 or more chunks, got %d", len(chunks))
	}
	if chunks[0].Content != first+"\n\n" {
		t.Fatalf("first chunk should end at the paragraph break, got %q", chunks[0].Content)
	}
	checkChunks(t, page, chunks, opts)
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	page := strings.Repeat("x", 250)
	opts := Options{ChunkSize: 100, ChunkOverlap: 0}
	chunks, err := Split("doc", []models.Page{{Number: 1, Text: page}}, opts)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].StartIndex != 0 || chunks[1].StartIndex != 100 || chunks[2].StartIndex != 200 {
		t.Fatalf("unexpected offsets %d %d %d", chunks[0].StartIndex, chunks[1].StartIndex, chunks[2].StartIndex)
	}
	checkChunks(t, page, chunks, opts)
}

func TestSplitDoesNotOverlapAcrossPages(t *testing.T) {
	opts := Options{ChunkSize: 50, ChunkOverlap: 10}
	pages := []models.Page{
		{Number: 1, Text: words(30)},
		{Number: 2, Text: words(30)},
	}
	chunks, err := Split("doc", pages, opts)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var second []models.Chunk
	for _, c := range chunks {
		if c.PageNumber == 2 {
			second = append(second, c)
		}
	}
	if len(second) == 0 {
		t.Fatalf("no chunks for page 2")
	}
	if second[0].StartIndex != 0 || second[0].ChunkID != 1 {
		t.Fatalf("page 2 should restart at offset 0 and id 1, got %+v", second[0])
	}
	checkChunks(t, pages[1].Text, second, opts)
}

func TestSplitSkipsBlankPagesAndTrimsEdges(t *testing.T) {
	pages := []models.Page{
		{Number: 1, Text: "  \n\t "},
		{Number: 2, Text: "\n\n  hello world  \n"},
	}
	chunks, err := Split("doc", pages, DefaultOptions())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "hello world" || chunks[0].StartIndex != 4 || chunks[0].PageNumber != 2 {
		t.Fatalf("unexpected chunk %+v", chunks[0])
	}
}

func TestSplitCountsCharactersNotBytes(t *testing.T) {
	page := strings.Repeat("é", 150)
	opts := Options{ChunkSize: 100, ChunkOverlap: 10}
	chunks, err := Split("doc", []models.Page{{Number: 1, Text: page}}, opts)
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if utf8.RuneCountInString(chunks[0].Content) != 100 || chunks[1].StartIndex != 90 {
		t.Fatalf("unexpected split: %d chars, next at %d", utf8.RuneCountInString(chunks[0].Content), chunks[1].StartIndex)
	}
	checkChunks(t, page, chunks, opts)
}

func TestSplitRejectsInvalidOptions(t *testing.T) {
	pages := []models.Page{{Number: 1, Text: "text"}}
	for _, opts := range []Options{
		{ChunkSize: 0, ChunkOverlap: 0},
		{ChunkSize: 10, ChunkOverlap: 10},
		{ChunkSize: 10, ChunkOverlap: -1},
	} {
		if _, err := Split("doc", pages, opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("options %+v: expected ErrInvalidOptions, got %v", opts, err)
		}
	}
}

func TestSplitNoPages(t *testing.T) {
	chunks, err := Split("doc", nil, DefaultOptions())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks, got %d", len(chunks))
	}
}
