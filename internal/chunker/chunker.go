// Package chunker splits page text into overlapping, bounded chunks for embedding.
//
// Sizes and offsets are counted in characters (runes), not bytes. Consecutive
// chunks of one page share exactly Options.ChunkOverlap characters; a new page
// always starts without overlap.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"document-qa/internal/models"
)

var ErrInvalidOptions = errors.New("invalid chunk options")

type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

func DefaultOptions() Options {
	return Options{ChunkSize: models.DefaultChunkSize, ChunkOverlap: models.DefaultChunkOverlap}
}

func (o Options) Validate() error {
	if o.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidOptions, o.ChunkSize)
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, %d), got %d", ErrInvalidOptions, o.ChunkSize, o.ChunkOverlap)
	}
	return nil
}

// break separators, highest preference first
var separators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
}

// Split chunks every page in order. source labels the chunks (usually the file name).
func Split(source string, pages []models.Page, opts Options) ([]models.Chunk, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	for _, page := range pages {
		for i, span := range splitText(page.Text, opts.ChunkSize, opts.ChunkOverlap) {
			chunks = append(chunks, models.Chunk{
				Content:    span.text,
				Source:     source,
				PageNumber: page.Number,
				ChunkID:    i + 1,
				StartIndex: span.start,
			})
		}
	}
	return chunks, nil
}

type span struct {
	text  string
	start int
}

func splitText(text string, size, overlap int) []span {
	runes := []rune(text)
	start, end := 0, len(runes)
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	for end > start && unicode.IsSpace(runes[end-1]) {
		end--
	}
	if start == end {
		return nil
	}

	var spans []span
	for {
		if end-start <= size {
			spans = append(spans, span{text: string(runes[start:end]), start: start})
			return spans
		}
		cut := start + breakPoint(runes[start:start+size], overlap)
		spans = append(spans, span{text: string(runes[start:cut]), start: start})
		start = cut - overlap
	}
}

// breakPoint returns the length of the chunk to take from window. The result is
// always greater than overlap so the next chunk starts further along.
func breakPoint(window []rune, overlap int) int {
	s := string(window)
	for _, group := range separators {
		best := -1
		for _, sep := range group {
			if i := strings.LastIndex(s, sep); i >= 0 {
				// keep the separator with the chunk it ends
				n := len([]rune(s[:i+len(sep)]))
				if n > best {
					best = n
				}
			}
		}
		if best > overlap {
			return best
		}
	}
	for i := len(window) - 1; i > overlap; i-- {
		if unicode.IsSpace(window[i-1]) {
			return i
		}
	}
	return len(window)
}
