package models

import "time"

// Page is the text extracted from one page of a source document.
type Page struct {
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
	// StartIndex is the offset, in characters, of Content within its page text.
	StartIndex int
}

// SearchResult is a chunk ranked against a query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
	Chunks  []SearchResult
}

// ChatTurn is one answered question in a session transcript.
type ChatTurn struct {
	Query     string    `json:"query"`
	Answer    string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}
