package models

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultTopK         = 3
	DefaultUploadDir    = "document_store/pdfs"

	ContextSeparator = "\n\n"

	QueryVar   = "user_query"
	ContextVar = "document_context"
)

var (
	// PromptTemplate is rendered with Go template syntax by langchaingo prompts.
	PromptTemplate = `
You are an expert research assistant. Use the provided context to answer the query. 
If unsure, state that you don't know. Be concise and factual (max 3 sentences).

Query: {{.user_query}}
Context: {{.document_context}}
Answer:
`
)
