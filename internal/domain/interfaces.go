package domain

import (
	"context"
	"time"
)

// Document is the text of a single PDF page.
// A nil Page means the location is unknown; it is never treated as page 0.
type Document struct {
	Text       string
	SourceFile string
	Page       *int
}

// Chunk is a bounded fragment of one Document, carrying the page's metadata.
type Chunk struct {
	Text       string
	SourceFile string
	Page       *int
	ChunkIndex int
}

// Vector is a fixed-dimension embedding.
type Vector []float32

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector Vector
}

// SearchResult is a retrieved chunk and its cosine distance to the query.
type SearchResult struct {
	Chunk    Chunk
	Distance float64
}

// Citation points back to the file, page and text a retrieved chunk came from.
type Citation struct {
	File    string `json:"file"`
	Page    *int   `json:"page"`
	Snippet string `json:"snippet"`
}

// Retrieval is the outcome of one similarity search projected for the answering model.
type Retrieval struct {
	Context string
	Sources []Citation
}

// Prompt is what the answering model receives.
type Prompt struct {
	System   string
	Context  string
	Question string
}

// Answer is the assistant's response to a question.
type Answer struct {
	Question    string        `json:"question"`
	Text        string        `json:"answer"`
	Sources     []Citation    `json:"sources"`
	RAGDuration time.Duration `json:"-"`
	LLMDuration time.Duration `json:"-"`
}

// Loader reads the document corpus.
type Loader interface {
	Load(ctx context.Context, dir string) ([]Document, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Embedder converts free text into vectors via an external model.
// EmbedMany returns one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedMany(ctx context.Context, texts []string) ([]Vector, error)
}

// VectorIndex holds chunk vectors and answers nearest-neighbour queries.
type VectorIndex interface {
	Build(entries []IndexEntry) error
	Search(query Vector, k int) ([]SearchResult, error)
	Len() int
}

// Answerer asks a language model to answer a question from the given context.
type Answerer interface {
	Answer(ctx context.Context, prompt Prompt) (string, error)
}

// PageNumber returns a pointer to n, for building documents with a known page.
func PageNumber(n int) *int { return &n }
