package domain

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// MetaSource is the metadata key naming where a document came from.
const MetaSource = "source"

// FileKind is the declared type of an uploaded file.
type FileKind int

const (
	KindUnsupported FileKind = iota
	KindText
	KindPDF
)

func (k FileKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

// Upload is a user-supplied file, held in memory for the duration of an ingestion.
type Upload struct {
	Name    string
	Content []byte
}

// Kind routes an upload by its extension.
func (u Upload) Kind() FileKind {
	switch strings.ToLower(filepath.Ext(u.Name)) {
	case ".txt":
		return KindText
	case ".pdf":
		return KindPDF
	default:
		return KindUnsupported
	}
}

// Document is loaded text tagged with provenance metadata.
type Document struct {
	Content  string
	Metadata map[string]string
}

// Source returns the document's provenance identifier.
func (d Document) Source() string {
	return d.Metadata[MetaSource]
}

// Chunk is a bounded slice of a document's text. It carries the parent's metadata.
type Chunk struct {
	ID       string
	Text     string
	Index    int
	Metadata map[string]string
}

// Source returns the provenance identifier inherited from the parent document.
func (c Chunk) Source() string {
	return c.Metadata[MetaSource]
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is the outcome of a question against the index.
type Answer struct {
	Question string
	Text     string
	Sources  []string
	Chunks   []SearchResult
}

// IngestReport summarises a completed ingestion run.
type IngestReport struct {
	Kind      string
	Documents int
	Chunks    int
	Sources   []string
	Summary   string
	IndexPath string
	Duration  time.Duration
}

// Embedder converts free text into vectors. Query and document embeddings
// must share one dimension.
type Embedder interface {
	Name() string
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(docs []Document) ([]Chunk, error)
}

// Answerer produces an answer to a question grounded in the retrieved chunks.
type Answerer interface {
	Answer(ctx context.Context, question string, chunks []SearchResult) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
