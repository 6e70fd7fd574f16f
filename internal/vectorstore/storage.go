package vectorstore

import (
	"context"

	"edubot/internal/domain"
)

// Index is a searchable snapshot of embedded chunks.
type Index interface {
	// Search returns up to k chunks ordered by descending similarity.
	Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error)
	Len() int
	// Save replaces the file at path with the whole index.
	Save(path string) error
}

// Store builds fresh indexes and reopens persisted ones. Indexes are tied
// to the embedder that produced their vectors.
type Store interface {
	Build(ctx context.Context, embedder string, chunks []domain.Chunk, vectors [][]float32) (Index, error)
	// Open fails with domain.ErrNoIndex when path is missing and with
	// domain.ErrStaleIndex when it cannot serve queries for embedder.
	Open(path, embedder string) (Index, error)
}
