package chromem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"edubot/internal/domain"
	"edubot/internal/logging"
	"edubot/internal/vectorstore"
)

const metaChunkIndex = "chunk_index"

// errNoEmbeddingFunc guards against chromem falling back to its default
// remote embedding function; every vector is computed by our embedder.
var errNoEmbeddingFunc = errors.New("index embeds nothing itself; pass precomputed vectors")

func noEmbedding(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }

// Store builds chromem-go indexes and persists them as a single gob file.
type Store struct {
	compress bool
	logger   *zap.Logger
}

var _ vectorstore.Store = (*Store)(nil)

func NewStore(compress bool, logger *zap.Logger) *Store {
	return &Store{compress: compress, logger: logging.OrNop(logger)}
}

// Index is one chromem collection, named after the embedder that produced it.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
	compress   bool
	logger     *zap.Logger
}

var _ vectorstore.Index = (*Index)(nil)

// Build creates an index from scratch; nothing from a previous index survives.
func (s *Store) Build(ctx context.Context, embedder string, chunks []domain.Chunk, vectors [][]float32) (vectorstore.Index, error) {
	if len(chunks) == 0 {
		return nil, errors.New("cannot build an index without chunks")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	dim := len(vectors[0])
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != dim || dim == 0 {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), dim)
		}
		meta := make(map[string]string, len(ch.Metadata)+1)
		for k, v := range ch.Metadata {
			meta[k] = v
		}
		meta[metaChunkIndex] = strconv.Itoa(ch.Index)
		docs[i] = chromem.Document{ID: ch.ID, Metadata: meta, Embedding: vectors[i], Content: ch.Text}
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(embedder, map[string]string{
		"embedder":  embedder,
		"dimension": strconv.Itoa(dim),
	}, noEmbedding)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("add documents: %w", err)
	}

	s.logger.Info("index built",
		zap.String("embedder", embedder),
		zap.Int("chunks", collection.Count()),
		zap.Int("dimension", dim))
	return &Index{db: db, collection: collection, compress: s.compress, logger: s.logger}, nil
}

// Open loads the whole index file at path.
func (s *Store) Open(path, embedder string) (vectorstore.Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", domain.ErrNoIndex, path)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrStaleIndex, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrStaleIndex, path)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStaleIndex, err)
	}

	collection := db.GetCollection(embedder, noEmbedding)
	if collection == nil {
		built := make([]string, 0, 1)
		for name := range db.ListCollections() {
			built = append(built, name)
		}
		return nil, fmt.Errorf("%w: built with %v, querying with %s", domain.ErrStaleIndex, built, embedder)
	}
	if collection.Count() == 0 {
		return nil, fmt.Errorf("%w: index is empty", domain.ErrStaleIndex)
	}

	s.logger.Debug("index opened", zap.String("path", path), zap.Int("chunks", collection.Count()))
	return &Index{db: db, collection: collection, compress: s.compress, logger: s.logger}, nil
}

func (x *Index) Len() int { return x.collection.Count() }

// Search clamps k to the index size. The whole collection is ranked before
// cutting to k: chromem breaks similarity ties in no fixed order, so the
// cut is made after ordering ties by chunk position and ID.
func (x *Index) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	n := x.collection.Count()
	if k > n {
		k = n
	}
	results, err := x.collection.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: query: %w", domain.ErrStaleIndex, err)
	}

	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		idx, _ := strconv.Atoi(r.Metadata[metaChunkIndex])
		meta := make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		out = append(out, domain.SearchResult{
			Chunk: domain.Chunk{ID: r.ID, Text: r.Content, Index: idx, Metadata: meta},
			Score: float64(r.Similarity),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Chunk.Index != out[j].Chunk.Index {
			return out[i].Chunk.Index < out[j].Chunk.Index
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	return out[:k], nil
}

// Save writes the index to a temporary file beside path and renames it over
// path, so readers see either the old index or the new one.
func (x *Index) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp index file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := x.db.ExportToWriter(tmp, x.compress, "", x.collection.Name); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export index: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync index file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	x.logger.Info("index saved", zap.String("path", path), zap.Int("chunks", x.Len()), zap.Bool("compressed", x.compress))
	return nil
}
