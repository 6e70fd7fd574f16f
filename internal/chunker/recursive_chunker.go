package chunker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"edubot/internal/domain"
)

const (
	DefaultChunkSize = 3000
	MetaChunkIndex   = "chunk_index"
)

// DefaultSeparators split at paragraph, line, sentence and clause boundaries, in that order.
var DefaultSeparators = []string{"\n\n", "\n", ".", ","}

// chunkNamespace scopes chunk IDs so they cannot collide with other UUIDv5 users.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("edubot:chunk"))

var ErrInvalidOptions = errors.New("invalid chunker options")

// RecursiveChunker splits documents with langchaingo's recursive character
// splitter. Chunk lengths are counted in runes.
type RecursiveChunker struct {
	splitter textsplitter.RecursiveCharacter
}

var _ domain.Chunker = (*RecursiveChunker)(nil)

func NewRecursiveChunker(chunkSize, chunkOverlap int, separators []string) (*RecursiveChunker, error) {
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	if len(separators) == 0 {
		separators = DefaultSeparators
	}
	if chunkSize < 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size=%d overlap=%d", ErrInvalidOptions, chunkSize, chunkOverlap)
	}
	return &RecursiveChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithSeparators(separators),
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithKeepSeparator(true),
		),
	}, nil
}

// ChunkSize returns the configured maximum chunk length.
func (c *RecursiveChunker) ChunkSize() int { return c.splitter.ChunkSize }

// Chunk splits docs in order. Every chunk gets a copy of its document's
// metadata plus its position in the run, and an ID derived from both.
func (c *RecursiveChunker) Chunk(docs []domain.Document) ([]domain.Chunk, error) {
	in := make([]schema.Document, 0, len(docs))
	for _, d := range docs {
		meta := make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = v
		}
		in = append(in, schema.Document{PageContent: d.Content, Metadata: meta})
	}

	split, err := textsplitter.SplitDocuments(c.splitter, in)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(split))
	for _, s := range split {
		text := strings.TrimSpace(s.PageContent)
		if text == "" {
			continue
		}
		i := len(chunks)
		meta := make(map[string]string, len(s.Metadata)+1)
		for k, v := range s.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		meta[MetaChunkIndex] = strconv.Itoa(i)
		chunks = append(chunks, domain.Chunk{
			ID:       ChunkID(meta[domain.MetaSource], i),
			Text:     text,
			Index:    i,
			Metadata: meta,
		})
	}
	return chunks, nil
}

// ChunkID is stable across runs over the same sources.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}
