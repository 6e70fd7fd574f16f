package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/domain"
)

func doc(source, content string) domain.Document {
	return domain.Document{Content: content, Metadata: map[string]string{domain.MetaSource: source}}
}

func paper(paragraphs, sentencesPer int) string {
	var b strings.Builder
	for p := 0; p < paragraphs; p++ {
		if p > 0 {
			b.WriteString("\n\n")
		}
		for s := 0; s < sentencesPer; s++ {
			fmt.Fprintf(&b, "Paragraph %d sentence %d discusses attention, memory and retrieval. ", p, s)
		}
	}
	return b.String()
}

func newDefault(t *testing.T) *RecursiveChunker {
	t.Helper()
	c, err := NewRecursiveChunker(DefaultChunkSize, 0, DefaultSeparators)
	require.NoError(t, err)
	return c
}

func TestChunk_SizeBound(t *testing.T) {
	c := newDefault(t)

	chunks, err := c.Chunk([]domain.Document{doc("paper.pdf", paper(40, 25))})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), DefaultChunkSize)
		assert.NotEmpty(t, strings.TrimSpace(ch.Text))
	}
}

func TestChunk_SmallDocumentIsOneChunk(t *testing.T) {
	chunks, err := newDefault(t).Chunk([]domain.Document{doc("a.txt", "Para one.\n\nPara two.")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Para one.\n\nPara two.", chunks[0].Text)
}

func TestChunk_OversizedAtomicUnitPassesThrough(t *testing.T) {
	atomic := strings.Repeat("x", DefaultChunkSize+500)
	content := "Intro paragraph.\n\n" + atomic + "\n\nClosing paragraph."

	chunks, err := newDefault(t).Chunk([]domain.Document{doc("big.txt", content)})
	require.NoError(t, err)

	var oversized int
	for _, ch := range chunks {
		n := utf8.RuneCountInString(ch.Text)
		if n > DefaultChunkSize {
			oversized++
			assert.Equal(t, atomic, strings.TrimSpace(ch.Text), "an unsplittable unit is kept whole")
		}
	}
	assert.Equal(t, 1, oversized)
}

func TestChunk_FallsBackToFinerSeparators(t *testing.T) {
	c, err := NewRecursiveChunker(40, 0, DefaultSeparators)
	require.NoError(t, err)

	// One line, no paragraph or line breaks; sentences and commas must be used.
	text := "First clause here, second clause here. Third clause here, fourth clause here."
	chunks, err := c.Chunk([]domain.Document{doc("s", text)})
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Text), 40)
	}
}

func TestChunk_MetadataPropagation(t *testing.T) {
	docs := []domain.Document{
		{Content: paper(6, 20), Metadata: map[string]string{domain.MetaSource: "https://arxiv.org/abs/1706.03762"}},
		{Content: paper(3, 20), Metadata: map[string]string{domain.MetaSource: "paper.pdf", "page": "2"}},
	}

	chunks, err := newDefault(t).Chunk(docs)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, ch := range chunks {
		seen[ch.Source()]++
		if ch.Source() == "paper.pdf" {
			assert.Equal(t, "2", ch.Metadata["page"])
		}
	}
	assert.Positive(t, seen["https://arxiv.org/abs/1706.03762"])
	assert.Positive(t, seen["paper.pdf"])
	assert.Len(t, seen, 2)

	// Chunk metadata is a copy.
	chunks[0].Metadata[domain.MetaSource] = "mutated"
	assert.Equal(t, "https://arxiv.org/abs/1706.03762", docs[0].Metadata[domain.MetaSource])
}

func TestChunk_IDsAreStableAndUnique(t *testing.T) {
	docs := []domain.Document{doc("a", paper(10, 20)), doc("b", paper(10, 20))}
	c := newDefault(t)

	first, err := c.Chunk(docs)
	require.NoError(t, err)
	second, err := c.Chunk(docs)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	ids := map[string]struct{}{}
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, i, first[i].Index)
		assert.Equal(t, fmt.Sprint(i), first[i].Metadata[MetaChunkIndex])
		ids[first[i].ID] = struct{}{}
	}
	assert.Len(t, ids, len(first))
}

func TestChunk_EmptyDocuments(t *testing.T) {
	chunks, err := newDefault(t).Chunk([]domain.Document{doc("blank", "   \n\n  ")})
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = newDefault(t).Chunk(nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestNewRecursiveChunker_InvalidOptions(t *testing.T) {
	_, err := NewRecursiveChunker(100, 100, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = NewRecursiveChunker(-1, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)

	c, err := NewRecursiveChunker(0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, c.ChunkSize())
}
