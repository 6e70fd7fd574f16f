package chromem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edubot/internal/domain"
)

const testEmbedder = "test-4"

func fixture() ([]domain.Chunk, [][]float32) {
	chunks := []domain.Chunk{
		{ID: "c0", Text: "attention heads", Index: 0, Metadata: map[string]string{domain.MetaSource: "a.pdf", "page": "0"}},
		{ID: "c1", Text: "recurrent networks", Index: 1, Metadata: map[string]string{domain.MetaSource: "a.pdf", "page": "1"}},
		{ID: "c2", Text: "convolutional filters", Index: 2, Metadata: map[string]string{domain.MetaSource: "https://b.org"}},
	}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.6, 0, 0.8, 0},
	}
	return chunks, vectors
}

func build(t *testing.T, s *Store) *Index {
	t.Helper()
	chunks, vectors := fixture()
	idx, err := s.Build(context.Background(), testEmbedder, chunks, vectors)
	require.NoError(t, err)
	return idx.(*Index)
}

func TestBuildAndSearch(t *testing.T) {
	idx := build(t, NewStore(false, nil))
	require.Equal(t, 3, idx.Len())

	results, err := idx.Search(context.Background(), []float32{1, 0, 0.1, 0}, 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "c0", results[0].Chunk.ID)
	assert.Equal(t, "c2", results[1].Chunk.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, "attention heads", results[0].Chunk.Text)
	assert.Equal(t, "a.pdf", results[0].Chunk.Source())
	assert.Equal(t, "0", results[0].Chunk.Metadata["page"])
	assert.Equal(t, 2, results[1].Chunk.Index)
}

func TestSearch_ClampsK(t *testing.T) {
	idx := build(t, NewStore(false, nil))

	results, err := idx.Search(context.Background(), []float32{0, 1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "c1", results[0].Chunk.ID)

	results, err = idx.Search(context.Background(), []float32{0, 1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TiesAreStable(t *testing.T) {
	chunks := make([]domain.Chunk, 40)
	vectors := make([][]float32, 40)
	for i := range chunks {
		src := "a.txt"
		if i >= 20 {
			src = "b.txt"
		}
		chunks[i] = domain.Chunk{
			ID:       fmt.Sprintf("c%02d", i),
			Text:     fmt.Sprintf("chunk %d", i),
			Index:    i % 20,
			Metadata: map[string]string{domain.MetaSource: src},
		}
		vectors[i] = []float32{1, 0, 0, 0}
	}
	built, err := NewStore(false, nil).Build(context.Background(), testEmbedder, chunks, vectors)
	require.NoError(t, err)

	ids := func() []string {
		results, err := built.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
		require.NoError(t, err)
		out := make([]string, len(results))
		for i, r := range results {
			out[i] = r.Chunk.ID
		}
		return out
	}

	want := []string{"c00", "c20", "c01", "c21", "c02"}
	for range 50 {
		require.Equal(t, want, ids())
	}
}

func TestBuild_Validation(t *testing.T) {
	s := NewStore(false, nil)
	chunks, vectors := fixture()

	_, err := s.Build(context.Background(), testEmbedder, nil, nil)
	assert.Error(t, err)

	_, err = s.Build(context.Background(), testEmbedder, chunks, vectors[:2])
	assert.ErrorContains(t, err, "length mismatch")

	vectors[1] = []float32{1, 0}
	_, err = s.Build(context.Background(), testEmbedder, chunks, vectors)
	assert.ErrorContains(t, err, "dimension")
}

func TestSaveOpen_RoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		t.Run(map[bool]string{false: "plain", true: "gzip"}[compress], func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "edu_index.gob")
			s := NewStore(compress, nil)

			require.NoError(t, build(t, s).Save(path))

			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1, "no temporary files remain")

			reopened, err := s.Open(path, testEmbedder)
			require.NoError(t, err)
			assert.Equal(t, 3, reopened.Len())

			results, err := reopened.Search(context.Background(), []float32{0, 0, 1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, "c2", results[0].Chunk.ID)
			assert.Equal(t, "https://b.org", results[0].Chunk.Source())
		})
	}
}

func TestSave_ReplacesPreviousIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edu_index.gob")
	s := NewStore(false, nil)
	require.NoError(t, build(t, s).Save(path))

	next, err := s.Build(context.Background(), testEmbedder,
		[]domain.Chunk{{ID: "n0", Text: "new paper", Metadata: map[string]string{domain.MetaSource: "new.txt"}}},
		[][]float32{{0, 0, 0, 1}})
	require.NoError(t, err)
	require.NoError(t, next.Save(path))

	reopened, err := s.Open(path, testEmbedder)
	require.NoError(t, err)
	assert.Equal(t, 1, reopened.Len(), "a rebuild replaces, not merges")
}

func TestOpen_Missing(t *testing.T) {
	_, err := NewStore(false, nil).Open(filepath.Join(t.TempDir(), "none.gob"), testEmbedder)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoIndex)
	assert.NotErrorIs(t, err, domain.ErrStaleIndex)
}

func TestOpen_Stale(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(false, nil)

	corrupt := filepath.Join(dir, "corrupt.gob")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a gob stream"), 0o600))

	otherEmbedder := filepath.Join(dir, "other.gob")
	require.NoError(t, build(t, s).Save(otherEmbedder))

	for name, tc := range map[string]struct{ path, embedder string }{
		"corrupt file":       {corrupt, testEmbedder},
		"different embedder": {otherEmbedder, "openai:text-embedding-3-small"},
		"directory":          {dir, testEmbedder},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Open(tc.path, tc.embedder)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrStaleIndex)
			assert.ErrorIs(t, err, domain.ErrNoIndex, "stale indexes read as no data")
		})
	}
}
