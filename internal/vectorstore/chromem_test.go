package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newChromem(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestChromemStore_SearchRanksBySimilarity(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	err := s.StoreChunks(ctx, "doc-1", "a.pdf",
		[]string{"north", "east", "north-east"},
		[][]float32{{1, 0}, {0, 1}, {0.6, 0.8}},
	)
	require.NoError(t, err)

	matches, err := s.SearchSimilar(ctx, []float32{0, 1}, "doc-1", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "east", matches[0].Content)
	assert.Equal(t, "north-east", matches[1].Content)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-5)
	assert.InDelta(t, 0.8, matches[1].Similarity, 1e-5)
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)

	assert.Equal(t, "doc-1", matches[0].Metadata.DocumentID)
	assert.Equal(t, "a.pdf", matches[0].Metadata.Filename)
	assert.Equal(t, 1, matches[0].Metadata.ChunkIndex)
	assert.Equal(t, 3, matches[0].Metadata.ChunkCount)
	assert.False(t, matches[0].Metadata.CreatedAt.IsZero())
}

func TestChromemStore_NoCrossDocumentLeakage(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	require.NoError(t, s.StoreChunks(ctx, "doc-a", "a.pdf", []string{"a1"}, [][]float32{{0, 1}}))
	require.NoError(t, s.StoreChunks(ctx, "doc-b", "b.pdf", []string{"b1", "b2"}, [][]float32{{1, 0}, {1, 0}}))

	// doc-b is far more similar but must never be returned for doc-a
	matches, err := s.SearchSimilar(ctx, []float32{1, 0}, "doc-a", 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a1", matches[0].Content)

	matches, err = s.SearchSimilar(ctx, []float32{1, 0}, "unknown", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromemStore_LimitAboveCount(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	matches, err := s.SearchSimilar(ctx, []float32{1, 0}, "doc-1", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	require.NoError(t, s.StoreChunks(ctx, "doc-1", "a.pdf", []string{"only"}, [][]float32{{1, 0}}))
	matches, err = s.SearchSimilar(ctx, []float32{1, 0}, "doc-1", 50)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestChromemStore_StoreRejectsMismatch(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	err := s.StoreChunks(ctx, "doc-1", "a.pdf", []string{"one", "two"}, [][]float32{{1, 0}})
	assert.ErrorIs(t, err, ErrLengthMismatch)
	assert.Zero(t, s.chunks.Count())

	require.NoError(t, s.StoreChunks(ctx, "doc-1", "a.pdf", nil, nil))
	assert.Zero(t, s.chunks.Count())
	assert.Zero(t, s.documents.Count())
}

func TestChromemStore_DeleteIsIdempotent(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	require.NoError(t, s.StoreChunks(ctx, "doc-a", "a.pdf", []string{"a1", "a2"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.StoreChunks(ctx, "doc-b", "b.pdf", []string{"b1"}, [][]float32{{1, 0}}))

	require.NoError(t, s.DeleteDocument(ctx, "doc-a"))
	require.NoError(t, s.DeleteDocument(ctx, "doc-a"))
	require.NoError(t, s.DeleteDocument(ctx, "missing"))

	matches, err := s.SearchSimilar(ctx, []float32{1, 0}, "doc-a", 5)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = s.SearchSimilar(ctx, []float32{1, 0}, "doc-b", 5)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-b", docs[0].ID)

	assert.ErrorIs(t, s.DeleteDocument(ctx, ""), ErrEmptyDocumentID)
}

func TestChromemStore_ListDocumentsNewestFirst(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		ts := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return ts }
		require.NoError(t, s.StoreChunks(ctx, id, id+".pdf", []string{"c1", "c2"}, [][]float32{{1, 0}, {0, 1}}))
	}

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	assert.Equal(t, "third", docs[0].ID)
	assert.Equal(t, "third.pdf", docs[0].Filename)
	assert.True(t, docs[0].UploadedAt.Equal(base.Add(2*time.Minute)))
	assert.Equal(t, "second", docs[1].ID)
	assert.Equal(t, "first", docs[2].ID)
}

func TestChromemStore_PersistentPath(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewChromemStore(ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.StoreChunks(ctx, "doc-1", "a.pdf", []string{"kept"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Close(ctx))

	reopened, err := NewChromemStore(ChromemConfig{Path: dir}, zap.NewNop())
	require.NoError(t, err)

	matches, err := reopened.SearchSimilar(ctx, []float32{1, 0}, "doc-1", 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "kept", matches[0].Content)
}

func TestChromemStore_RewriteKeepsOneRecordPerChunk(t *testing.T) {
	s := newChromem(t)
	ctx := context.Background()
	chunks := []string{"c0", "c1", "c2"}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	// a retried ingestion writes the same upload again
	require.NoError(t, s.StoreChunks(ctx, "doc-1", "a.pdf", chunks[:2], vectors[:2]))
	require.NoError(t, s.StoreChunks(ctx, "doc-1", "a.pdf", chunks, vectors))

	matches, err := s.SearchSimilar(ctx, []float32{1, 0}, "doc-1", 10)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	seen := map[int]bool{}
	for _, m := range matches {
		assert.False(t, seen[m.Metadata.ChunkIndex], "chunk %d stored twice", m.Metadata.ChunkIndex)
		seen[m.Metadata.ChunkIndex] = true
	}
}
