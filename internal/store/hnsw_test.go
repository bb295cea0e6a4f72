package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVectorStore(t *testing.T, dims int) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_AddAndSearch(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"x", "y", "z"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, "z", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5, "identical vector scores 1")
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newVectorStore(t, 3)
	ctx := context.Background()

	err := s.Add(ctx, []string{"a"}, [][]float32{{1, 0}})
	var mismatch ErrDimensionMismatch
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	_, err = s.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorAs(t, err, &mismatch)
}

func TestHNSWStore_UpdateReplacesVector(t *testing.T) {
	s := newVectorStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{1, 0}}))
	require.NoError(t, s.Add(ctx, []string{"a"}, [][]float32{{0, 1}}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "a", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWStore_DeleteIsLazy(t *testing.T) {
	s := newVectorStore(t, 2)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"keep", "drop"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Delete(ctx, []string{"drop"}))

	assert.False(t, s.Contains("drop"))
	assert.True(t, s.Contains("keep"))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "drop", r.ID, "lazy-deleted IDs never surface")
	}
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	s := newVectorStore(t, 2)
	results, err := s.Search(context.Background(), []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	s := newVectorStore(t, 2)
	require.NoError(t, s.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, s.Save(path))

	loaded, err := NewHNSWStore(DefaultVectorStoreConfig(2))
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)

	dims, err := ReadIndexDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 2, dims)
}

func TestReadIndexDimensions_MissingFileIsFreshStart(t *testing.T) {
	dims, err := ReadIndexDimensions(filepath.Join(t.TempDir(), "vectors.hnsw"))
	require.NoError(t, err)
	assert.Zero(t, dims)
}
