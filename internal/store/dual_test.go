package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDualStore(t *testing.T) *DualStore {
	t.Helper()
	d, err := OpenDual(DualStoreOptions{
		DataDir:    t.TempDir(),
		Dimensions: 3,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func dualItem(id string) (*SourceItem, []*ContentUnit, [][]float32) {
	now := time.Now().UTC()
	item := &SourceItem{
		ID: id, Path: id + ".txt", Title: id + ".txt",
		FileType: "txt", Category: "generic-document",
		ContentHash: "hash-" + id, Status: StatusDone,
		Importance: 50, CreatedAt: now, UpdatedAt: now,
	}
	units := []*ContentUnit{
		{ID: id + "-u0", ItemID: id, Ordinal: 0, Kind: "text-window", Text: "first", CreatedAt: now},
		{ID: id + "-u1", ItemID: id, Ordinal: 1, Kind: "text-window", Text: "second", CreatedAt: now},
	}
	vectors := [][]float32{{1, 0, 0}, {0, 1, 0}}
	return item, units, vectors
}

func TestDualStore_UpsertWritesBothStores(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, vectors := dualItem("item-1")
	res, err := d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 2, res.UnitsWritten)

	stored, err := d.Metadata.GetUnitsByItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.True(t, d.Vectors.Contains("item-1-u0"))
	assert.True(t, d.Vectors.Contains("item-1-u1"))

	onlyMeta, onlyVec, err := d.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, onlyMeta)
	assert.Empty(t, onlyVec)
}

func TestDualStore_UnchangedContentSkips(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, vectors := dualItem("item-1")
	_, err := d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)

	again, moreUnits, moreVectors := dualItem("item-1")
	res, err := d.UpsertItem(ctx, again, moreUnits, moreVectors)
	require.NoError(t, err)
	assert.True(t, res.Skipped, "same content hash and done status skips the write")
}

func TestDualStore_ChangedContentReplacesUnits(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, vectors := dualItem("item-1")
	_, err := d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)

	updated := *item
	updated.ContentHash = "hash-v2"
	newUnits := []*ContentUnit{
		{ID: "item-1-v2", ItemID: "item-1", Ordinal: 0, Kind: "text-window", Text: "rewritten", CreatedAt: time.Now()},
	}
	res, err := d.UpsertItem(ctx, &updated, newUnits, [][]float32{{0, 0, 1}})
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	stored, err := d.Metadata.GetUnitsByItem(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "item-1-v2", stored[0].ID)

	assert.False(t, d.Vectors.Contains("item-1-u0"), "old vectors removed")
	assert.True(t, d.Vectors.Contains("item-1-v2"))
}

func TestDualStore_MetadataOnlyUpsertRemovesSupersededVectors(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, vectors := dualItem("item-1")
	_, err := d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)

	degraded := *item
	degraded.ContentHash = "hash-v2"
	degraded.StatusNote = NoteEmbeddingsUnavailable
	newUnits := []*ContentUnit{
		{ID: "item-1-v2", ItemID: "item-1", Ordinal: 0, Kind: "text-window", Text: "rewritten", CreatedAt: time.Now()},
	}
	require.NoError(t, d.UpsertItemMetadataOnly(ctx, &degraded, newUnits))

	assert.False(t, d.Vectors.Contains("item-1-u0"), "superseded vectors removed")
	assert.False(t, d.Vectors.Contains("item-1-u1"))

	_, onlyVec, err := d.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, onlyVec, "no vector without a unit row")
}

func TestDualStore_EmbeddingsUnavailableNoteDefeatsSkip(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, _ := dualItem("item-1")
	degraded := *item
	degraded.StatusNote = NoteEmbeddingsUnavailable
	require.NoError(t, d.UpsertItemMetadataOnly(ctx, &degraded, units))

	// Same content hash, but the degraded note keeps the item writable
	// so the vectors can be backfilled.
	repaired, sameUnits, vectors := dualItem("item-1")
	res, err := d.UpsertItem(ctx, repaired, sameUnits, vectors)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.True(t, d.Vectors.Contains("item-1-u0"))
}

func TestDualStore_UnitVectorLengthMismatchRejected(t *testing.T) {
	d := newDualStore(t)

	item, units, _ := dualItem("item-1")
	_, err := d.UpsertItem(context.Background(), item, units, [][]float32{{1, 0, 0}})
	assert.Error(t, err)
}

func TestDualStore_DeleteRemovesBothStores(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	item, units, vectors := dualItem("item-1")
	_, err := d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)

	require.NoError(t, d.DeleteItem(ctx, "item-1"))
	assert.False(t, d.Vectors.Contains("item-1-u0"))
	_, err = d.Metadata.GetItem(ctx, "item-1")
	assert.Error(t, err)
}

func TestDualStore_ConcurrentUpsertsSameItem(t *testing.T) {
	d := newDualStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			item, units, vectors := dualItem("shared")
			item.ContentHash = fmt.Sprintf("hash-%d", n)
			_, err := d.UpsertItem(ctx, item, units, vectors)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := d.Metadata.GetUnitsByItem(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, stored, 2, "writers serialized per item, last write wins cleanly")

	onlyMeta, _, err := d.CheckConsistency(ctx)
	require.NoError(t, err)
	assert.Empty(t, onlyMeta)
}

func TestDualStore_SecondOpenOnSameDirFails(t *testing.T) {
	dir := t.TempDir()
	first, err := OpenDual(DualStoreOptions{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	defer first.Close()

	_, err = OpenDual(DualStoreOptions{DataDir: dir, Dimensions: 3})
	assert.Error(t, err, "directory lock rejects a second writer")
}

func TestDualStore_ReopenLoadsPersistedVectors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	d, err := OpenDual(DualStoreOptions{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	item, units, vectors := dualItem("item-1")
	_, err = d.UpsertItem(ctx, item, units, vectors)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	reopened, err := OpenDual(DualStoreOptions{DataDir: dir, Dimensions: 3})
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, 2, reopened.Vectors.Count())
	assert.True(t, reopened.Vectors.Contains("item-1-u0"))
}
