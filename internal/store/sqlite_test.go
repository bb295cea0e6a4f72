package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "pulse.db"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testItem(id, path string) *SourceItem {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &SourceItem{
		ID:          id,
		Path:        path,
		Title:       filepath.Base(path),
		FileType:    "csv",
		Category:    "spreadsheet",
		ContentHash: "hash-" + id,
		Status:      StatusDone,
		Importance:  70,
		Metadata:    map[string]string{"file_size": "128"},
		Tags:        []string{"finance", "reports"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestSQLiteStore_SaveAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("item-1", "reports/q3.csv")
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, item.Path, got.Path)
	assert.Equal(t, item.ContentHash, got.ContentHash)
	assert.Equal(t, StatusDone, got.Status)
	assert.Equal(t, map[string]string{"file_size": "128"}, got.Metadata)
	assert.Equal(t, []string{"finance", "reports"}, got.Tags)
	assert.Equal(t, item.CreatedAt, got.CreatedAt)

	byPath, err := s.GetItemByPath(ctx, "reports/q3.csv")
	require.NoError(t, err)
	assert.Equal(t, "item-1", byPath.ID)
}

func TestSQLiteStore_GetMissingItemReturnsNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, pulseerrors.HasCode(err, pulseerrors.ErrCodeNotFound))
}

func TestSQLiteStore_SaveItemUpsertReplacesTags(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := testItem("item-1", "a.csv")
	require.NoError(t, s.SaveItem(ctx, item))

	item.Tags = []string{"updated"}
	item.Status = StatusProcessing
	require.NoError(t, s.SaveItem(ctx, item))

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"updated"}, got.Tags)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestSQLiteStore_ListItemsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := testItem("a", "docs/a.csv")
	b := testItem("b", "docs/b.json")
	b.FileType = "json"
	b.Category = "structured-data"
	b.Tags = []string{"config"}
	c := testItem("c", "src/c.go")
	c.FileType = "go"
	c.Category = "code"
	c.Status = StatusFailed
	for _, item := range []*SourceItem{a, b, c} {
		require.NoError(t, s.SaveItem(ctx, item))
	}

	byType, err := s.ListItems(ctx, ItemFilter{FileTypes: []string{"json"}})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "b", byType[0].ID)

	byStatus, err := s.ListItems(ctx, ItemFilter{Statuses: []ItemStatus{StatusFailed}})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "c", byStatus[0].ID)

	byPrefix, err := s.ListItems(ctx, ItemFilter{PathPrefix: "docs/"})
	require.NoError(t, err)
	assert.Len(t, byPrefix, 2)

	byTag, err := s.ListItems(ctx, ItemFilter{Tags: []string{"config"}})
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "b", byTag[0].ID)

	count, err := s.CountItems(ctx, ItemFilter{Categories: []string{"spreadsheet"}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteStore_TagMatchAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	both := testItem("both", "a.csv")
	both.Tags = []string{"finance", "q3"}
	one := testItem("one", "b.csv")
	one.Tags = []string{"finance"}
	require.NoError(t, s.SaveItem(ctx, both))
	require.NoError(t, s.SaveItem(ctx, one))

	anyMatch, err := s.ItemIDsWithTags(ctx, []string{"finance", "q3"}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"both", "one"}, anyMatch)

	all, err := s.ItemIDsWithTags(ctx, []string{"finance", "q3"}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"both"}, all)
}

func TestSQLiteStore_UnitsRoundTripAndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("item-1", "a.csv")))
	units := []*ContentUnit{
		{ID: "u0", ItemID: "item-1", Ordinal: 0, Kind: "overview", Text: "Sheet: a",
			Attrs: map[string]string{"sheet_name": "a"}, Importance: 70, CreatedAt: time.Now()},
		{ID: "u1", ItemID: "item-1", Ordinal: 1, Kind: "row-batch", Text: "Row 2: x=1",
			Attrs: map[string]string{"row_start": "2"}, Importance: 70, CreatedAt: time.Now()},
	}
	require.NoError(t, s.SaveUnits(ctx, units))

	got, err := s.GetUnitsByItem(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "overview", got[0].Kind)
	assert.Equal(t, map[string]string{"row_start": "2"}, got[1].Attrs)

	batch, err := s.GetUnits(ctx, []string{"u1", "missing", "u0"})
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "u1", batch[0].ID, "order follows input")

	require.NoError(t, s.SaveUnitEmbeddings(ctx, []UnitEmbedding{
		{UnitID: "u0", Model: "static", Vector: []float32{1, 0, 0}},
	}))
	vec, err := s.GetUnitEmbedding(ctx, "u0")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)

	// Deleting the item cascades to units, tags, and embeddings.
	require.NoError(t, s.DeleteItem(ctx, "item-1"))
	remaining, err := s.GetUnitsByItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
	_, err = s.GetUnitEmbedding(ctx, "u0")
	assert.True(t, pulseerrors.HasCode(err, pulseerrors.ErrCodeNotFound))
}

func TestSQLiteStore_TagCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, tags := range [][]string{
		{"common", "rare"},
		{"common"},
		{"common", "medium"},
		{"medium"},
	} {
		item := testItem(string(rune('a'+i)), string(rune('a'+i))+".csv")
		item.Tags = tags
		require.NoError(t, s.SaveItem(ctx, item))
	}

	counts, err := s.TagCounts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, TagCount{Tag: "common", Count: 3}, counts[0])
	assert.Equal(t, TagCount{Tag: "medium", Count: 2}, counts[1])
}

func TestSQLiteStore_State(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	missing, err := s.GetState(ctx, "never-set")
	require.NoError(t, err)
	assert.Empty(t, missing)

	require.NoError(t, s.SetState(ctx, "index_embedding_model", "static"))
	require.NoError(t, s.SetState(ctx, "index_embedding_model", "http"))
	got, err := s.GetState(ctx, "index_embedding_model")
	require.NoError(t, err)
	assert.Equal(t, "http", got)

	version, err := s.GetState(ctx, StateKeySchemaVersion)
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestSQLiteStore_UpdateItemStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveItem(ctx, testItem("item-1", "a.csv")))
	require.NoError(t, s.UpdateItemStatus(ctx, "item-1", StatusFailed, "timed out"))

	got, err := s.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, "timed out", got.StatusNote)

	err = s.UpdateItemStatus(ctx, "missing", StatusDone, "")
	assert.True(t, pulseerrors.HasCode(err, pulseerrors.ErrCodeNotFound))
}

func TestSQLiteStore_RecentFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := testItem("old", "old.csv")
	old.CreatedAt = time.Now().AddDate(0, 0, -30)
	recent := testItem("recent", "recent.csv")
	require.NoError(t, s.SaveItem(ctx, old))
	require.NoError(t, s.SaveItem(ctx, recent))

	items, err := s.ListItems(ctx, ItemFilter{CreatedAfter: time.Now().AddDate(0, 0, -7)})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "recent", items[0].ID)
}
