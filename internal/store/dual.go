package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// Filenames inside the data directory.
const (
	MetadataFileName = "pulse.db"
	VectorFileName   = "vectors.hnsw"
	LockFileName     = "pulse.lock"
)

// UpsertResult reports what a dual-store upsert did.
type UpsertResult struct {
	// Skipped is true when the item's content hash matched the stored
	// one and nothing was rewritten.
	Skipped bool
	// UnitsWritten is the number of units persisted.
	UnitsWritten int
}

// DualStore pairs the SQLite metadata store with the vector index and
// keeps them consistent: a unit is either present in both or in
// neither. Writes to the same item serialize on a per-item mutex; a
// process-level file lock prevents two processes from opening the same
// data directory for writing.
type DualStore struct {
	Metadata *SQLiteStore
	Vectors  *HNSWStore

	dataDir  string
	fileLock *flock.Flock
	logger   *slog.Logger

	itemLocks sync.Map // item ID -> *sync.Mutex
}

// DualStoreOptions configures OpenDual.
type DualStoreOptions struct {
	DataDir       string
	Dimensions    int
	SQLiteCacheMB int
	Logger        *slog.Logger
}

// OpenDual opens both stores under dataDir, loading a persisted vector
// index when one exists. The directory is locked for the lifetime of
// the store.
func OpenDual(opts DualStoreOptions) (*DualStore, error) {
	if opts.DataDir == "" {
		return nil, pulseerrors.Validation("data directory is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	fileLock := flock.New(filepath.Join(opts.DataDir, LockFileName))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire data directory lock: %w", err)
	}
	if !locked {
		return nil, pulseerrors.Validation("data directory is locked by another process: " + opts.DataDir)
	}

	cleanup := func() { _ = fileLock.Unlock() }

	vectorPath := filepath.Join(opts.DataDir, VectorFileName)

	// A persisted index wins over the configured dimension: vectors
	// already on disk fix the width until a rebuild.
	dims := opts.Dimensions
	if stored, err := ReadIndexDimensions(vectorPath); err == nil && stored > 0 {
		if dims > 0 && stored != dims {
			opts.Logger.Warn("vector index dimension differs from embedder",
				"index", stored, "embedder", dims)
		}
		dims = stored
	}
	if dims <= 0 {
		cleanup()
		return nil, pulseerrors.Validation("vector dimensions must be positive")
	}

	metadata, err := OpenSQLite(filepath.Join(opts.DataDir, MetadataFileName), opts.SQLiteCacheMB)
	if err != nil {
		cleanup()
		return nil, err
	}

	vectors, err := NewHNSWStore(DefaultVectorStoreConfig(dims))
	if err != nil {
		metadata.Close()
		cleanup()
		return nil, err
	}
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vectors.Load(vectorPath); err != nil {
			metadata.Close()
			cleanup()
			return nil, fmt.Errorf("load vector index: %w", err)
		}
	}

	return &DualStore{
		Metadata: metadata,
		Vectors:  vectors,
		dataDir:  opts.DataDir,
		fileLock: fileLock,
		logger:   opts.Logger,
	}, nil
}

// lockItem serializes writers of one item.
func (d *DualStore) lockItem(itemID string) func() {
	mu, _ := d.itemLocks.LoadOrStore(itemID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// UpsertItem atomically replaces an item's units and vectors. When the
// stored item carries the same content hash and completed successfully,
// the write is skipped entirely.
func (d *DualStore) UpsertItem(ctx context.Context, item *SourceItem, units []*ContentUnit, vectors [][]float32) (*UpsertResult, error) {
	if len(units) != len(vectors) {
		return nil, pulseerrors.Validation(
			fmt.Sprintf("units and vectors length mismatch: %d vs %d", len(units), len(vectors)))
	}

	unlock := d.lockItem(item.ID)
	defer unlock()

	existing, err := d.Metadata.GetItem(ctx, item.ID)
	if err == nil && existing.ContentHash == item.ContentHash && existing.Status == StatusDone &&
		existing.StatusNote != NoteEmbeddingsUnavailable {
		return &UpsertResult{Skipped: true}, nil
	}
	if err != nil && !pulseerrors.HasCode(err, pulseerrors.ErrCodeNotFound) {
		return nil, err
	}

	oldUnitIDs, err := d.Metadata.UnitIDsByItem(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	// Metadata first. The SQLite transaction is the authority; the
	// vector index follows and is rolled back on failure.
	if err := d.Metadata.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	if err := d.Metadata.DeleteUnitsByItem(ctx, item.ID); err != nil {
		return nil, err
	}
	if err := d.Metadata.SaveUnits(ctx, units); err != nil {
		return nil, err
	}

	ids := make([]string, len(units))
	embeddings := make([]UnitEmbedding, len(units))
	for i, u := range units {
		ids[i] = u.ID
		embeddings[i] = UnitEmbedding{UnitID: u.ID, Model: d.embedModel(ctx), Vector: vectors[i]}
	}
	if err := d.Metadata.SaveUnitEmbeddings(ctx, embeddings); err != nil {
		return nil, err
	}

	if len(oldUnitIDs) > 0 {
		if err := d.Vectors.Delete(ctx, oldUnitIDs); err != nil {
			return nil, pulseerrors.StorageConsistency("vector delete failed during upsert", err)
		}
	}
	if err := d.Vectors.Add(ctx, ids, vectors); err != nil {
		// Undo the metadata write so the stores stay paired.
		if delErr := d.Metadata.DeleteUnitsByItem(ctx, item.ID); delErr != nil {
			return nil, pulseerrors.StorageConsistency(
				"vector add failed and metadata rollback failed", delErr)
		}
		if statusErr := d.Metadata.UpdateItemStatus(ctx, item.ID, StatusFailed, "vector index write failed"); statusErr != nil {
			d.logger.Error("failed to mark item failed after rollback",
				"item", item.ID, "error", statusErr)
		}
		return nil, pulseerrors.StorageConsistency("vector add failed, metadata rolled back", err)
	}

	return &UpsertResult{UnitsWritten: len(units)}, nil
}

// UpsertItemMetadataOnly replaces an item's units without writing any
// vectors, removing the superseded units' vectors so no vector outlives
// its unit row. Used when embeddings are unavailable; the item should
// carry NoteEmbeddingsUnavailable so a later ingestion can repair it.
func (d *DualStore) UpsertItemMetadataOnly(ctx context.Context, item *SourceItem, units []*ContentUnit) error {
	unlock := d.lockItem(item.ID)
	defer unlock()

	oldUnitIDs, err := d.Metadata.UnitIDsByItem(ctx, item.ID)
	if err != nil {
		return err
	}

	if err := d.Metadata.SaveItem(ctx, item); err != nil {
		return err
	}
	if err := d.Metadata.DeleteUnitsByItem(ctx, item.ID); err != nil {
		return err
	}
	if err := d.Metadata.SaveUnits(ctx, units); err != nil {
		return err
	}

	if len(oldUnitIDs) > 0 {
		if err := d.Vectors.Delete(ctx, oldUnitIDs); err != nil {
			return pulseerrors.StorageConsistency("vector delete failed during metadata-only upsert", err)
		}
	}
	return nil
}

func (d *DualStore) embedModel(ctx context.Context) string {
	model, err := d.Metadata.GetState(ctx, StateKeyIndexModel)
	if err != nil {
		return ""
	}
	return model
}

// DeleteItem removes an item from both stores. Vector deletion is lazy
// and cannot fail for missing IDs, so metadata is removed last.
func (d *DualStore) DeleteItem(ctx context.Context, itemID string) error {
	unlock := d.lockItem(itemID)
	defer unlock()

	unitIDs, err := d.Metadata.UnitIDsByItem(ctx, itemID)
	if err != nil {
		return err
	}
	if len(unitIDs) > 0 {
		if err := d.Vectors.Delete(ctx, unitIDs); err != nil {
			return pulseerrors.StorageConsistency("vector delete failed", err)
		}
	}
	return d.Metadata.DeleteItem(ctx, itemID)
}

// CheckConsistency compares the two stores and returns unit IDs present
// in exactly one of them.
func (d *DualStore) CheckConsistency(ctx context.Context) (onlyMetadata, onlyVectors []string, err error) {
	vectorIDs := make(map[string]bool)
	for _, id := range d.Vectors.AllIDs() {
		vectorIDs[id] = true
	}

	items, err := d.Metadata.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, nil, err
	}
	metaIDs := make(map[string]bool)
	for _, item := range items {
		ids, err := d.Metadata.UnitIDsByItem(ctx, item.ID)
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids {
			metaIDs[id] = true
			if !vectorIDs[id] {
				onlyMetadata = append(onlyMetadata, id)
			}
		}
	}
	for id := range vectorIDs {
		if !metaIDs[id] {
			onlyVectors = append(onlyVectors, id)
		}
	}
	return onlyMetadata, onlyVectors, nil
}

// Flush persists the vector index to disk.
func (d *DualStore) Flush() error {
	return d.Vectors.Save(filepath.Join(d.dataDir, VectorFileName))
}

// Close flushes the vector index, closes both stores, and releases the
// directory lock.
func (d *DualStore) Close() error {
	var firstErr error
	if err := d.Flush(); err != nil {
		firstErr = err
	}
	if err := d.Vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.Metadata.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.fileLock.Unlock(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
