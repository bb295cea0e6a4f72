// Package store is the persistence layer: item and unit metadata in
// SQLite, vectors in an HNSW index, and a dual store that keeps the two
// consistent under concurrent ingestion.
package store

import (
	"context"
	"fmt"
	"time"
)

// ItemStatus tracks a source item through the ingestion pipeline.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusDone       ItemStatus = "done"
	StatusFailed     ItemStatus = "failed"
)

// NoteEmbeddingsUnavailable marks a done item whose units were written
// without vectors. Items carrying it stay eligible for re-embedding on
// the next ingestion even when their content is unchanged.
const NoteEmbeddingsUnavailable = "embeddings unavailable"

// State keys persisted in the store_state table.
const (
	// StateKeyIndexDimension records the embedding dimension the vector
	// index was built with.
	StateKeyIndexDimension = "index_embedding_dimension"
	// StateKeyIndexModel records the embedding model the vector index
	// was built with.
	StateKeyIndexModel = "index_embedding_model"
	// StateKeySchemaVersion records the SQLite schema version.
	StateKeySchemaVersion = "schema_version"
)

// CurrentSchemaVersion is the current database schema version.
const CurrentSchemaVersion = 1

// SourceItem is one ingested file.
type SourceItem struct {
	ID          string            `json:"id"`        // sha256 of absolute path
	Path        string            `json:"path"`      // original path
	Title       string            `json:"title"`     // base name
	FileType    string            `json:"file_type"` // extension without dot
	Category    string            `json:"category"`  // extractor category
	ContentHash string            `json:"content_hash"`
	Status      ItemStatus        `json:"status"`
	StatusNote  string            `json:"status_note,omitempty"` // failure reason or skip note
	Importance  int               `json:"importance"`            // 0-100 ranking weight
	Metadata    map[string]string `json:"metadata,omitempty"`    // enrichment output
	Tags        []string          `json:"tags,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// ContentUnit is one retrievable chunk of an item.
type ContentUnit struct {
	ID         string            `json:"id"` // sha256 of item ID, ordinal, content hash
	ItemID     string            `json:"item_id"`
	Ordinal    int               `json:"ordinal"` // position within the item, from 0
	Kind       string            `json:"kind"`    // overview, row-batch, path-node, function-block, text-window
	Text       string            `json:"text"`
	Attrs      map[string]string `json:"attrs,omitempty"` // structural attributes from extraction
	Importance int               `json:"importance"`      // inherited from the item
	CreatedAt  time.Time         `json:"created_at"`
}

// TagCount pairs a tag with its item count.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ItemFilter narrows item listings. Zero values mean "no constraint".
type ItemFilter struct {
	FileTypes    []string
	Categories   []string
	Statuses     []ItemStatus
	Tags         []string
	MatchAllTags bool
	CreatedAfter time.Time
	PathPrefix   string
	Limit        int
	Offset       int
}

// UnitEmbedding pairs a unit with its stored vector.
type UnitEmbedding struct {
	UnitID string
	Model  string
	Vector []float32
}

// MetadataStore persists items, units, tags, embeddings, and runtime
// state in SQLite.
type MetadataStore interface {
	// Item operations
	SaveItem(ctx context.Context, item *SourceItem) error
	GetItem(ctx context.Context, id string) (*SourceItem, error)
	GetItemByPath(ctx context.Context, path string) (*SourceItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*SourceItem, error)
	CountItems(ctx context.Context, filter ItemFilter) (int, error)
	UpdateItemStatus(ctx context.Context, id string, status ItemStatus, note string) error
	DeleteItem(ctx context.Context, id string) error

	// Unit operations
	SaveUnits(ctx context.Context, units []*ContentUnit) error
	GetUnit(ctx context.Context, id string) (*ContentUnit, error)
	GetUnits(ctx context.Context, ids []string) ([]*ContentUnit, error)
	GetUnitsByItem(ctx context.Context, itemID string) ([]*ContentUnit, error)
	UnitIDsByItem(ctx context.Context, itemID string) ([]string, error)
	DeleteUnitsByItem(ctx context.Context, itemID string) error

	// Tag operations
	ReplaceItemTags(ctx context.Context, itemID string, tags []string) error
	ItemIDsWithTags(ctx context.Context, tags []string, matchAll bool) ([]string, error)
	TagCounts(ctx context.Context, limit int) ([]TagCount, error)

	// Embedding operations
	SaveUnitEmbeddings(ctx context.Context, embeddings []UnitEmbedding) error
	GetUnitEmbedding(ctx context.Context, unitID string) ([]float32, error)
	AllEmbeddings(ctx context.Context) ([]UnitEmbedding, error)

	// State operations
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// VectorResult is a single vector search hit.
type VectorResult struct {
	ID       string
	Distance float32 // 0-2 for cosine, lower is closer
	Score    float32 // normalized similarity 0-1
}

// VectorStoreConfig configures the vector index.
type VectorStoreConfig struct {
	// Dimensions is the vector width.
	Dimensions int
	// Metric is "cos" or "l2".
	Metric string
	// M is HNSW max connections per layer.
	M int
	// EfSearch is query-time search width.
	EfSearch int
}

// DefaultVectorStoreConfig returns defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// VectorStore provides nearest-neighbor search over unit embeddings.
type VectorStore interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Delete(ctx context.Context, ids []string) error
	AllIDs() []string
	Contains(id string) bool
	Count() int
	Save(path string) error
	Load(path string) error
	Close() error
}

// ErrDimensionMismatch indicates a vector of the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
