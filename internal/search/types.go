// Package search implements the query engine: filtered vector retrieval
// over the dual index store, deterministic re-ranking, and facet
// aggregation.
package search

import (
	"time"

	"github.com/UncleTupelo/pulse/internal/config"
	"github.com/UncleTupelo/pulse/internal/store"
)

// Sort keys accepted by Options.SortBy.
const (
	SortRelevance  = "relevance"
	SortDate       = "date"
	SortImportance = "importance"
)

// Options configures a search query. All filters are optional and
// AND-combined.
type Options struct {
	// TopK is the maximum number of results to return. Must be positive.
	TopK int

	// SortBy selects the ranking: "relevance" (default), "date", or
	// "importance". Unknown keys fall back to relevance with a warning.
	SortBy string

	// UnitKinds restricts results to these content unit kinds.
	UnitKinds []string

	// FileTypes restricts results to items with these file extensions.
	FileTypes []string

	// Tags restricts results to items carrying these tags. MatchAllTags
	// selects AND semantics; the default matches any.
	Tags         []string
	MatchAllTags bool

	// CreatedFrom and CreatedTo bound item creation time, inclusive.
	// Zero values leave the corresponding side open.
	CreatedFrom time.Time
	CreatedTo   time.Time

	// MinRelevance drops results scoring below this threshold. Applies
	// only to vector-backed searches.
	MinRelevance float64

	// WithFacets computes facet aggregations over the filtered result
	// set before truncation to TopK.
	WithFacets bool
}

// HasFilters reports whether any filter is set. A query with no text and
// no filters is invalid.
func (o Options) HasFilters() bool {
	return len(o.UnitKinds) > 0 ||
		len(o.FileTypes) > 0 ||
		len(o.Tags) > 0 ||
		!o.CreatedFrom.IsZero() ||
		!o.CreatedTo.IsZero()
}

// Result is a single ranked search hit.
type Result struct {
	// Unit is the matched content unit.
	Unit *store.ContentUnit `json:"unit"`

	// Item is the source item the unit belongs to.
	Item *store.SourceItem `json:"item"`

	// Relevance is the similarity score in [0,1]. Zero for searches that
	// bypass vector retrieval.
	Relevance float64 `json:"relevance"`
}

// Response is the outcome of a search.
type Response struct {
	// Results holds at most TopK ranked hits.
	Results []*Result `json:"results"`

	// Total is the number of hits matching the filters before truncation.
	Total int `json:"total"`

	// Degraded is true when the embedder was unavailable and the engine
	// fell back to a metadata-only scan.
	Degraded bool `json:"degraded,omitempty"`

	// Facets is populated when Options.WithFacets is set.
	Facets *Facets `json:"facets,omitempty"`
}

// FacetCount is one value/count pair within a facet dimension.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DateBuckets partitions the result set into four fixed age buckets
// relative to query time. The four counts sum to the filtered total.
type DateBuckets struct {
	LastDay   int `json:"last_day"`
	LastWeek  int `json:"last_week"`
	LastMonth int `json:"last_month"`
	Older     int `json:"older"`
}

// Facets aggregates counts over the filtered result set.
type Facets struct {
	FileTypes []FacetCount `json:"file_types"`
	UnitKinds []FacetCount `json:"unit_kinds"`
	Tags      []FacetCount `json:"tags"`
	Dates     DateBuckets  `json:"dates"`
}

// EngineConfig configures the query engine.
type EngineConfig struct {
	// DefaultTopK is used by callers that surface a default page size.
	DefaultTopK int

	// MaxTopK caps the result count per query (default: 100).
	MaxTopK int

	// OverfetchFactor multiplies TopK for vector candidate retrieval so
	// post-filtering still fills the page (default: 2).
	OverfetchFactor int

	// FacetTagLimit is the number of top tags in facet output.
	FacetTagLimit int
}

// DefaultEngineConfig returns sensible defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK:     10,
		MaxTopK:         100,
		OverfetchFactor: 2,
		FacetTagLimit:   20,
	}
}

// EngineConfigFrom maps the application search settings onto engine
// configuration, filling gaps with defaults.
func EngineConfigFrom(cfg config.SearchConfig) EngineConfig {
	ec := DefaultEngineConfig()
	if cfg.DefaultTopK > 0 {
		ec.DefaultTopK = cfg.DefaultTopK
	}
	if cfg.OverfetchFactor > 0 {
		ec.OverfetchFactor = cfg.OverfetchFactor
	}
	if cfg.FacetTagLimit > 0 {
		ec.FacetTagLimit = cfg.FacetTagLimit
	}
	return ec
}
