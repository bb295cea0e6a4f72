package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UncleTupelo/pulse/internal/embed"
	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
	"github.com/UncleTupelo/pulse/internal/store"
)

// Engine executes queries against the dual index store. All operations
// are read-only and safe for concurrent use.
type Engine struct {
	metadata store.MetadataStore
	vectors  store.VectorStore
	embedder embed.Embedder
	config   EngineConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewEngine creates a query engine. All dependencies are required.
func NewEngine(metadata store.MetadataStore, vectors store.VectorStore, embedder embed.Embedder, cfg EngineConfig, logger *slog.Logger) (*Engine, error) {
	if metadata == nil {
		return nil, pulseerrors.Internal("metadata store is required", nil)
	}
	if vectors == nil {
		return nil, pulseerrors.Internal("vector store is required", nil)
	}
	if embedder == nil {
		return nil, pulseerrors.Internal("embedder is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = DefaultEngineConfig().MaxTopK
	}
	if cfg.OverfetchFactor <= 0 {
		cfg.OverfetchFactor = DefaultEngineConfig().OverfetchFactor
	}
	if cfg.FacetTagLimit <= 0 {
		cfg.FacetTagLimit = DefaultEngineConfig().FacetTagLimit
	}
	return &Engine{
		metadata: metadata,
		vectors:  vectors,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// DefaultTopK exposes the configured default page size for callers that
// surface it as a flag default.
func (e *Engine) DefaultTopK() int {
	if e.config.DefaultTopK > 0 {
		return e.config.DefaultTopK
	}
	return DefaultEngineConfig().DefaultTopK
}

// Search runs the full query pipeline: validate, embed, retrieve vector
// candidates with over-fetch, filter, re-rank, optionally facet, and
// truncate to TopK. An empty query with at least one filter bypasses
// vector retrieval and scans metadata only.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" && !opts.HasFilters() {
		return nil, pulseerrors.New(pulseerrors.ErrCodeEmptyQuery, "query text or at least one filter is required", nil)
	}
	if opts.TopK <= 0 {
		return nil, pulseerrors.New(pulseerrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", opts.TopK), nil)
	}
	if opts.TopK > e.config.MaxTopK {
		opts.TopK = e.config.MaxTopK
	}
	opts.SortBy = e.normalizeSort(opts.SortBy)

	results, degraded, err := e.collect(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		Total:    len(results),
		Degraded: degraded,
	}
	if opts.WithFacets {
		resp.Facets = computeFacets(results, e.now(), e.config.FacetTagLimit)
	}
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	resp.Results = results
	return resp, nil
}

// SearchByTags ranks items matching the given tags without any vector
// retrieval. Ordering follows the standard tie-break chain.
func (e *Engine) SearchByTags(ctx context.Context, tags []string, matchAll bool, topK int) (*Response, error) {
	if len(tags) == 0 {
		return nil, pulseerrors.Validation("at least one tag is required")
	}
	return e.Search(ctx, "", Options{
		TopK:         topK,
		Tags:         tags,
		MatchAllTags: matchAll,
	})
}

// Similar finds the nearest neighbors of an existing content unit by its
// stored embedding, excluding the unit itself.
func (e *Engine) Similar(ctx context.Context, unitID string, topK int) ([]*Result, error) {
	if topK <= 0 {
		return nil, pulseerrors.New(pulseerrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}
	if topK > e.config.MaxTopK {
		topK = e.config.MaxTopK
	}

	vector, err := e.metadata.GetUnitEmbedding(ctx, unitID)
	if err != nil {
		return nil, err
	}

	candidates, err := e.vectors.Search(ctx, vector, topK+1)
	if err != nil {
		return nil, pulseerrors.New(pulseerrors.ErrCodeSearchFailed, "vector search failed", err)
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.ID != unitID {
			filtered = append(filtered, c)
		}
	}
	results, err := e.enrich(ctx, filtered, newResultFilter(Options{}), 0)
	if err != nil {
		return nil, err
	}
	sortResults(results, SortRelevance)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Recent lists items created within the last N days, newest first,
// with a total count unconstrained by the page size.
func (e *Engine) Recent(ctx context.Context, days, topK int) ([]*store.SourceItem, int, error) {
	if days <= 0 {
		return nil, 0, pulseerrors.Validation(fmt.Sprintf("days must be positive, got %d", days))
	}
	if topK <= 0 {
		return nil, 0, pulseerrors.New(pulseerrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be positive, got %d", topK), nil)
	}

	cutoff := e.now().AddDate(0, 0, -days)
	total, err := e.metadata.CountItems(ctx, store.ItemFilter{CreatedAfter: cutoff})
	if err != nil {
		return nil, 0, err
	}
	items, err := e.metadata.ListItems(ctx, store.ItemFilter{CreatedAfter: cutoff, Limit: topK})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Facets computes aggregations for a query without returning the hits
// themselves. The candidate pool is capped at MaxTopK. Unlike Search,
// an empty query with no filters is allowed: it summarizes the whole
// index via a metadata scan.
func (e *Engine) Facets(ctx context.Context, query string, opts Options) (*Facets, error) {
	opts.TopK = e.config.MaxTopK
	opts.WithFacets = true

	if strings.TrimSpace(query) == "" && !opts.HasFilters() {
		filter := newResultFilter(opts)
		results, err := e.metadataScan(ctx, opts, filter)
		if err != nil {
			return nil, err
		}
		return computeFacets(results, e.now(), e.config.FacetTagLimit), nil
	}

	resp, err := e.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return resp.Facets, nil
}

// collect produces the filtered, ranked result set before truncation.
func (e *Engine) collect(ctx context.Context, query string, opts Options) (results []*Result, degraded bool, err error) {
	filter := newResultFilter(opts)

	if query == "" {
		results, err = e.metadataScan(ctx, opts, filter)
		if err != nil {
			return nil, false, err
		}
		sortResults(results, opts.SortBy)
		return results, false, nil
	}

	vector, embedErr := e.embedder.Embed(ctx, query)
	if embedErr != nil {
		e.logger.Warn("embedder unavailable, degrading to metadata-only search",
			slog.String("error", embedErr.Error()))
		results, err = e.metadataScan(ctx, opts, filter)
		if err != nil {
			return nil, false, err
		}
		sortResults(results, opts.SortBy)
		return results, true, nil
	}

	k := opts.TopK * e.config.OverfetchFactor
	candidates, searchErr := e.vectors.Search(ctx, vector, k)
	if searchErr != nil {
		return nil, false, pulseerrors.New(pulseerrors.ErrCodeSearchFailed, "vector search failed", searchErr)
	}

	results, err = e.enrich(ctx, candidates, filter, opts.MinRelevance)
	if err != nil {
		return nil, false, err
	}
	sortResults(results, opts.SortBy)
	return results, false, nil
}

// enrich resolves vector candidates into full results, applying filters.
// Candidates whose metadata rows are missing are skipped silently; the
// vector index may briefly trail the metadata store during deletes.
func (e *Engine) enrich(ctx context.Context, candidates []*store.VectorResult, filter *resultFilter, minRelevance float64) ([]*Result, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	scoreByID := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		if minRelevance > 0 && float64(c.Score) < minRelevance {
			continue
		}
		ids = append(ids, c.ID)
		scoreByID[c.ID] = float64(c.Score)
	}

	units, err := e.metadata.GetUnits(ctx, ids)
	if err != nil {
		return nil, err
	}

	itemByID := make(map[string]*store.SourceItem)
	results := make([]*Result, 0, len(units))
	for _, unit := range units {
		item, ok := itemByID[unit.ItemID]
		if !ok {
			item, err = e.metadata.GetItem(ctx, unit.ItemID)
			if err != nil {
				if pulseerrors.HasCode(err, pulseerrors.ErrCodeNotFound) {
					continue
				}
				return nil, err
			}
			itemByID[unit.ItemID] = item
		}
		if !filter.matches(item, unit) {
			continue
		}
		results = append(results, &Result{
			Unit:      unit,
			Item:      item,
			Relevance: scoreByID[unit.ID],
		})
	}
	return results, nil
}

// metadataScan walks items matching the filter and expands them into
// per-unit results with zero relevance.
func (e *Engine) metadataScan(ctx context.Context, opts Options, filter *resultFilter) ([]*Result, error) {
	items, err := e.metadata.ListItems(ctx, store.ItemFilter{
		FileTypes:    opts.FileTypes,
		Tags:         opts.Tags,
		MatchAllTags: opts.MatchAllTags,
		CreatedAfter: opts.CreatedFrom,
	})
	if err != nil {
		return nil, err
	}

	var results []*Result
	for _, item := range items {
		units, err := e.metadata.GetUnitsByItem(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		for _, unit := range units {
			if !filter.matches(item, unit) {
				continue
			}
			results = append(results, &Result{Unit: unit, Item: item})
		}
	}
	return results, nil
}

// normalizeSort maps unknown sort keys to relevance with a warning.
func (e *Engine) normalizeSort(sortBy string) string {
	switch sortBy {
	case "", SortRelevance:
		return SortRelevance
	case SortDate, SortImportance:
		return sortBy
	default:
		e.logger.Warn("unknown sort key, using relevance",
			slog.String("sort_by", sortBy))
		return SortRelevance
	}
}
