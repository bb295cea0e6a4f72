// Package ingest drives files through the full pipeline: extract into
// content units, enrich metadata and tags, embed, and upsert into the
// dual index store. Batch and directory ingestion run with bounded
// parallelism and never abort on a single file's failure.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/UncleTupelo/pulse/internal/config"
	"github.com/UncleTupelo/pulse/internal/embed"
	"github.com/UncleTupelo/pulse/internal/enrich"
	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
	"github.com/UncleTupelo/pulse/internal/extract"
	"github.com/UncleTupelo/pulse/internal/scanner"
	"github.com/UncleTupelo/pulse/internal/store"
	"github.com/UncleTupelo/pulse/internal/tag"
)

// MaxWorkers caps the default worker count.
const MaxWorkers = 8

// Config bundles the pipeline knobs.
type Config struct {
	Extract extract.Config

	// MaxFileSize skips larger files, in bytes.
	MaxFileSize int64

	// Workers bounds batch parallelism. Zero means NumCPU capped at
	// MaxWorkers.
	Workers int

	// FileTimeout bounds one file's pipeline run. A timed-out file is
	// marked failed with a timeout note.
	FileTimeout time.Duration

	// TagTimeout bounds the best-effort auto-tagger call.
	TagTimeout time.Duration

	// TagMaxChars truncates content sent to the tagger.
	TagMaxChars int
}

// ConfigFrom maps application settings onto pipeline configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Extract: extract.Config{
			MaxRowsPerChunk:       cfg.Extract.MaxRowsPerChunk,
			MaxArrayItemsPerChunk: cfg.Extract.MaxArrayItemsPerChunk,
			MaxDepth:              cfg.Extract.MaxDepth,
			MaxLinesPerChunk:      cfg.Extract.MaxLinesPerChunk,
		},
		MaxFileSize: int64(cfg.Extract.MaxFileSizeMB) * 1024 * 1024,
		Workers:     cfg.Ingest.Workers,
		FileTimeout: cfg.Ingest.FileTimeout,
		TagTimeout:  cfg.Tagging.Timeout,
		TagMaxChars: cfg.Tagging.MaxContentChars,
	}
}

// FileOptions carries per-request ingestion inputs.
type FileOptions struct {
	// DeclaredType hints the extractor category for extension-less input.
	DeclaredType string

	// Tags are applied to the item in addition to derived and generated
	// tags.
	Tags []string

	// Metadata is merged over the extracted file metadata.
	Metadata map[string]string
}

// FileResult reports one file's outcome.
type FileResult struct {
	Path    string           `json:"path"`
	ItemID  string           `json:"item_id,omitempty"`
	Status  store.ItemStatus `json:"status"`
	Units   int              `json:"units"`
	Skipped bool             `json:"skipped,omitempty"`
	Message string           `json:"message,omitempty"`
	Err     error            `json:"-"`
}

// Report aggregates a batch run. Failures never abort the batch.
type Report struct {
	BatchID    string       `json:"batch_id"`
	Total      int          `json:"total"`
	Successful int          `json:"successful"`
	Failed     int          `json:"failed"`
	Results    []FileResult `json:"results"`
}

// Pipeline wires the extraction registry, enrichment, embedder, tagger,
// and dual store together.
type Pipeline struct {
	store    *store.DualStore
	registry *extract.Registry
	embedder embed.Embedder
	tagger   tag.Tagger
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewPipeline creates a pipeline. The tagger may be nil to disable
// generated tags; path-derived tags are always applied.
func NewPipeline(st *store.DualStore, registry *extract.Registry, embedder embed.Embedder, tagger tag.Tagger, cfg Config, logger *slog.Logger) (*Pipeline, error) {
	if st == nil {
		return nil, pulseerrors.Internal("store is required", nil)
	}
	if registry == nil {
		registry = extract.NewDefaultRegistry()
	}
	if embedder == nil {
		return nil, pulseerrors.Internal("embedder is required", nil)
	}
	if tagger == nil {
		tagger = tag.Disabled{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = scanner.DefaultMaxFileSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = min(runtime.NumCPU(), MaxWorkers)
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 2 * time.Minute
	}
	if cfg.TagTimeout <= 0 {
		cfg.TagTimeout = 10 * time.Second
	}
	if cfg.TagMaxChars <= 0 {
		cfg.TagMaxChars = tag.DefaultMaxContentChars
	}
	return &Pipeline{
		store:    st,
		registry: registry,
		embedder: embedder,
		tagger:   tagger,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// ItemID derives the stable source item identity from its path, so
// repeated ingestion of the same file updates one record.
func ItemID(path string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:16])
}

// UnitID derives the content unit identity from the item, the unit's
// ordinal, and the content hash. Identical bytes yield identical IDs
// across re-ingestion.
func UnitID(itemID string, ordinal int, contentHash string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", itemID, ordinal, contentHash)))
	return hex.EncodeToString(sum[:16])
}

// SupportedTypes lists the extension-to-extractor dispatch table.
func (p *Pipeline) SupportedTypes() []extract.SupportedType {
	return p.registry.SupportedTypes()
}

// IngestFile runs one file through the pipeline. Failures are reported
// in the result rather than panicking the caller; the item row records
// the failure status where the file was readable.
func (p *Pipeline) IngestFile(ctx context.Context, path string, opts FileOptions) FileResult {
	abs, err := filepath.Abs(path)
	if err != nil {
		return FileResult{Path: path, Status: store.StatusFailed, Err: pulseerrors.Validation(fmt.Sprintf("bad path: %v", err))}
	}
	return p.ingest(ctx, abs, opts)
}

func (p *Pipeline) ingest(ctx context.Context, abs string, opts FileOptions) FileResult {
	result := FileResult{Path: abs, Status: store.StatusFailed}

	data, err := os.ReadFile(abs)
	if err != nil {
		result.Err = pulseerrors.New(pulseerrors.ErrCodeFileNotFound, fmt.Sprintf("cannot read %s", abs), err)
		result.Message = result.Err.Error()
		return result
	}

	itemID := ItemID(abs)
	result.ItemID = itemID

	if int64(len(data)) > p.cfg.MaxFileSize {
		err := pulseerrors.New(pulseerrors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s exceeds size limit (%d bytes)", abs, p.cfg.MaxFileSize), nil)
		p.recordFailure(ctx, itemID, abs, "file too large")
		result.Err = err
		result.Message = "file too large"
		return result
	}

	contentHash := hashContent(data)

	existing, getErr := p.store.Metadata.GetItemByPath(ctx, abs)
	if getErr == nil && existing.ContentHash == contentHash && existing.Status == store.StatusDone &&
		existing.StatusNote != store.NoteEmbeddingsUnavailable {
		result.Status = store.StatusDone
		result.Skipped = true
		result.Message = "unchanged, skipped"
		return result
	}

	in := &extract.Input{Path: abs, Data: data, DeclaredType: opts.DeclaredType}
	extractor, err := p.registry.Resolve(in)
	if err != nil {
		p.recordFailure(ctx, itemID, abs, "unsupported file type")
		result.Err = err
		result.Message = "unsupported file type"
		return result
	}

	units, err := p.registry.Extract(ctx, in, p.cfg.Extract)
	if err != nil {
		p.recordFailure(ctx, itemID, abs, "extraction failed")
		result.Err = pulseerrors.Extraction(abs, err)
		result.Message = "extraction failed"
		return result
	}

	now := p.now().UTC()
	createdAt := now
	if existing != nil {
		createdAt = existing.CreatedAt
	}

	item := &store.SourceItem{
		ID:          itemID,
		Path:        abs,
		Title:       filepath.Base(abs),
		FileType:    strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), "."),
		Category:    extractor.Category(),
		ContentHash: contentHash,
		Status:      store.StatusDone,
		Importance:  importanceFor(extractor.Category(), fileModTime(abs, now), now),
		Metadata:    enrich.Merge(enrich.File(abs), enrich.Content(abs, data), opts.Metadata),
		Tags:        p.collectTags(ctx, abs, data, opts.Tags),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}

	if len(units) == 0 {
		item.StatusNote = "no content extracted"
		if extract.IsBinary(data) {
			item.StatusNote = "binary content skipped"
		}
		if _, err := p.store.UpsertItem(ctx, item, nil, nil); err != nil {
			result.Err = err
			result.Message = "store write failed"
			return result
		}
		result.Status = store.StatusDone
		result.Message = item.StatusNote
		return result
	}

	contentUnits := make([]*store.ContentUnit, len(units))
	texts := make([]string, len(units))
	for i, u := range units {
		contentUnits[i] = &store.ContentUnit{
			ID:         UnitID(itemID, u.Ordinal, contentHash),
			ItemID:     itemID,
			Ordinal:    u.Ordinal,
			Kind:       string(u.Kind),
			Text:       u.Text,
			Attrs:      u.Attrs,
			Importance: item.Importance,
			CreatedAt:  createdAt,
		}
		texts[i] = u.Text
	}

	vectors, embedErr := p.embedder.EmbedBatch(ctx, texts)
	if embedErr != nil {
		// Metadata is still written so the item stays findable by
		// filters; the status note keeps it eligible for re-embedding, so
		// the next ingestion run repairs it once the embedder is back.
		p.logger.Warn("embedding unavailable, writing metadata only",
			slog.String("path", abs),
			slog.String("error", embedErr.Error()))
		item.StatusNote = store.NoteEmbeddingsUnavailable
		if err := p.store.UpsertItemMetadataOnly(ctx, item, contentUnits); err != nil {
			result.Err = err
			result.Message = "store write failed"
			return result
		}
		result.Status = store.StatusDone
		result.Units = len(contentUnits)
		result.Message = item.StatusNote
		return result
	}

	upsert, err := p.store.UpsertItem(ctx, item, contentUnits, vectors)
	if err != nil {
		result.Err = err
		result.Message = "store write failed"
		return result
	}

	result.Status = store.StatusDone
	result.Skipped = upsert.Skipped
	result.Units = upsert.UnitsWritten
	return result
}

// IngestBatch processes paths with bounded parallelism and a per-file
// timeout. The report aggregates every outcome in input order.
func (p *Pipeline) IngestBatch(ctx context.Context, paths []string, opts FileOptions) *Report {
	report := &Report{
		BatchID: uuid.NewString(),
		Total:   len(paths),
		Results: make([]FileResult, len(paths)),
	}
	if len(paths) == 0 {
		return report
	}

	start := p.now()
	sem := semaphore.NewWeighted(int64(p.cfg.Workers))
	g, gctx := errgroup.WithContext(ctx)

	for i, path := range paths {
		if err := sem.Acquire(gctx, 1); err != nil {
			report.Results[i] = FileResult{Path: path, Status: store.StatusFailed, Err: err, Message: "cancelled"}
			continue
		}
		g.Go(func() error {
			defer sem.Release(1)
			report.Results[i] = p.ingestWithTimeout(gctx, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range report.Results {
		if r.Err != nil {
			report.Failed++
		} else {
			report.Successful++
		}
	}
	p.logger.Info("batch complete",
		slog.String("batch_id", report.BatchID),
		slog.Int("total", report.Total),
		slog.Int("successful", report.Successful),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", p.now().Sub(start)))
	return report
}

// IngestDirectory scans the root with the given glob patterns and
// ingests every discovered file as one batch.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string, recursive bool, include, exclude []string, opts FileOptions) (*Report, error) {
	results, err := scanner.Scan(ctx, scanner.Options{
		Root:         root,
		Recursive:    recursive,
		IncludeGlobs: include,
		ExcludeGlobs: exclude,
		MaxFileSize:  p.cfg.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	var paths []string
	for r := range results {
		if r.Err != nil {
			p.logger.Warn("scan error", slog.String("error", r.Err.Error()))
			continue
		}
		paths = append(paths, r.File.AbsPath)
	}
	return p.IngestBatch(ctx, paths, opts), nil
}

// ingestWithTimeout wraps one pipeline run in the per-file deadline so
// a single oversized file cannot stall a batch.
func (p *Pipeline) ingestWithTimeout(ctx context.Context, path string, opts FileOptions) FileResult {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()

	result := p.IngestFile(fctx, path, opts)
	if result.Err != nil && fctx.Err() == context.DeadlineExceeded {
		result.Message = "timeout"
		result.Err = pulseerrors.New(pulseerrors.ErrCodeExtractionTimeout,
			fmt.Sprintf("ingestion of %s timed out after %s", path, p.cfg.FileTimeout), fctx.Err())
		if result.ItemID != "" {
			// Best effort; the deadline context is already dead.
			if err := p.store.Metadata.UpdateItemStatus(context.WithoutCancel(ctx), result.ItemID, store.StatusFailed, "timeout"); err != nil {
				p.logger.Warn("failed to record timeout status",
					slog.String("item_id", result.ItemID),
					slog.String("error", err.Error()))
			}
		}
	}
	return result
}

// recordFailure persists a failed item row so the failure is visible in
// listings. Errors here are logged, not surfaced; the original failure
// matters more.
func (p *Pipeline) recordFailure(ctx context.Context, itemID, abs, note string) {
	now := p.now().UTC()
	item := &store.SourceItem{
		ID:         itemID,
		Path:       abs,
		Title:      filepath.Base(abs),
		FileType:   strings.TrimPrefix(strings.ToLower(filepath.Ext(abs)), "."),
		Category:   extract.CategoryDocument,
		Status:     store.StatusFailed,
		StatusNote: note,
		Tags:       tag.FromPath(abs),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if existing, err := p.store.Metadata.GetItemByPath(ctx, abs); err == nil {
		item.CreatedAt = existing.CreatedAt
		item.Category = existing.Category
	}
	if err := p.store.Metadata.SaveItem(ctx, item); err != nil {
		p.logger.Warn("failed to record ingest failure",
			slog.String("path", abs),
			slog.String("error", err.Error()))
	}
}

// collectTags merges path-derived, caller-supplied, and generated tags.
func (p *Pipeline) collectTags(ctx context.Context, abs string, data []byte, explicit []string) []string {
	tags := append(tag.FromPath(abs), explicit...)
	if generated := p.generateTags(ctx, abs, data); len(generated) > 0 {
		tags = append(tags, generated...)
	}
	return tag.Clean(tags)
}

// generateTags calls the auto-tagger with its own deadline. Failure
// yields no tags and never blocks ingestion.
func (p *Pipeline) generateTags(ctx context.Context, abs string, data []byte) []string {
	if !p.tagger.Available(ctx) {
		return nil
	}
	if extract.IsBinary(data) {
		return nil
	}
	content := string(data)
	if len(content) > p.cfg.TagMaxChars {
		content = content[:p.cfg.TagMaxChars]
	}

	tctx, cancel := context.WithTimeout(ctx, p.cfg.TagTimeout)
	defer cancel()

	ts, err := p.tagger.Generate(tctx, content, filepath.Base(abs))
	if err != nil {
		p.logger.Warn("tag generation failed",
			slog.String("path", abs),
			slog.String("error", err.Error()))
		return nil
	}
	return tag.CleanSet(ts).Flatten()
}

// importanceFor scores an item by its category with a recency bump.
func importanceFor(category string, modTime, now time.Time) int {
	var base int
	switch category {
	case extract.CategoryCode:
		base = 80
	case extract.CategoryStructured:
		base = 75
	case extract.CategorySpreadsheet, extract.CategoryDocument:
		base = 70
	default:
		base = 60
	}
	switch age := now.Sub(modTime); {
	case age < 7*24*time.Hour:
		base += 10
	case age < 30*24*time.Hour:
		base += 5
	}
	if base > 100 {
		base = 100
	}
	return base
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fileModTime(path string, fallback time.Time) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return fallback
	}
	return info.ModTime()
}
