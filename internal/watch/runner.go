package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/store"
)

// Runner consumes watcher batches and keeps the index in sync: created
// and modified files are re-ingested, deleted files are removed from
// both stores. Re-ingestion is idempotent, so create-then-modify races
// at worst cost one redundant pass.
type Runner struct {
	watcher  *Watcher
	pipeline *ingest.Pipeline
	store    *store.DualStore
	opts     ingest.FileOptions
	logger   *slog.Logger
}

// NewRunner wires a watcher to an ingestion pipeline.
func NewRunner(w *Watcher, p *ingest.Pipeline, ds *store.DualStore, opts ingest.FileOptions, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{watcher: w, pipeline: p, store: ds, opts: opts, logger: logger}
}

// Run starts the watcher and processes batches until the context is
// cancelled. It blocks.
func (r *Runner) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.watcher.Start(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			_ = r.watcher.Stop()
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			return err
		case werr := <-r.watcher.Errors():
			r.logger.Warn("watch error", slog.String("error", werr.Error()))
		case batch, ok := <-r.watcher.Batches():
			if !ok {
				return <-errCh
			}
			r.apply(ctx, batch)
		}
	}
}

func (r *Runner) apply(ctx context.Context, batch []Event) {
	start := time.Now()
	var ingested, removed, failed int

	for _, ev := range batch {
		if ev.IsDir {
			continue
		}
		switch ev.Op {
		case OpCreate, OpModify:
			result := r.pipeline.IngestFile(ctx, ev.Path, r.opts)
			if result.Err != nil {
				failed++
				r.logger.Warn("reingest failed",
					slog.String("path", ev.Path),
					slog.String("error", result.Err.Error()))
				continue
			}
			if !result.Skipped {
				ingested++
			}
		case OpDelete, OpRename:
			// Renames arrive as a rename on the old path and a create
			// on the new one, so both map to removal here.
			if err := r.store.DeleteItem(ctx, ingest.ItemID(ev.Path)); err != nil {
				failed++
				r.logger.Warn("remove from index failed",
					slog.String("path", ev.Path),
					slog.String("error", err.Error()))
				continue
			}
			removed++
		}
	}

	r.logger.Info("watch batch applied",
		slog.Int("events", len(batch)),
		slog.Int("ingested", ingested),
		slog.Int("removed", removed),
		slog.Int("failed", failed),
		slog.Duration("duration", time.Since(start)))
}
