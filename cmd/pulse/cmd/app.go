package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/UncleTupelo/pulse/internal/config"
	"github.com/UncleTupelo/pulse/internal/embed"
	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/logging"
	"github.com/UncleTupelo/pulse/internal/output"
	"github.com/UncleTupelo/pulse/internal/registry"
	"github.com/UncleTupelo/pulse/internal/search"
	"github.com/UncleTupelo/pulse/internal/store"
	"github.com/UncleTupelo/pulse/internal/tag"
)

// app bundles everything a command needs: configuration, the dual
// store, the query engine, the ingestion pipeline, and the artifact
// registry, opened once per invocation and closed together.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	printer  *output.Printer
	store    *store.DualStore
	embedder embed.Embedder
	engine   *search.Engine
	pipeline *ingest.Pipeline
	registry *registry.Registry

	cleanups []func()
}

// openApp loads configuration and wires the full stack. Every command
// that touches the index goes through here, so they all agree on paths
// and embedder dimensions.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.dataDir != "" {
		cfg.Storage.DataDir = flags.dataDir
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: flags.debug,
	}
	if flags.debug {
		logCfg.Level = "debug"
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		printer:  output.NewPrinter(cmd.OutOrStdout(), flags.jsonOutput),
		cleanups: []func(){logCleanup},
	}

	embedder, err := embed.New(ctx, cfg.Embeddings, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = embedder
	a.cleanups = append(a.cleanups, func() { _ = embedder.Close() })

	ds, err := store.OpenDual(store.DualStoreOptions{
		DataDir:       cfg.Storage.DataDir,
		Dimensions:    embedder.Dimensions(),
		SQLiteCacheMB: cfg.Storage.SQLiteCacheMB,
		Logger:        logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = ds
	a.cleanups = append(a.cleanups, func() { _ = ds.Close() })

	engine, err := search.NewEngine(ds.Metadata, ds.Vectors, embedder,
		search.EngineConfigFrom(cfg.Search), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = engine

	pipeline, err := ingest.NewPipeline(ds, nil, embedder, a.tagger(), ingest.ConfigFrom(cfg), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.pipeline = pipeline

	blobs, err := registry.NewFileBlobStore(cfg.Storage.ModelsDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	reg, err := registry.NewRegistry(ds.Metadata.DB(), blobs, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = reg

	return a, nil
}

func (a *app) tagger() tag.Tagger {
	if !a.cfg.Tagging.Enabled {
		return tag.Disabled{}
	}
	t, err := tag.NewHTTPTagger(tag.HTTPConfig{
		Endpoint:        a.cfg.Tagging.Endpoint,
		Model:           a.cfg.Tagging.Model,
		Timeout:         a.cfg.Tagging.Timeout,
		MaxContentChars: a.cfg.Tagging.MaxContentChars,
	})
	if err != nil {
		a.logger.Warn("tagger disabled", slog.String("error", err.Error()))
		return tag.Disabled{}
	}
	return t
}

// Close releases resources in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		a.cleanups[i]()
	}
	a.cleanups = nil
}
