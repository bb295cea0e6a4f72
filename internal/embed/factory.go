package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UncleTupelo/pulse/internal/config"
)

// New builds the configured embedder, wrapped with the LRU cache. An
// unreachable HTTP backend falls back to the static embedder with a
// warning so ingestion keeps working offline.
func New(ctx context.Context, cfg config.EmbeddingsConfig, logger *slog.Logger) (Embedder, error) {
	switch cfg.Provider {
	case "", "static":
		return NewCachedEmbedder(NewStaticEmbedder(), cfg.CacheSize), nil

	case "http":
		e, err := NewHTTPEmbedder(ctx, HTTPConfig{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
		if err != nil {
			if logger != nil {
				logger.Warn("embedding server unavailable, falling back to static embedder",
					"endpoint", cfg.Endpoint,
					"error", err)
			}
			return NewCachedEmbedder(NewStaticEmbedder(), cfg.CacheSize), nil
		}
		return NewCachedEmbedder(e, cfg.CacheSize), nil

	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
}
