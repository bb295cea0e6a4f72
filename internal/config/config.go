// Package config defines the pulse configuration: an explicit, immutable
// struct loaded once and passed by value into extractors and the query
// engine. There is no global configuration state.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete pulse configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Extract    ExtractConfig    `yaml:"extract" json:"extract"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Tagging    TaggingConfig    `yaml:"tagging" json:"tagging"`
	Ingest     IngestConfig     `yaml:"ingest" json:"ingest"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// StorageConfig configures on-disk locations.
type StorageConfig struct {
	// DataDir holds the SQLite database and the vector index.
	// Defaults to ~/.pulse.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// ModelsDir holds registered artifact binaries.
	// Defaults to <data_dir>/models.
	ModelsDir string `yaml:"models_dir" json:"models_dir"`
	// SQLiteCacheMB is the SQLite page cache size in MB (default: 64).
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ExtractConfig configures the chunking policies of all extractors.
// The same values produce the same chunks for the same input bytes.
type ExtractConfig struct {
	// MaxRowsPerChunk is the spreadsheet row-batch size (default: 100).
	MaxRowsPerChunk int `yaml:"max_rows_per_chunk" json:"max_rows_per_chunk"`
	// MaxArrayItemsPerChunk splits structured-data arrays longer than this
	// into index-range chunks (default: 50).
	MaxArrayItemsPerChunk int `yaml:"max_array_items_per_chunk" json:"max_array_items_per_chunk"`
	// MaxDepth bounds structured-data traversal (default: 10).
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// MaxLinesPerChunk hard-splits oversized code declarations and sizes
	// fallback text windows (default: 100).
	MaxLinesPerChunk int `yaml:"max_lines_per_chunk" json:"max_lines_per_chunk"`
	// MaxFileSizeMB skips files larger than this (default: 100).
	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Provider selects the backend: "static" (deterministic, no network)
	// or "http" (OpenAI-compatible endpoint). Default: static.
	Provider   string        `yaml:"provider" json:"provider"`
	Endpoint   string        `yaml:"endpoint" json:"endpoint"`
	Model      string        `yaml:"model" json:"model"`
	Dimensions int           `yaml:"dimensions" json:"dimensions"`
	BatchSize  int           `yaml:"batch_size" json:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TaggingConfig configures the best-effort auto-tag generator.
type TaggingConfig struct {
	// Enabled turns LLM-backed tag generation on. Path-derived tags are
	// always applied regardless of this flag.
	Enabled  bool          `yaml:"enabled" json:"enabled"`
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	Model    string        `yaml:"model" json:"model"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	// MaxContentChars truncates content sent to the tagger (default: 4000).
	MaxContentChars int `yaml:"max_content_chars" json:"max_content_chars"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	// Workers bounds ingestion parallelism (default: NumCPU, capped at 8).
	Workers int `yaml:"workers" json:"workers"`
	// FileTimeout bounds extraction time per file (default: 2m).
	FileTimeout time.Duration `yaml:"file_timeout" json:"file_timeout"`
}

// SearchConfig configures the query engine.
type SearchConfig struct {
	// DefaultTopK is used when a request does not set top_k (default: 10).
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	// OverfetchFactor multiplies top_k for vector candidate retrieval so
	// post-filtering still fills a page (default: 2).
	OverfetchFactor int `yaml:"overfetch_factor" json:"overfetch_factor"`
	// FacetTagLimit is the number of top tags returned in facets (default: 20).
	FacetTagLimit int `yaml:"facet_tag_limit" json:"facet_tag_limit"`
}

// LoggingConfig configures logging output.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultDataDir returns the default data directory (~/.pulse).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".pulse")
	}
	return filepath.Join(home, ".pulse")
}

// New creates a Config with sensible defaults.
func New() *Config {
	dataDir := DefaultDataDir()
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir:       dataDir,
			ModelsDir:     filepath.Join(dataDir, "models"),
			SQLiteCacheMB: 64,
		},
		Extract: ExtractConfig{
			MaxRowsPerChunk:       100,
			MaxArrayItemsPerChunk: 50,
			MaxDepth:              10,
			MaxLinesPerChunk:      100,
			MaxFileSizeMB:         100,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "",
			Dimensions: 0, // auto-detect from embedder
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
		},
		Tagging: TaggingConfig{
			Enabled:         false,
			Timeout:         10 * time.Second,
			MaxContentChars: 4000,
		},
		Ingest: IngestConfig{
			Workers:     workers,
			FileTimeout: 2 * time.Minute,
		},
		Search: SearchConfig{
			DefaultTopK:     10,
			OverfetchFactor: 2,
			FacetTagLimit:   20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration: defaults, overlaid with the YAML
// file at path (if path is empty, ~/.config/pulse/config.yaml is tried),
// then PULSE_* environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		path = userConfigPath()
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}

	if path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "pulse", "config.yaml")
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies PULSE_* environment variables, the highest
// priority configuration source.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PULSE_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
		c.Storage.ModelsDir = filepath.Join(v, "models")
	}
	if v := os.Getenv("PULSE_MODELS_DIR"); v != "" {
		c.Storage.ModelsDir = v
	}
	if v := os.Getenv("PULSE_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("PULSE_EMBED_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}
	if v := os.Getenv("PULSE_TAG_ENDPOINT"); v != "" {
		c.Tagging.Endpoint = v
		c.Tagging.Enabled = true
	}
	if v := os.Getenv("PULSE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PULSE_INGEST_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Ingest.Workers = n
		}
	}
	if v := os.Getenv("PULSE_MAX_ROWS_PER_CHUNK"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Extract.MaxRowsPerChunk = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must not be empty")
	}
	if c.Extract.MaxRowsPerChunk <= 0 {
		return fmt.Errorf("extract.max_rows_per_chunk must be positive, got %d", c.Extract.MaxRowsPerChunk)
	}
	if c.Extract.MaxArrayItemsPerChunk <= 0 {
		return fmt.Errorf("extract.max_array_items_per_chunk must be positive, got %d", c.Extract.MaxArrayItemsPerChunk)
	}
	if c.Extract.MaxDepth <= 0 {
		return fmt.Errorf("extract.max_depth must be positive, got %d", c.Extract.MaxDepth)
	}
	if c.Extract.MaxLinesPerChunk <= 0 {
		return fmt.Errorf("extract.max_lines_per_chunk must be positive, got %d", c.Extract.MaxLinesPerChunk)
	}
	if c.Ingest.Workers <= 0 {
		return fmt.Errorf("ingest.workers must be positive, got %d", c.Ingest.Workers)
	}
	if c.Search.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be at least 1, got %d", c.Search.OverfetchFactor)
	}
	switch c.Embeddings.Provider {
	case "static", "http":
	default:
		return fmt.Errorf("embeddings.provider must be static or http, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.Provider == "http" && c.Embeddings.Endpoint == "" {
		return fmt.Errorf("embeddings.endpoint required for http provider")
	}
	return nil
}

// WriteYAML writes the configuration to path in YAML format.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
