package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()

	assert.Equal(t, 100, cfg.Extract.MaxRowsPerChunk)
	assert.Equal(t, 50, cfg.Extract.MaxArrayItemsPerChunk)
	assert.Equal(t, 10, cfg.Extract.MaxDepth)
	assert.Equal(t, 100, cfg.Extract.MaxLinesPerChunk)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 2*time.Minute, cfg.Ingest.FileTimeout)
	assert.Equal(t, 2, cfg.Search.OverfetchFactor)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
extract:
  max_rows_per_chunk: 25
search:
  default_top_k: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Extract.MaxRowsPerChunk)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	// Untouched fields keep defaults.
	assert.Equal(t, 50, cfg.Extract.MaxArrayItemsPerChunk)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract:\n  max_rows_per_chunk: 25\n"), 0o644))

	t.Setenv("PULSE_MAX_ROWS_PER_CHUNK", "7")
	t.Setenv("PULSE_DATA_DIR", filepath.Join(dir, "data"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Extract.MaxRowsPerChunk)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDir)
	assert.Equal(t, filepath.Join(dir, "data", "models"), cfg.Storage.ModelsDir)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rows per chunk", func(c *Config) { c.Extract.MaxRowsPerChunk = 0 }},
		{"negative depth", func(c *Config) { c.Extract.MaxDepth = -1 }},
		{"zero workers", func(c *Config) { c.Ingest.Workers = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "quantum" }},
		{"http without endpoint", func(c *Config) { c.Embeddings.Provider = "http" }},
		{"empty data dir", func(c *Config) { c.Storage.DataDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := New()
	cfg.Extract.MaxRowsPerChunk = 42
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Extract.MaxRowsPerChunk)
}
