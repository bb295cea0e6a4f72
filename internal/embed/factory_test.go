package embed

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UncleTupelo/pulse/internal/config"
)

func newFallbackForTest(t *testing.T) (Embedder, error) {
	t.Helper()
	return New(context.Background(), config.EmbeddingsConfig{
		Provider: "http",
		Endpoint: "http://127.0.0.1:1",
		Timeout:  500 * time.Millisecond,
	}, slog.Default())
}

func TestNew_StaticProvider(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingsConfig{Provider: "static"}, nil)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "static", e.ModelName())
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNew_DefaultProviderIsStatic(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingsConfig{}, nil)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "static", e.ModelName())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.EmbeddingsConfig{Provider: "quantum"}, nil)
	assert.Error(t, err)
}
