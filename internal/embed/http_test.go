package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embedServer(t *testing.T, dims int, failures *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failures != nil && failures.Load() > 0 {
			failures.Add(-1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		vecs := make([][]float32, len(req.Input))
		for i := range vecs {
			vec := make([]float32, dims)
			vec[0] = 1
			vecs[i] = vec
		}
		require.NoError(t, json.NewEncoder(w).Encode(embedResponse{Embeddings: vecs}))
	}))
}

func TestHTTPEmbedder_DetectsDimensions(t *testing.T) {
	srv := embedServer(t, 384, nil)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint: srv.URL,
		Model:    "test-model",
	})
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, 384, e.Dimensions())
	assert.Equal(t, "test-model", e.ModelName())
}

func TestHTTPEmbedder_BatchSplitting(t *testing.T) {
	srv := embedServer(t, 8, nil)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint:        srv.URL,
		BatchSize:       2,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	for _, v := range vecs {
		assert.Len(t, v, 8)
	}
}

func TestHTTPEmbedder_RetriesTransientFailures(t *testing.T) {
	var failures atomic.Int64
	failures.Store(2)
	srv := embedServer(t, 8, &failures)
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint:        srv.URL,
		MaxRetries:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "eventually works")
	assert.NoError(t, err, "two 500s then success within retry budget")
}

func TestHTTPEmbedder_ClientErrorIsTerminal(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer srv.Close()

	e, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint:        srv.URL,
		MaxRetries:      3,
		SkipHealthCheck: true,
	})
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, int64(1), requests.Load(), "4xx responses are not retried")
}

func TestHTTPEmbedder_UnreachableServerFailsConstruction(t *testing.T) {
	_, err := NewHTTPEmbedder(context.Background(), HTTPConfig{
		Endpoint: "http://127.0.0.1:1",
		Timeout:  500 * time.Millisecond,
	})
	assert.Error(t, err)
}

func TestNew_FallsBackToStaticWhenServerDown(t *testing.T) {
	e, err := newFallbackForTest(t)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, "static", e.ModelName())
}
