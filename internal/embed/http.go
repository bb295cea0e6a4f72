package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// Endpoint is the base URL of the embedding server.
	Endpoint string
	// Model is the model identifier sent with each request.
	Model string
	// Dimensions is the expected vector width. Zero means auto-detect
	// from the first response.
	Dimensions int
	// BatchSize caps texts per request.
	BatchSize int
	// Timeout bounds each request.
	Timeout time.Duration
	// MaxRetries is the retry budget for transient failures.
	MaxRetries int
	// SkipHealthCheck bypasses the startup probe (tests).
	SkipHealthCheck bool
}

// HTTPEmbedder generates embeddings through a local model server
// speaking the /api/embed JSON protocol.
type HTTPEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    HTTPConfig

	mu     sync.RWMutex
	closed bool
	dims   int
}

var _ Embedder = (*HTTPEmbedder)(nil)

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewHTTPEmbedder creates an HTTP embedder and probes the server unless
// the health check is skipped.
func NewHTTPEmbedder(ctx context.Context, cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, pulseerrors.Validation("embedding endpoint is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}

	// Short idle timeout: CLI runs are short-lived and connections
	// should drain quickly after interrupt.
	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	e := &HTTPEmbedder{
		// Per-request context timeouts, not a static client timeout,
		// so callers keep cancellation control.
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		vecs, err := e.request(probeCtx, []string{"dimension probe"})
		if err != nil {
			transport.CloseIdleConnections()
			return nil, pulseerrors.Transient(pulseerrors.ErrCodeEmbeddingUnavailable,
				"embedding server unreachable", err)
		}
		if len(vecs) == 1 && e.dims == 0 {
			e.mu.Lock()
			e.dims = len(vecs[0])
			e.mu.Unlock()
		}
	}
	return e, nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for lo := 0; lo < len(texts); lo += e.config.BatchSize {
		hi := lo + e.config.BatchSize
		if hi > len(texts) {
			hi = len(texts)
		}
		vecs, err := e.requestWithRetry(ctx, texts[lo:hi])
		if err != nil {
			return nil, err
		}
		if len(vecs) != hi-lo {
			return nil, pulseerrors.Internal(
				fmt.Sprintf("embedding count mismatch: sent %d, got %d", hi-lo, len(vecs)), nil)
		}
		results = append(results, vecs...)
	}

	e.mu.Lock()
	if e.dims == 0 && len(results) > 0 {
		e.dims = len(results[0])
	}
	e.mu.Unlock()

	return results, nil
}

// requestWithRetry retries transient failures with doubling backoff.
// Context cancellation and HTTP 4xx responses are terminal.
func (e *HTTPEmbedder) requestWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		vecs, err := e.request(reqCtx, texts)
		cancel()
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var terminal *terminalHTTPError
		if errors.As(err, &terminal) {
			return nil, pulseerrors.Transient(pulseerrors.ErrCodeEmbeddingUnavailable,
				"embedding server rejected request", err)
		}
	}
	return nil, pulseerrors.Transient(pulseerrors.ErrCodeEmbeddingUnavailable,
		fmt.Sprintf("embedding failed after %d attempts", e.config.MaxRetries), lastErr)
}

// terminalHTTPError marks client-side request errors that retrying
// cannot fix.
type terminalHTTPError struct {
	status int
	body   string
}

func (t *terminalHTTPError) Error() string {
	return fmt.Sprintf("status %d: %s", t.status, t.body)
}

func (e *HTTPEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.config.Endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, &terminalHTTPError{status: resp.StatusCode, body: string(raw)}
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Embeddings, nil
}

func (e *HTTPEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

func (e *HTTPEmbedder) ModelName() string { return e.config.Model }

// Available probes the server with a one-text request.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return false
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := e.request(probeCtx, []string{"ping"})
	return err == nil
}

func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
