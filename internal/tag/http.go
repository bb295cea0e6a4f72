package tag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// DefaultMaxContentChars truncates content sent to the tagging backend.
const DefaultMaxContentChars = 4000

// HTTPConfig configures the HTTP tagger.
type HTTPConfig struct {
	// Endpoint is the base URL of the generation server.
	Endpoint string
	// Model is the model identifier sent with each request.
	Model string
	// Timeout bounds each request.
	Timeout time.Duration
	// MaxContentChars truncates oversized content before sending.
	MaxContentChars int
}

// HTTPTagger asks a local generation server for structured tags. The
// server is prompted for strict JSON; anything unparseable counts as a
// failed generation, never as partial tags.
type HTTPTagger struct {
	client *http.Client
	config HTTPConfig
}

var _ Tagger = (*HTTPTagger)(nil)

// NewHTTPTagger creates an HTTP tagger.
func NewHTTPTagger(cfg HTTPConfig) (*HTTPTagger, error) {
	if cfg.Endpoint == "" {
		return nil, pulseerrors.Validation("tagging endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = DefaultMaxContentChars
	}
	return &HTTPTagger{
		client: &http.Client{Transport: &http.Transport{
			MaxIdleConns:    2,
			IdleConnTimeout: 10 * time.Second,
		}},
		config: cfg,
	}, nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Format string `json:"format"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

const promptTemplate = `Analyze the following content and produce JSON with exactly these keys:
{"topics": [], "keywords": [], "entities": [], "categories": []}
Each list holds at most %d short lowercase strings. Respond with JSON only.

Title: %s

Content:
%s`

func (h *HTTPTagger) Generate(ctx context.Context, content, title string) (TagSet, error) {
	if len(content) > h.config.MaxContentChars {
		content = content[:h.config.MaxContentChars]
	}

	body, err := json.Marshal(generateRequest{
		Model:  h.config.Model,
		Prompt: fmt.Sprintf(promptTemplate, MaxTagsPerField, title, content),
		Format: "json",
		Stream: false,
	})
	if err != nil {
		return TagSet{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		h.config.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return TagSet{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return TagSet{}, pulseerrors.Transient(pulseerrors.ErrCodeTaggingUnavailable,
			"tagging server unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return TagSet{}, pulseerrors.Transient(pulseerrors.ErrCodeTaggingUnavailable,
			fmt.Sprintf("tagging server returned %d: %s", resp.StatusCode, string(raw)), nil)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return TagSet{}, fmt.Errorf("decode response: %w", err)
	}

	var ts TagSet
	text := strings.TrimSpace(parsed.Response)
	if err := json.Unmarshal([]byte(text), &ts); err != nil {
		return TagSet{}, fmt.Errorf("model returned non-JSON tags: %w", err)
	}
	return CleanSet(ts), nil
}

func (h *HTTPTagger) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, h.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Disabled is the no-op tagger used when tagging is turned off.
type Disabled struct{}

var _ Tagger = Disabled{}

func (Disabled) Generate(context.Context, string, string) (TagSet, error) {
	return TagSet{}, nil
}

func (Disabled) Available(context.Context) bool { return false }
