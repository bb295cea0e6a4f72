package tag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	in := []string{" Billing ", "billing", "", "REVENUE", strings.Repeat("x", 65)}
	out := Clean(in)
	assert.Equal(t, []string{"billing", "revenue"}, out)
}

func TestClean_CapsAtMax(t *testing.T) {
	in := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		in = append(in, strings.Repeat("t", i+1))
	}
	assert.Len(t, Clean(in), MaxTagsPerField)
}

func TestFromPath(t *testing.T) {
	tags := FromPath("projects/billing/reports/q3_summary.xlsx")

	assert.Contains(t, tags, "q3_summary")
	assert.Contains(t, tags, "xlsx")
	assert.Contains(t, tags, "reports")
	assert.Contains(t, tags, "billing")
	assert.Contains(t, tags, "projects")
}

func TestFromPath_DeepPathCapsParents(t *testing.T) {
	tags := FromPath("a/b/c/d/e/f/g/h/file.txt")

	// file stem, extension, and at most five nearest parents.
	assert.LessOrEqual(t, len(tags), 7)
	assert.Contains(t, tags, "h")
	assert.Contains(t, tags, "d")
	assert.NotContains(t, tags, "a")
}

func TestTagSet_Flatten(t *testing.T) {
	ts := TagSet{
		Topics:   []string{"finance"},
		Keywords: []string{"revenue", "finance"},
		Entities: []string{"acme"},
	}
	assert.Equal(t, []string{"acme", "finance", "revenue"}, ts.Flatten())
	assert.False(t, ts.Empty())
	assert.True(t, TagSet{}.Empty())
}

func TestHTTPTagger_GenerateParsesStructuredResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Prompt, "quarterly report")

		inner, _ := json.Marshal(TagSet{
			Topics:     []string{"Finance", "planning"},
			Keywords:   []string{"revenue"},
			Categories: []string{"report"},
		})
		_ = json.NewEncoder(w).Encode(generateResponse{Response: string(inner)})
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(HTTPConfig{Endpoint: srv.URL, Model: "test"})
	require.NoError(t, err)

	ts, err := tagger.Generate(context.Background(), "quarterly report contents", "q3.xlsx")
	require.NoError(t, err)
	assert.Equal(t, []string{"finance", "planning"}, ts.Topics)
	assert.Equal(t, []string{"revenue"}, ts.Keywords)
	assert.Equal(t, []string{"report"}, ts.Categories)
}

func TestHTTPTagger_NonJSONResponseFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "sure! here are some tags: finance"})
	}))
	defer srv.Close()

	tagger, err := NewHTTPTagger(HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	_, err = tagger.Generate(context.Background(), "content", "title")
	assert.Error(t, err, "free-text responses are rejected, not partially parsed")
}

func TestHTTPTagger_ServerDownReturnsError(t *testing.T) {
	tagger, err := NewHTTPTagger(HTTPConfig{Endpoint: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = tagger.Generate(context.Background(), "content", "title")
	assert.Error(t, err)
	assert.False(t, tagger.Available(context.Background()))
}

func TestDisabled(t *testing.T) {
	ts, err := Disabled{}.Generate(context.Background(), "content", "title")
	require.NoError(t, err)
	assert.True(t, ts.Empty())
	assert.False(t, Disabled{}.Available(context.Background()))
}
