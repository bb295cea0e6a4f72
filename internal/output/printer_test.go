package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UncleTupelo/pulse/internal/ingest"
	"github.com/UncleTupelo/pulse/internal/registry"
	"github.com/UncleTupelo/pulse/internal/search"
	"github.com/UncleTupelo/pulse/internal/store"
)

func plainPrinter(buf *bytes.Buffer, jsonMode bool) *Printer {
	return NewPrinterWithStyles(buf, PlainStyles(), jsonMode)
}

func sampleResponse() *search.Response {
	return &search.Response{
		Results: []*search.Result{
			{
				Unit: &store.ContentUnit{
					ID: "u1", Kind: "text-window", Importance: 80,
					Text: "first line of the match\nsecond line",
				},
				Item: &store.SourceItem{
					Path: "/work/readme.md", Title: "readme.md",
					Tags: []string{"docs", "readme"},
				},
				Relevance: 0.912,
			},
		},
		Total: 3,
	}
}

func TestSearchResponse_PlainText(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).SearchResponse(sampleResponse())

	out := buf.String()
	assert.Contains(t, out, "readme.md")
	assert.Contains(t, out, "(0.912)")
	assert.Contains(t, out, "docs, readme")
	assert.Contains(t, out, "first line of the match")
	assert.NotContains(t, out, "second line", "snippet keeps the first line only")
	assert.Contains(t, out, "1 of 3 matches")
}

func TestSearchResponse_DegradedWarning(t *testing.T) {
	var buf bytes.Buffer
	resp := sampleResponse()
	resp.Degraded = true
	plainPrinter(&buf, false).SearchResponse(resp)
	assert.Contains(t, buf.String(), "embeddings unavailable")
}

func TestSearchResponse_JSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, true).SearchResponse(sampleResponse())

	var decoded search.Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded.Total)
	require.Len(t, decoded.Results, 1)
	assert.InDelta(t, 0.912, decoded.Results[0].Relevance, 1e-9)
}

func TestFacets_RendersAllGroups(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).Facets(&search.Facets{
		FileTypes: []search.FacetCount{{Value: "md", Count: 4}},
		UnitKinds: []search.FacetCount{{Value: "text-window", Count: 4}},
		Tags:      []search.FacetCount{{Value: "docs", Count: 2}},
		Dates:     search.DateBuckets{LastDay: 1, LastWeek: 1, LastMonth: 1, Older: 1},
	})

	out := buf.String()
	for _, want := range []string{"file types", "unit kinds", "tags", "age", "last 24 hours", "older"} {
		assert.Contains(t, out, want)
	}
}

func TestIngestReport_MixedOutcomes(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).IngestReport(&ingest.Report{
		Total: 3, Successful: 2, Failed: 1,
		Results: []ingest.FileResult{
			{Path: "/a.txt", Units: 2},
			{Path: "/b.txt", Skipped: true},
			{Path: "/c.xyz", Message: "unsupported file type", Err: assert.AnError},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "indexed /a.txt (2 units)")
	assert.Contains(t, out, "skipped /b.txt")
	assert.Contains(t, out, "failed  /c.xyz: unsupported file type")
	assert.Contains(t, out, "3 files: 2 ok, 1 failed")
}

func TestItems_ShowsTruncationCounter(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).Items([]*store.SourceItem{
		{Path: "/a.txt", Category: "generic-document", CreatedAt: time.Now()},
	}, 9)

	out := buf.String()
	assert.Contains(t, out, "/a.txt")
	assert.Contains(t, out, "1 of 9 items")
}

func TestArtifact_FullDetail(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).Artifact(&registry.Artifact{
		Name: "classifier", Version: "1.2.0", Active: true,
		ModelType: "classification", Framework: "pytorch",
		Description: "spam detector",
		FilePath:    "/models/classifier/1.2.0/clf.bin",
		FileSize:    2048,
		Metrics:     map[string]float64{"f1": 0.91},
	})

	out := buf.String()
	assert.Contains(t, out, "classifier v1.2.0")
	assert.Contains(t, out, "classification · pytorch")
	assert.Contains(t, out, "spam detector")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "f1: 0.9100")
}

func TestArtifacts_MarksInactive(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).Artifacts([]*registry.Artifact{
		{Name: "old", Version: "0.1.0", Active: false},
	}, 1)
	assert.Contains(t, buf.String(), "(inactive)")
}

func TestStats_StableKeyOrder(t *testing.T) {
	var buf bytes.Buffer
	plainPrinter(&buf, false).Stats(map[string]any{
		"units": 12, "items": 4, "vectors": 12,
	})

	out := buf.String()
	assert.Less(t, strings.Index(out, "items"), strings.Index(out, "units"))
	assert.Less(t, strings.Index(out, "units"), strings.Index(out, "vectors"))
}

func TestSnippetOf_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("a", snippetLength+40)
	got := snippetOf(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len([]rune(got)), snippetLength+1)
}

func TestIsTTY_FalseForBuffer(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}
