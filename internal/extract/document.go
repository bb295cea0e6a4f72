package extract

import (
	"context"
	"fmt"
	"strings"
)

// DocumentExtractor is the fallback: contiguous non-overlapping line
// windows over any text payload. Binary content yields zero units.
type DocumentExtractor struct{}

// NewDocumentExtractor returns the fallback text extractor.
func NewDocumentExtractor() *DocumentExtractor { return &DocumentExtractor{} }

func (d *DocumentExtractor) Name() string        { return "document" }
func (d *DocumentExtractor) Description() string { return "plain text split into line windows" }
func (d *DocumentExtractor) Category() string    { return CategoryDocument }

func (d *DocumentExtractor) Extensions() []string {
	return []string{".txt", ".md", ".rst", ".log"}
}

func (d *DocumentExtractor) Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	if IsBinary(in.Data) {
		return nil, nil
	}
	return lineWindows(string(in.Data), cfg.MaxLinesPerChunk), nil
}

// lineWindows splits text into consecutive windows of at most maxLines
// lines each. Line numbers in attrs are 1-based and inclusive.
func lineWindows(text string, maxLines int) []*Unit {
	if maxLines <= 0 {
		maxLines = DefaultConfig().MaxLinesPerChunk
	}
	lines := strings.Split(text, "\n")
	// Trailing newline produces one empty tail line; drop it.
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	var units []*Unit
	for start := 0; start < len(lines); start += maxLines {
		end := start + maxLines
		if end > len(lines) {
			end = len(lines)
		}
		body := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		units = append(units, &Unit{
			Kind: KindTextWindow,
			Text: body,
			Attrs: attrs(
				AttrLineStart, fmt.Sprintf("%d", start+1),
				AttrLineEnd, fmt.Sprintf("%d", end),
			),
		})
	}
	return units
}
