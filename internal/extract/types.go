// Package extract converts raw file bytes into ordered sequences of content
// unit drafts with structural metadata. Extractors are registered against
// type tags and dispatched through an explicit priority-ordered match table:
// exact extension first, then declared category, then a fallback line
// chunker that never fails on well-formed input.
package extract

import (
	"bytes"
	"context"
	"unicode/utf8"
)

// Category tags extractors are registered against.
const (
	CategorySpreadsheet = "spreadsheet"
	CategoryStructured  = "structured-data"
	CategoryCode        = "code"
	CategoryDocument    = "generic-document"
)

// UnitKind classifies a content unit draft.
type UnitKind string

const (
	// KindOverview is the ordinal-leading summary unit for a file or sheet.
	KindOverview UnitKind = "overview"
	// KindRowBatch is a fixed-size window of spreadsheet rows.
	KindRowBatch UnitKind = "row-batch"
	// KindPathNode is a path-indexed node from tree-shaped data.
	KindPathNode UnitKind = "path-node"
	// KindFunctionBlock is a declaration-aligned code chunk.
	KindFunctionBlock UnitKind = "function-block"
	// KindTextWindow is a contiguous, non-overlapping line window.
	KindTextWindow UnitKind = "text-window"
)

// Structural attribute keys shared by extractors.
const (
	AttrSheetName      = "sheet_name"
	AttrRowStart       = "row_start"
	AttrRowEnd         = "row_end"
	AttrColumns        = "columns"
	AttrFormulas       = "formulas"
	AttrCellComments   = "cell_comments"
	AttrNumericSummary = "numeric_summary"
	AttrPath           = "path"
	AttrIndexStart     = "index_start"
	AttrIndexEnd       = "index_end"
	AttrValueType      = "value_type"
	AttrSchema         = "schema"
	AttrLanguage       = "language"
	AttrSymbolName     = "symbol_name"
	AttrSymbolKind     = "symbol_kind"
	AttrImports        = "imports"
	AttrCommentSpans   = "comment_spans"
	AttrLineStart      = "line_start"
	AttrLineEnd        = "line_end"
	AttrPartIndex      = "part_index"
)

// Unit is one extracted chunk draft. Drafts are passed by value to the
// ingestion pipeline, which owns identity assignment and persistence.
type Unit struct {
	Kind    UnitKind
	Ordinal int
	Text    string
	Attrs   map[string]string
}

// Input is the raw material handed to an extractor.
type Input struct {
	// Path is the original file path, used for naming and dispatch only.
	Path string
	// Data is the raw file content. Extractors never mutate it.
	Data []byte
	// DeclaredType is the caller-declared category hint (may be empty).
	DeclaredType string
}

// Config is the immutable chunking configuration passed into every
// extractor call. Identical input and config produce identical units.
type Config struct {
	// MaxRowsPerChunk is the spreadsheet row-batch size.
	MaxRowsPerChunk int
	// MaxArrayItemsPerChunk splits longer arrays into index-range chunks.
	MaxArrayItemsPerChunk int
	// MaxDepth bounds tree traversal for structured data.
	MaxDepth int
	// MaxLinesPerChunk hard-splits oversized declarations and sizes
	// fallback text windows.
	MaxLinesPerChunk int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxRowsPerChunk:       100,
		MaxArrayItemsPerChunk: 50,
		MaxDepth:              10,
		MaxLinesPerChunk:      100,
	}
}

// Extractor converts raw bytes into an ordered sequence of unit drafts.
type Extractor interface {
	// Name identifies the extractor in supported-type listings.
	Name() string

	// Description is a one-line human-readable summary.
	Description() string

	// Extensions returns the file extensions this extractor handles,
	// lowercase with leading dot.
	Extensions() []string

	// Category returns the type tag used for declared-type dispatch.
	Category() string

	// Extract produces unit drafts from raw bytes. Ordinals in the
	// returned slice are contiguous starting at 0.
	Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error)
}

// IsBinary reports whether data looks like binary content. Binary payloads
// are skipped with a status note rather than failing extraction.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	sample := data
	if len(sample) > 8000 {
		sample = sample[:8000]
	}
	if bytes.IndexByte(sample, 0x00) >= 0 {
		return true
	}
	return !utf8.Valid(sample)
}

// assignOrdinals numbers units contiguously from 0 and returns the slice.
func assignOrdinals(units []*Unit) []*Unit {
	for i, u := range units {
		u.Ordinal = i
	}
	return units
}

// attrs builds an attribute map from alternating key/value pairs.
func attrs(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}
