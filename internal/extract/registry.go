package extract

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// Registry dispatches inputs to extractors by explicit priority: exact
// extension match first, then declared category, then the registered
// fallback. Registration order breaks extension ties (first wins).
type Registry struct {
	ordered  []Extractor
	byExt    map[string]Extractor
	byCat    map[string]Extractor
	fallback Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt: make(map[string]Extractor),
		byCat: make(map[string]Extractor),
	}
}

// NewDefaultRegistry returns a registry with the built-in extractors wired:
// spreadsheet, structured data, source code, and the document fallback.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewSpreadsheetExtractor())
	r.Register(NewStructuredExtractor())
	r.Register(NewCodeExtractor())
	r.SetFallback(NewDocumentExtractor())
	return r
}

// Register adds an extractor. Extensions already claimed by an earlier
// registration keep their original owner.
func (r *Registry) Register(e Extractor) {
	r.ordered = append(r.ordered, e)
	for _, ext := range e.Extensions() {
		ext = strings.ToLower(ext)
		if _, taken := r.byExt[ext]; !taken {
			r.byExt[ext] = e
		}
	}
	if _, taken := r.byCat[e.Category()]; !taken {
		r.byCat[e.Category()] = e
	}
}

// SetFallback installs the extractor used when no extension or category
// matches. Without a fallback, unmatched inputs fail with an
// unsupported-type error.
func (r *Registry) SetFallback(e Extractor) {
	r.fallback = e
}

// Resolve picks the extractor for an input without running it.
func (r *Registry) Resolve(in *Input) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(in.Path))
	if e, ok := r.byExt[ext]; ok {
		return e, nil
	}
	if in.DeclaredType != "" {
		if e, ok := r.byCat[in.DeclaredType]; ok {
			return e, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, pulseerrors.UnsupportedType(in.Path, ext)
}

// Extract dispatches the input and returns its unit drafts with
// contiguous ordinals.
func (r *Registry) Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	e, err := r.Resolve(in)
	if err != nil {
		return nil, err
	}
	units, err := e.Extract(ctx, in, cfg)
	if err != nil {
		return nil, err
	}
	return assignOrdinals(units), nil
}

// SupportedType describes one registered extractor for listings.
type SupportedType struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Extensions  []string `json:"extensions"`
	Fallback    bool     `json:"fallback,omitempty"`
}

// SupportedTypes lists registered extractors in a stable order, the
// fallback last.
func (r *Registry) SupportedTypes() []SupportedType {
	out := make([]SupportedType, 0, len(r.ordered)+1)
	for _, e := range r.ordered {
		exts := append([]string(nil), e.Extensions()...)
		sort.Strings(exts)
		out = append(out, SupportedType{
			Name:        e.Name(),
			Description: e.Description(),
			Category:    e.Category(),
			Extensions:  exts,
		})
	}
	if r.fallback != nil {
		out = append(out, SupportedType{
			Name:        r.fallback.Name(),
			Description: r.fallback.Description(),
			Category:    r.fallback.Category(),
			Extensions:  append([]string(nil), r.fallback.Extensions()...),
			Fallback:    true,
		})
	}
	return out
}
