// Package tag generates descriptive tags for ingested content. Tagging
// is best-effort and never blocks ingestion: a failed or disabled
// backend yields an empty tag set, and path-derived tags are always
// available as a zero-dependency baseline.
package tag

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
)

// MaxTagsPerField caps each tag set field.
const MaxTagsPerField = 10

// TagSet is the structured output of automatic tagging.
type TagSet struct {
	Topics     []string `json:"topics"`
	Keywords   []string `json:"keywords"`
	Entities   []string `json:"entities"`
	Categories []string `json:"categories"`
}

// Empty reports whether no field carries a tag.
func (t TagSet) Empty() bool {
	return len(t.Topics) == 0 && len(t.Keywords) == 0 &&
		len(t.Entities) == 0 && len(t.Categories) == 0
}

// Flatten merges all fields into one deduplicated sorted list.
func (t TagSet) Flatten() []string {
	seen := make(map[string]bool)
	var out []string
	for _, field := range [][]string{t.Topics, t.Keywords, t.Entities, t.Categories} {
		for _, tag := range field {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Tagger generates tags from content.
type Tagger interface {
	// Generate produces a tag set for the given content. Failure is
	// reported through the error; callers treat it as "no tags".
	Generate(ctx context.Context, content, title string) (TagSet, error)

	// Available reports whether the backend is ready.
	Available(ctx context.Context) bool
}

// Clean lowercases, trims, deduplicates, and caps a tag list.
func Clean(tags []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) > 64 || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTagsPerField {
			break
		}
	}
	return out
}

// CleanSet applies Clean to every field.
func CleanSet(ts TagSet) TagSet {
	return TagSet{
		Topics:     Clean(ts.Topics),
		Keywords:   Clean(ts.Keywords),
		Entities:   Clean(ts.Entities),
		Categories: Clean(ts.Categories),
	}
}

// FromPath derives baseline tags from a file path: the file stem, the
// extension without its dot, and up to five nearest parent directory
// names.
func FromPath(path string) []string {
	var tags []string

	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if stem := strings.TrimSuffix(base, ext); stem != "" && stem != "." {
		tags = append(tags, stem)
	}
	if ext != "" {
		tags = append(tags, strings.TrimPrefix(ext, "."))
	}

	dir := filepath.Dir(path)
	count := 0
	for dir != "." && dir != "/" && dir != "" && count < 5 {
		name := filepath.Base(dir)
		if name != "." && name != "/" {
			tags = append(tags, name)
			count++
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return Clean(tags)
}
