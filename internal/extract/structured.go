package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	pulseerrors "github.com/UncleTupelo/pulse/internal/errors"
)

// StructuredExtractor chunks JSON, YAML, and JSONL files into an overview
// unit followed by path-indexed node units. Map keys are visited in sorted
// order so identical input always yields identical units.
type StructuredExtractor struct{}

// NewStructuredExtractor returns the tree-shaped data extractor.
func NewStructuredExtractor() *StructuredExtractor { return &StructuredExtractor{} }

func (s *StructuredExtractor) Name() string     { return "structured-data" }
func (s *StructuredExtractor) Category() string { return CategoryStructured }

func (s *StructuredExtractor) Description() string {
	return "JSON/YAML/JSONL trees chunked by path with array batching"
}

func (s *StructuredExtractor) Extensions() []string {
	return []string{".json", ".yaml", ".yml", ".jsonl", ".ndjson"}
}

func (s *StructuredExtractor) Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	ext := strings.ToLower(filepath.Ext(in.Path))

	var root any
	var err error
	switch ext {
	case ".jsonl", ".ndjson":
		root, err = parseJSONLines(in.Data)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(in.Data, &root)
		root = normalizeYAML(root)
	default:
		dec := json.NewDecoder(bytes.NewReader(in.Data))
		dec.UseNumber()
		err = dec.Decode(&root)
	}
	if err != nil {
		return nil, pulseerrors.Extraction(in.Path, err)
	}

	w := &treeWalker{cfg: cfg}
	w.units = append(w.units, &Unit{
		Kind: KindOverview,
		Text: s.overviewText(in.Path, root),
		Attrs: attrs(
			AttrPath, "$",
			AttrValueType, valueType(root),
			AttrSchema, schemaSketch(root, 0),
		),
	})
	if err := w.walk(ctx, "$", root, 0); err != nil {
		return nil, err
	}
	return w.units, nil
}

func (s *StructuredExtractor) overviewText(path string, root any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Structured data file: %s\n", filepath.Base(path))
	fmt.Fprintf(&b, "Root type: %s\n", valueType(root))
	switch v := root.(type) {
	case map[string]any:
		keys := sortedKeys(v)
		fmt.Fprintf(&b, "Top-level keys (%d): %s\n", len(keys), strings.Join(keys, ", "))
	case []any:
		fmt.Fprintf(&b, "Top-level items: %d\n", len(v))
	}
	fmt.Fprintf(&b, "Schema: %s\n", schemaSketch(root, 0))
	return b.String()
}

type treeWalker struct {
	cfg   Config
	units []*Unit
}

// walk emits one path-node unit per composite node, descending until
// MaxDepth. Scalars are rendered inline by their parent and not visited.
func (w *treeWalker) walk(ctx context.Context, path string, node any, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth >= w.cfg.MaxDepth {
		return nil
	}

	switch v := node.(type) {
	case map[string]any:
		if depth > 0 {
			w.emit(path, v)
		}
		for _, k := range sortedKeys(v) {
			child := v[k]
			if isComposite(child) {
				if err := w.walk(ctx, path+"."+k, child, depth+1); err != nil {
					return err
				}
			}
		}
	case []any:
		if len(v) > w.cfg.MaxArrayItemsPerChunk {
			return w.walkArrayBatches(ctx, path, v, depth)
		}
		if depth > 0 {
			w.emit(path, v)
		}
		for i, item := range v {
			if isComposite(item) {
				if err := w.walk(ctx, fmt.Sprintf("%s[%d]", path, i), item, depth+1); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// walkArrayBatches splits long arrays into half-open index ranges and
// emits one unit per batch instead of one per element.
func (w *treeWalker) walkArrayBatches(ctx context.Context, path string, items []any, depth int) error {
	size := w.cfg.MaxArrayItemsPerChunk
	for lo := 0; lo < len(items); lo += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := lo + size
		if hi > len(items) {
			hi = len(items)
		}
		u := &Unit{
			Kind: KindPathNode,
			Text: renderNode(items[lo:hi]),
			Attrs: attrs(
				AttrPath, fmt.Sprintf("%s[%d:%d]", path, lo, hi),
				AttrValueType, "array",
				AttrIndexStart, fmt.Sprintf("%d", lo),
				AttrIndexEnd, fmt.Sprintf("%d", hi),
			),
		}
		w.units = append(w.units, u)
	}
	return nil
}

func (w *treeWalker) emit(path string, node any) {
	w.units = append(w.units, &Unit{
		Kind: KindPathNode,
		Text: renderNode(node),
		Attrs: attrs(
			AttrPath, path,
			AttrValueType, valueType(node),
		),
	})
}

const maxRenderBytes = 4096

// renderNode marshals a node to indented JSON. encoding/json sorts map
// keys, which keeps renders stable. Oversized renders are truncated at a
// line boundary with a marker.
func renderNode(node any) string {
	b, err := json.MarshalIndent(node, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", node)
	}
	if len(b) <= maxRenderBytes {
		return string(b)
	}
	cut := bytes.LastIndexByte(b[:maxRenderBytes], '\n')
	if cut <= 0 {
		cut = maxRenderBytes
	}
	return string(b[:cut]) + "\n... (truncated)"
}

// schemaSketch renders a shallow shape description, two levels deep.
func schemaSketch(node any, depth int) string {
	switch v := node.(type) {
	case map[string]any:
		if depth >= 2 {
			return "object"
		}
		keys := sortedKeys(v)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, schemaSketch(v[k], depth+1)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		if len(v) == 0 {
			return "array[0]"
		}
		if depth >= 2 {
			return fmt.Sprintf("array[%d]", len(v))
		}
		return fmt.Sprintf("array[%d] of %s", len(v), schemaSketch(v[0], depth+1))
	default:
		return valueType(node)
	}
}

func valueType(node any) string {
	switch node.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return "number"
	}
}

func isComposite(node any) bool {
	switch node.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseJSONLines reads one JSON value per line into a top-level array.
func parseJSONLines(data []byte) (any, error) {
	var items []any
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// normalizeYAML converts yaml.v3's map[string]any trees recursively so the
// walker sees one node shape regardless of source format. yaml.v3 already
// decodes mappings as map[string]any; this flattens nested any-keyed maps
// that appear under merge keys.
func normalizeYAML(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i := range v {
			v[i] = normalizeYAML(v[i])
		}
		return v
	default:
		return v
	}
}
