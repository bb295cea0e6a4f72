package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// CodeExtractor produces declaration-aligned chunks from source files
// using tree-sitter grammars. Output is one overview unit naming the
// language, imports, and declarations, then one function-block unit per
// top-level declaration carrying its symbol name and kind, line range,
// the file's import list, and the comment spans inside the window.
// Declarations longer than MaxLinesPerChunk are
// hard-split at line boundaries without overlap. Files that fail to parse
// fall back to plain line windows.
type CodeExtractor struct {
	registry *languageRegistry
}

// NewCodeExtractor returns the source code extractor with the built-in
// grammar set (Go, TypeScript, TSX, JavaScript, JSX, Python).
func NewCodeExtractor() *CodeExtractor {
	return &CodeExtractor{registry: newLanguageRegistry()}
}

func (c *CodeExtractor) Name() string     { return "code" }
func (c *CodeExtractor) Category() string { return CategoryCode }

func (c *CodeExtractor) Description() string {
	return "source code chunked along function and type declarations"
}

func (c *CodeExtractor) Extensions() []string {
	return c.registry.supportedExtensions()
}

// decl is one located top-level declaration.
type decl struct {
	node *node
	name string
	kind string
}

func (c *CodeExtractor) Extract(ctx context.Context, in *Input, cfg Config) ([]*Unit, error) {
	if IsBinary(in.Data) {
		return nil, nil
	}
	lang, ok := c.registry.byExtension(filepath.Ext(in.Path))
	if !ok {
		return lineWindows(string(in.Data), cfg.MaxLinesPerChunk), nil
	}

	p := newParser(c.registry)
	defer p.close()

	t, err := p.parse(ctx, in.Data, lang.Name)
	if err != nil {
		return lineWindows(string(in.Data), cfg.MaxLinesPerChunk), nil
	}

	imports := collectImports(t, lang)
	decls := collectDecls(t, lang)

	units := []*Unit{c.overviewUnit(in.Path, lang, imports, decls, t)}
	for _, d := range decls {
		units = append(units, declUnits(d, t, lang, imports, cfg)...)
	}
	if len(units) == 1 && strings.TrimSpace(string(in.Data)) != "" {
		// No declarations found (scripts, config-like sources). Keep
		// the content searchable through plain windows.
		units = append(units, lineWindows(string(in.Data), cfg.MaxLinesPerChunk)...)
	}
	return units, nil
}

func (c *CodeExtractor) overviewUnit(path string, lang *languageConfig, imports []string, decls []decl, t *tree) *Unit {
	var b strings.Builder
	fmt.Fprintf(&b, "Source file: %s\n", filepath.Base(path))
	fmt.Fprintf(&b, "Language: %s\n", lang.Name)
	if len(imports) > 0 {
		fmt.Fprintf(&b, "Imports:\n")
		for _, imp := range imports {
			fmt.Fprintf(&b, "  %s\n", imp)
		}
	}
	if len(decls) > 0 {
		fmt.Fprintf(&b, "Declarations (%d):\n", len(decls))
		for _, d := range decls {
			fmt.Fprintf(&b, "  %s %s (lines %d-%d)\n",
				d.kind, d.name, d.node.StartPoint.Row+1, d.node.EndPoint.Row+1)
		}
	}

	u := &Unit{
		Kind: KindOverview,
		Text: b.String(),
		Attrs: attrs(
			AttrLanguage, lang.Name,
		),
	}
	if len(imports) > 0 {
		u.Attrs[AttrImports] = strings.Join(imports, "; ")
	}
	return u
}

// collectImports renders the file's import statements one per line.
func collectImports(t *tree, lang *languageConfig) []string {
	importTypes := make(map[string]bool, len(lang.ImportTypes))
	for _, it := range lang.ImportTypes {
		importTypes[it] = true
	}
	var imports []string
	for _, child := range t.Root.Children {
		if importTypes[child.Type] {
			imports = append(imports, strings.TrimSpace(child.content(t.Source)))
		}
	}
	return imports
}

// collectDecls finds top-level declarations in source order. Nested
// declarations stay inside their parent's chunk.
func collectDecls(t *tree, lang *languageConfig) []decl {
	var decls []decl
	for _, child := range t.Root.Children {
		kind, ok := lang.DeclTypes[child.Type]
		if !ok {
			continue
		}
		name := child.findIdentifier(t.Source)
		if name == "" {
			name = fmt.Sprintf("%s_L%d", child.Type, child.StartPoint.Row+1)
		}
		decls = append(decls, decl{node: child, name: name, kind: kind})
	}
	return decls
}

// declUnits emits the unit(s) for one declaration, including any leading
// comment block, splitting at MaxLinesPerChunk line boundaries.
func declUnits(d decl, t *tree, lang *languageConfig, imports []string, cfg Config) []*Unit {
	start := leadingCommentStart(d.node, t.Source, lang.CommentPrefix)
	body := string(t.Source[start:d.node.EndByte])
	startLine := int(d.node.StartPoint.Row) + 1 - strings.Count(string(t.Source[start:d.node.StartByte]), "\n")

	maxLines := cfg.MaxLinesPerChunk
	if maxLines <= 0 {
		maxLines = DefaultConfig().MaxLinesPerChunk
	}

	lines := strings.Split(body, "\n")
	if len(lines) <= maxLines {
		return []*Unit{declUnit(d, lang, imports, body, startLine, startLine+len(lines)-1, 0, 1)}
	}

	var units []*Unit
	total := (len(lines) + maxLines - 1) / maxLines
	for i, lo := 0, 0; lo < len(lines); i, lo = i+1, lo+maxLines {
		hi := lo + maxLines
		if hi > len(lines) {
			hi = len(lines)
		}
		part := strings.Join(lines[lo:hi], "\n")
		units = append(units, declUnit(d, lang, imports, part, startLine+lo, startLine+hi-1, i, total))
	}
	return units
}

func declUnit(d decl, lang *languageConfig, imports []string, body string, lineStart, lineEnd, part, total int) *Unit {
	u := &Unit{
		Kind: KindFunctionBlock,
		Text: body,
		Attrs: attrs(
			AttrLanguage, lang.Name,
			AttrSymbolName, d.name,
			AttrSymbolKind, d.kind,
			AttrLineStart, strconv.Itoa(lineStart),
			AttrLineEnd, strconv.Itoa(lineEnd),
		),
	}
	if len(imports) > 0 {
		u.Attrs[AttrImports] = strings.Join(imports, "; ")
	}
	if spans := commentSpans(strings.Split(body, "\n"), lineStart, lang.CommentPrefix); spans != "" {
		u.Attrs[AttrCommentSpans] = spans
	}
	if total > 1 {
		u.Attrs[AttrPartIndex] = fmt.Sprintf("%d/%d", part+1, total)
	}
	return u
}

// commentSpans lists the comment-line ranges inside a chunk window as
// absolute line numbers, single lines as "n" and runs as "lo-hi".
func commentSpans(lines []string, firstLine int, prefix string) string {
	var spans []string
	open := -1
	flush := func(end int) {
		if open < 0 {
			return
		}
		if open == end {
			spans = append(spans, strconv.Itoa(open))
		} else {
			spans = append(spans, fmt.Sprintf("%d-%d", open, end))
		}
		open = -1
	}
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			if open < 0 {
				open = firstLine + i
			}
			continue
		}
		flush(firstLine + i - 1)
	}
	flush(firstLine + len(lines) - 1)
	return strings.Join(spans, ",")
}

// leadingCommentStart walks backwards over contiguous single-line
// comments immediately above the node and returns the byte offset where
// the comment block (or the node itself) begins.
func leadingCommentStart(n *node, source []byte, prefix string) uint32 {
	lineStart := int(n.StartByte)
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}

	start := lineStart
	pos := lineStart - 1
	for pos > 0 {
		prevEnd := pos
		pos--
		for pos > 0 && source[pos] != '\n' {
			pos--
		}
		prevStart := pos
		if pos > 0 {
			prevStart++
		}
		line := strings.TrimSpace(string(source[prevStart:prevEnd]))
		if !strings.HasPrefix(line, prefix) {
			break
		}
		start = prevStart
	}
	return uint32(start)
}
