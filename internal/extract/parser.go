package extract

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// point is a zero-based row/column position.
type point struct {
	Row    uint32
	Column uint32
}

// node is a language-agnostic AST node copied out of the tree-sitter
// parse result so callers never touch cgo-backed memory after parsing.
type node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint point
	EndPoint   point
	HasError   bool
	Children   []*node
}

// tree is a parsed source file.
type tree struct {
	Root     *node
	Source   []byte
	Language string
}

// parser wraps tree-sitter parsing against the language registry.
type parser struct {
	ts       *sitter.Parser
	registry *languageRegistry
}

func newParser(registry *languageRegistry) *parser {
	return &parser{
		ts:       sitter.NewParser(),
		registry: registry,
	}
}

func (p *parser) parse(ctx context.Context, source []byte, language string) (*tree, error) {
	grammar, ok := p.registry.grammar(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	p.ts.SetLanguage(grammar)
	tsTree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", language, err)
	}
	if tsTree == nil {
		return nil, fmt.Errorf("parse %s: nil tree", language)
	}

	return &tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: language,
	}, nil
}

func (p *parser) close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

func convertNode(tsNode *sitter.Node) *node {
	if tsNode == nil {
		return nil
	}
	n := &node{
		Type:       tsNode.Type(),
		StartByte:  tsNode.StartByte(),
		EndByte:    tsNode.EndByte(),
		StartPoint: point{Row: tsNode.StartPoint().Row, Column: tsNode.StartPoint().Column},
		EndPoint:   point{Row: tsNode.EndPoint().Row, Column: tsNode.EndPoint().Column},
		HasError:   tsNode.HasError(),
		Children:   make([]*node, 0, int(tsNode.ChildCount())),
	}
	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			n.Children = append(n.Children, convertNode(child))
		}
	}
	return n
}

// content returns the source slice covered by the node.
func (n *node) content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// findIdentifier locates a declaration's name: a direct identifier child
// first, then one level deeper for grammars that nest the declarator.
func (n *node) findIdentifier(source []byte) string {
	for _, child := range n.Children {
		if isIdentifierType(child.Type) {
			return child.content(source)
		}
	}
	for _, child := range n.Children {
		for _, grand := range child.Children {
			if isIdentifierType(grand.Type) {
				return grand.content(source)
			}
		}
	}
	return ""
}

func isIdentifierType(t string) bool {
	switch t {
	case "identifier", "type_identifier", "field_identifier", "property_identifier":
		return true
	}
	return false
}
