package extract

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageConfig describes how to locate declarations in one grammar.
type languageConfig struct {
	Name       string
	Extensions []string
	// DeclTypes maps top-level AST node types to a symbol kind label.
	DeclTypes map[string]string
	// ImportTypes are AST node types carrying import statements.
	ImportTypes []string
	// CommentPrefix is the single-line comment marker.
	CommentPrefix string
}

// languageRegistry maps extensions to grammar configurations.
type languageRegistry struct {
	mu        sync.RWMutex
	configs   map[string]*languageConfig
	extToLang map[string]string
	grammars  map[string]*sitter.Language
}

func newLanguageRegistry() *languageRegistry {
	r := &languageRegistry{
		configs:   make(map[string]*languageConfig),
		extToLang: make(map[string]string),
		grammars:  make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

func (r *languageRegistry) byExtension(ext string) (*languageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

func (r *languageRegistry) grammar(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[name]
	return g, ok
}

func (r *languageRegistry) supportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *languageRegistry) register(cfg *languageConfig, grammar *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Name] = cfg
	r.grammars[cfg.Name] = grammar
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *languageRegistry) registerGo() {
	r.register(&languageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		DeclTypes: map[string]string{
			"function_declaration": "function",
			"method_declaration":   "method",
			"type_declaration":     "type",
			"const_declaration":    "constant",
			"var_declaration":      "variable",
		},
		ImportTypes:   []string{"import_declaration"},
		CommentPrefix: "//",
	}, golang.GetLanguage())
}

func (r *languageRegistry) registerTypeScript() {
	decls := map[string]string{
		"function_declaration":   "function",
		"method_definition":      "method",
		"class_declaration":      "class",
		"interface_declaration":  "interface",
		"type_alias_declaration": "type",
		"lexical_declaration":    "variable",
		"variable_declaration":   "variable",
	}
	r.register(&languageConfig{
		Name:          "typescript",
		Extensions:    []string{".ts"},
		DeclTypes:     decls,
		ImportTypes:   []string{"import_statement"},
		CommentPrefix: "//",
	}, typescript.GetLanguage())
	r.register(&languageConfig{
		Name:          "tsx",
		Extensions:    []string{".tsx"},
		DeclTypes:     decls,
		ImportTypes:   []string{"import_statement"},
		CommentPrefix: "//",
	}, tsx.GetLanguage())
}

func (r *languageRegistry) registerJavaScript() {
	decls := map[string]string{
		"function_declaration": "function",
		"method_definition":    "method",
		"class_declaration":    "class",
		"lexical_declaration":  "variable",
		"variable_declaration": "variable",
	}
	r.register(&languageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		DeclTypes:     decls,
		ImportTypes:   []string{"import_statement"},
		CommentPrefix: "//",
	}, javascript.GetLanguage())
	r.register(&languageConfig{
		Name:          "jsx",
		Extensions:    []string{".jsx"},
		DeclTypes:     decls,
		ImportTypes:   []string{"import_statement"},
		CommentPrefix: "//",
	}, javascript.GetLanguage())
}

func (r *languageRegistry) registerPython() {
	r.register(&languageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		DeclTypes: map[string]string{
			"function_definition": "function",
			"class_definition":    "class",
		},
		ImportTypes:   []string{"import_statement", "import_from_statement"},
		CommentPrefix: "#",
	}, python.GetLanguage())
}
