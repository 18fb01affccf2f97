// Package parsers provides tree-sitter based declaration and import
// extraction for Python and the TypeScript/JavaScript family.
package parsers

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rHedBull/prism/internal/graph"
)

// ErrUnsupportedLanguage is returned by ForLanguage for unknown language ids.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Language identifiers as assigned by file discovery.
const (
	LangPython          = "python"
	LangTypeScript      = "typescript"
	LangTypeScriptReact = "typescriptreact"
	LangJavaScript      = "javascript"
	LangJavaScriptReact = "javascriptreact"
)

// Decl is a function or class-like declaration extracted from a file.
type Decl struct {
	// Kind is one of function, class, interface or type_alias.
	Kind graph.NodeType

	// Name is the declared name.
	Name string

	// StartLine is the first line of the declaration (1-based).
	StartLine int

	// EndLine is the last line of the declaration (1-based).
	EndLine int

	// CyclomaticComplexity is 1 plus the decision points in the body.
	CyclomaticComplexity int

	// ParamCount is the number of formal parameters.
	ParamCount int

	// MaxNesting is the deepest nesting of control or function constructs.
	MaxNesting int

	// Calls lists call-target names in source order (functions only).
	Calls []string

	// Decorators holds decorator names (classes only).
	Decorators []string

	// Bases holds base class or heritage names (classes only).
	Bases []string
}

// LinesOfCode returns the line span of the declaration.
func (d Decl) LinesOfCode() int {
	return d.EndLine - d.StartLine + 1
}

// Metrics converts the declaration's metrics to the graph representation.
func (d Decl) Metrics() graph.FunctionMetrics {
	return graph.FunctionMetrics{
		StartLine:            d.StartLine,
		EndLine:              d.EndLine,
		LinesOfCode:          d.LinesOfCode(),
		CyclomaticComplexity: d.CyclomaticComplexity,
		ParamCount:           d.ParamCount,
		MaxNesting:           d.MaxNesting,
	}
}

// Import represents one import statement.
type Import struct {
	// Module is the raw module specifier ("./x", "a.b.c", "react").
	Module string

	// Names are the locally bound identifiers, empty for a bare import.
	Names []string
}

// ParseResult contains everything extracted from one source file.
type ParseResult struct {
	FilePath    string
	Language    string
	LinesOfCode int
	Decls       []Decl
	Imports     []Import
}

// Parser defines the interface for language-specific parsers.
type Parser interface {
	// Parse parses source code and extracts declarations and imports.
	Parse(ctx context.Context, filePath string, content []byte) (*ParseResult, error)

	// Language returns the language this parser handles.
	Language() string
}

// extractor is implemented once per language family.
type extractor interface {
	declarations(root *sitter.Node, src []byte) []Decl
	imports(root *sitter.Node, src []byte) []Import
	calls(body *sitter.Node, src []byte) []string
}

// treeSitterParser drives a grammar and an extractor. A sitter.Parser is
// not safe for concurrent use, so one is created per Parse call.
type treeSitterParser struct {
	language string
	grammar  *sitter.Language
	ex       extractor
}

// Language returns the language id.
func (p *treeSitterParser) Language() string { return p.language }

// Parse implements Parser.
func (p *treeSitterParser) Parse(ctx context.Context, filePath string, content []byte) (*ParseResult, error) {
	ts := sitter.NewParser()
	ts.SetLanguage(p.grammar)

	tree, err := ts.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filePath, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parsing %s: no syntax tree", filePath)
	}
	defer tree.Close()

	root := tree.RootNode()
	return &ParseResult{
		FilePath:    filePath,
		Language:    p.language,
		LinesOfCode: bytes.Count(content, []byte{'\n'}) + 1,
		Decls:       p.ex.declarations(root, content),
		Imports:     p.ex.imports(root, content),
	}, nil
}

// ForLanguage returns the parser for a discovery language id.
func ForLanguage(language string) (Parser, error) {
	switch language {
	case LangPython:
		return NewPythonParser(), nil
	case LangTypeScript, LangTypeScriptReact, LangJavaScript, LangJavaScriptReact:
		return NewTypeScriptParser(language), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
}
