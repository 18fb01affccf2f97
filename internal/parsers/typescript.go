package parsers

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/rHedBull/prism/internal/graph"
)

var tsMetrics = metricKinds{
	decisions: kinds(
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_case", "catch_clause", "ternary_expression",
	),
	decision: func(n *sitter.Node, src []byte) bool {
		if n.Type() != "binary_expression" {
			return false
		}
		switch text(n.ChildByFieldName("operator"), src) {
		case "&&", "||":
			return true
		}
		return false
	},
	nesting: kinds(
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_statement", "try_statement",
		"arrow_function", "function_expression", "function", "function_declaration",
	),
	params: kinds(
		"required_parameter", "optional_parameter", "identifier",
		"assignment_pattern", "rest_pattern", "object_pattern", "array_pattern",
	),
}

// Function-like nodes whose bodies are never scanned for declarations.
var tsFunctionKinds = kinds(
	"function_declaration", "generator_function_declaration", "function_expression",
	"function", "generator_function", "arrow_function", "method_definition",
)

// Declarator values that make a variable a function declaration.
var tsFunctionValues = kinds("arrow_function", "function_expression", "function", "generator_function")

// NewTypeScriptParser creates a parser for one of the TypeScript/JavaScript
// language ids. JSX is handled by the JavaScript grammar.
func NewTypeScriptParser(language string) Parser {
	var grammar *sitter.Language
	switch language {
	case LangTypeScriptReact:
		grammar = tsx.GetLanguage()
	case LangJavaScript, LangJavaScriptReact:
		grammar = javascript.GetLanguage()
	default:
		language = LangTypeScript
		grammar = typescript.GetLanguage()
	}
	return &treeSitterParser{language: language, grammar: grammar, ex: tsExtractor{}}
}

type tsExtractor struct{}

// declarations extracts functions, function-valued variables, classes,
// interfaces and type aliases outside of function bodies. Export wrappers
// are transparent.
func (ex tsExtractor) declarations(root *sitter.Node, src []byte) []Decl {
	var decls []Decl
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "function_declaration", "generator_function_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				d := span(text(name, src), n)
				tsMetrics.function(ex, &d, n.ChildByFieldName("body"), n.ChildByFieldName("parameters"), src)
				decls = append(decls, d)
			}
			return false
		case "lexical_declaration", "variable_declaration":
			decls = append(decls, ex.variables(n, src)...)
			return true
		case "class_declaration", "abstract_class_declaration":
			if d, ok := ex.class(n, src); ok {
				decls = append(decls, d)
			}
			return false
		case "interface_declaration", "type_alias_declaration":
			if name := n.ChildByFieldName("name"); name != nil {
				d := span(text(name, src), n)
				d.Kind = graph.NodeInterface
				if n.Type() == "type_alias_declaration" {
					d.Kind = graph.NodeTypeAlias
				}
				decls = append(decls, d)
			}
			return false
		}
		return !tsFunctionKinds.has(n.Type())
	})
	return decls
}

// variables extracts `const name = () => ...` style declarations. The span
// covers the whole declaration statement.
func (ex tsExtractor) variables(decl *sitter.Node, src []byte) []Decl {
	var out []Decl
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		v := decl.NamedChild(i)
		if v == nil || v.Type() != "variable_declarator" {
			continue
		}
		name, value := v.ChildByFieldName("name"), v.ChildByFieldName("value")
		if name == nil || value == nil || name.Type() != "identifier" || !tsFunctionValues.has(value.Type()) {
			continue
		}
		d := span(text(name, src), decl)
		params := value.ChildByFieldName("parameters")
		if params == nil {
			params = value.ChildByFieldName("parameter")
		}
		tsMetrics.function(ex, &d, value.ChildByFieldName("body"), params, src)
		if params != nil && params.Type() == "identifier" {
			d.ParamCount = 1
		}
		out = append(out, d)
	}
	return out
}

func (ex tsExtractor) class(n *sitter.Node, src []byte) (Decl, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Decl{}, false
	}
	d := span(text(name, src), n)
	d.Kind = graph.NodeClass
	d.CyclomaticComplexity = 1
	if body := n.ChildByFieldName("body"); body != nil {
		d.CyclomaticComplexity = tsMetrics.cyclomatic(body, src)
		d.MaxNesting = tsMetrics.maxNesting(body)
	}

	holders := []*sitter.Node{n}
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		holders = append(holders, p)
	}
	for _, h := range holders {
		for i := 0; i < int(h.NamedChildCount()); i++ {
			c := h.NamedChild(i)
			if c != nil && c.Type() == "decorator" {
				d.Decorators = append(d.Decorators, tsDecoratorName(c, src))
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() != "class_heritage" {
			continue
		}
		walk(c, func(h *sitter.Node) bool {
			switch h.Type() {
			case "identifier", "type_identifier", "member_expression", "nested_type_identifier":
				d.Bases = append(d.Bases, text(h, src))
				return false
			case "type_arguments", "arguments":
				return false
			}
			return true
		})
	}
	return d, true
}

func tsDecoratorName(dec *sitter.Node, src []byte) string {
	expr := dec.NamedChild(0)
	if expr != nil && expr.Type() == "call_expression" {
		return text(expr.ChildByFieldName("function"), src)
	}
	return text(expr, src)
}

// calls records bare calls by name and member calls by property name,
// skipping calls through this.
func (tsExtractor) calls(body *sitter.Node, src []byte) []string {
	var calls []string
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Type() {
		case "identifier":
			calls = append(calls, text(fn, src))
		case "member_expression":
			obj, prop := fn.ChildByFieldName("object"), fn.ChildByFieldName("property")
			if obj != nil && prop != nil && obj.Type() != "this" {
				calls = append(calls, text(prop, src))
			}
		}
		return true
	})
	return calls
}

// imports extracts ES imports, re-exports with a source and CommonJS
// require calls.
func (tsExtractor) imports(root *sitter.Node, src []byte) []Import {
	var imports []Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			source := n.ChildByFieldName("source")
			if source == nil {
				return false
			}
			imp := Import{Module: unquote(text(source, src))}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if c := n.NamedChild(i); c != nil && c.Type() == "import_clause" {
					imp.Names = append(imp.Names, importClauseNames(c, src)...)
				}
			}
			imports = append(imports, imp)
			return false
		case "export_statement":
			if source := n.ChildByFieldName("source"); source != nil {
				imports = append(imports, Import{Module: unquote(text(source, src))})
				return false
			}
		case "variable_declarator":
			if module, ok := requireCall(n.ChildByFieldName("value"), src); ok {
				imports = append(imports, Import{Module: module, Names: patternNames(n.ChildByFieldName("name"), src)})
				return false
			}
		case "call_expression":
			if module, ok := requireCall(n, src); ok {
				imports = append(imports, Import{Module: module})
				return false
			}
		}
		return true
	})
	return imports
}

func importClauseNames(clause *sitter.Node, src []byte) []string {
	var names []string
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "identifier":
			names = append(names, text(c, src))
		case "namespace_import":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id != nil && id.Type() == "identifier" {
					names = append(names, text(id, src))
				}
			}
		case "named_imports":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				spec := c.NamedChild(j)
				if spec == nil || spec.Type() != "import_specifier" {
					continue
				}
				if alias := spec.ChildByFieldName("alias"); alias != nil {
					names = append(names, text(alias, src))
				} else {
					names = append(names, text(spec.ChildByFieldName("name"), src))
				}
			}
		}
	}
	return names
}

// requireCall matches require('module') and returns the module specifier.
func requireCall(n *sitter.Node, src []byte) (string, bool) {
	if n == nil || n.Type() != "call_expression" {
		return "", false
	}
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" || text(fn, src) != "require" {
		return "", false
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg == nil || arg.Type() != "string" {
		return "", false
	}
	return unquote(text(arg, src)), true
}

// patternNames returns the identifiers bound by a declarator name.
func patternNames(pattern *sitter.Node, src []byte) []string {
	if pattern == nil {
		return nil
	}
	if pattern.Type() == "identifier" {
		return []string{text(pattern, src)}
	}
	var names []string
	walk(pattern, func(n *sitter.Node) bool {
		switch n.Type() {
		case "shorthand_property_identifier_pattern":
			names = append(names, text(n, src))
		case "pair_pattern":
			if v := n.ChildByFieldName("value"); v != nil && v.Type() == "identifier" {
				names = append(names, text(v, src))
			}
			return false
		}
		return true
	})
	return names
}
