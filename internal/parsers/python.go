package parsers

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/rHedBull/prism/internal/graph"
)

var pythonMetrics = metricKinds{
	decisions: kinds(
		"if_statement", "elif_clause", "for_statement", "while_statement",
		"try_statement", "except_clause", "conditional_expression", "boolean_operator",
	),
	nesting: kinds(
		"if_statement", "for_statement", "while_statement",
		"with_statement", "try_statement", "function_definition",
	),
	params: kinds(
		"identifier", "default_parameter", "typed_parameter",
		"typed_default_parameter", "list_splat_pattern", "dictionary_splat_pattern",
	),
}

// Receivers whose attribute calls resolve to the same object.
var pythonSelfReceivers = map[string]bool{"self": true, "cls": true}

// NewPythonParser creates a new Python parser.
func NewPythonParser() Parser {
	return &treeSitterParser{
		language: LangPython,
		grammar:  python.GetLanguage(),
		ex:       pythonExtractor{},
	}
}

type pythonExtractor struct{}

// declarations extracts every class and function definition, including
// methods and nested functions, plus lambdas bound to a module-level name.
func (ex pythonExtractor) declarations(root *sitter.Node, src []byte) []Decl {
	var decls []Decl
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "class_definition":
			if d, ok := ex.class(n, src); ok {
				decls = append(decls, d)
			}
		case "function_definition":
			name := n.ChildByFieldName("name")
			if name == nil {
				break
			}
			d := span(text(name, src), n)
			pythonMetrics.function(ex, &d, n.ChildByFieldName("body"), n.ChildByFieldName("parameters"), src)
			decls = append(decls, d)
		case "expression_statement":
			if d, ok := ex.lambda(n, src); ok {
				decls = append(decls, d)
			}
		}
		return true
	})
	return decls
}

func (ex pythonExtractor) class(n *sitter.Node, src []byte) (Decl, bool) {
	name := n.ChildByFieldName("name")
	if name == nil {
		return Decl{}, false
	}
	d := span(text(name, src), n)
	d.Kind = graph.NodeClass
	d.CyclomaticComplexity = 1
	if body := n.ChildByFieldName("body"); body != nil {
		d.CyclomaticComplexity = pythonMetrics.cyclomatic(body, src)
		d.MaxNesting = pythonMetrics.maxNesting(body)
	}

	if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
		for i := 0; i < int(p.NamedChildCount()); i++ {
			c := p.NamedChild(i)
			if c == nil || c.Type() != "decorator" {
				continue
			}
			if dec := decoratorName(c, src); dec != "" {
				d.Decorators = append(d.Decorators, dec)
			}
		}
	}

	if supers := n.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			c := supers.NamedChild(i)
			if c == nil {
				continue
			}
			switch c.Type() {
			case "identifier", "attribute":
				d.Bases = append(d.Bases, text(c, src))
			}
		}
	}
	return d, true
}

// lambda matches `name = lambda ...` at module level.
func (ex pythonExtractor) lambda(stmt *sitter.Node, src []byte) (Decl, bool) {
	if p := stmt.Parent(); p == nil || p.Type() != "module" {
		return Decl{}, false
	}
	assign := stmt.NamedChild(0)
	if assign == nil || assign.Type() != "assignment" {
		return Decl{}, false
	}
	left, right := assign.ChildByFieldName("left"), assign.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" || right.Type() != "lambda" {
		return Decl{}, false
	}
	d := span(text(left, src), stmt)
	pythonMetrics.function(ex, &d, right.ChildByFieldName("body"), right.ChildByFieldName("parameters"), src)
	return d, true
}

func decoratorName(dec *sitter.Node, src []byte) string {
	expr := dec.NamedChild(0)
	if expr == nil {
		return ""
	}
	if expr.Type() == "call" {
		return text(expr.ChildByFieldName("function"), src)
	}
	return text(expr, src)
}

// calls records bare calls by name and attribute calls by attribute name,
// skipping calls through self or cls.
func (pythonExtractor) calls(body *sitter.Node, src []byte) []string {
	var calls []string
	walk(body, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Type() {
		case "identifier":
			calls = append(calls, text(fn, src))
		case "attribute":
			obj, attr := fn.ChildByFieldName("object"), fn.ChildByFieldName("attribute")
			if obj != nil && attr != nil && !pythonSelfReceivers[text(obj, src)] {
				calls = append(calls, text(attr, src))
			}
		}
		return true
	})
	return calls
}

func (pythonExtractor) imports(root *sitter.Node, src []byte) []Import {
	var imports []Import
	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_from_statement":
			module := n.ChildByFieldName("module_name")
			if module == nil {
				return false
			}
			imp := Import{Module: text(module, src)}
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c == nil || c.StartByte() == module.StartByte() {
					continue
				}
				switch c.Type() {
				case "dotted_name":
					imp.Names = append(imp.Names, text(c, src))
				case "aliased_import":
					imp.Names = append(imp.Names, boundName(c, src))
				}
			}
			imports = append(imports, imp)
			return false
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				if c == nil {
					continue
				}
				switch c.Type() {
				case "dotted_name":
					imports = append(imports, Import{Module: text(c, src)})
				case "aliased_import":
					imports = append(imports, Import{
						Module: text(c.ChildByFieldName("name"), src),
						Names:  []string{boundName(c, src)},
					})
				}
			}
			return false
		}
		return true
	})
	return imports
}

// boundName returns the alias of an aliased import, or its name.
func boundName(n *sitter.Node, src []byte) string {
	if alias := n.ChildByFieldName("alias"); alias != nil {
		return text(alias, src)
	}
	return text(n.ChildByFieldName("name"), src)
}
