package parsers

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/rHedBull/prism/internal/graph"
)

// kindSet is a set of tree-sitter node types.
type kindSet map[string]struct{}

func kinds(types ...string) kindSet {
	s := make(kindSet, len(types))
	for _, t := range types {
		s[t] = struct{}{}
	}
	return s
}

func (s kindSet) has(t string) bool {
	_, ok := s[t]
	return ok
}

// walk visits root and its descendants in document order using an explicit
// stack. When visit returns false the node's children are skipped.
func walk(root *sitter.Node, visit func(n *sitter.Node) bool) {
	if root == nil {
		return
	}
	stack := []*sitter.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		for i := int(n.ChildCount()) - 1; i >= 0; i-- {
			if c := n.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
}

// metricKinds describes which node types drive the structural metrics of a
// grammar.
type metricKinds struct {
	// decisions are counted once each for cyclomatic complexity.
	decisions kindSet

	// decision, if set, is consulted for nodes not in decisions.
	decision func(n *sitter.Node, src []byte) bool

	// nesting are control or function constructs that deepen nesting.
	nesting kindSet

	// params are the formal parameter node types.
	params kindSet
}

// cyclomatic returns 1 plus the number of decision points in body.
func (m metricKinds) cyclomatic(body *sitter.Node, src []byte) int {
	count := 1
	walk(body, func(n *sitter.Node) bool {
		if m.decisions.has(n.Type()) || (m.decision != nil && m.decision(n, src)) {
			count++
		}
		return true
	})
	return count
}

// maxNesting returns the deepest nesting level below body, which is depth 0.
func (m metricKinds) maxNesting(body *sitter.Node) int {
	if body == nil {
		return 0
	}
	type frame struct {
		n     *sitter.Node
		depth int
	}
	deepest := 0
	stack := []frame{{n: body}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		deepest = max(deepest, f.depth)
		for i := 0; i < int(f.n.ChildCount()); i++ {
			c := f.n.Child(i)
			if c == nil {
				continue
			}
			d := f.depth
			// Keyword tokens share names with constructs ("function").
			if c.IsNamed() && m.nesting.has(c.Type()) {
				d++
			}
			stack = append(stack, frame{n: c, depth: d})
		}
	}
	return deepest
}

// paramCount counts the formal parameters directly below params.
func (m metricKinds) paramCount(params *sitter.Node) int {
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.ChildCount()); i++ {
		if c := params.Child(i); c != nil && m.params.has(c.Type()) {
			count++
		}
	}
	return count
}

// function fills the metrics and calls of a function-like declaration.
func (m metricKinds) function(ex extractor, d *Decl, body, params *sitter.Node, src []byte) {
	d.Kind = graph.NodeFunction
	d.ParamCount = m.paramCount(params)
	if body == nil {
		d.CyclomaticComplexity = 1
		return
	}
	d.CyclomaticComplexity = m.cyclomatic(body, src)
	d.MaxNesting = m.maxNesting(body)
	d.Calls = ex.calls(body, src)
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return n.Content(src)
}

func startLine(n *sitter.Node) int { return int(n.StartPoint().Row) + 1 }

func endLine(n *sitter.Node) int { return int(n.EndPoint().Row) + 1 }

// span creates a declaration covering n.
func span(name string, n *sitter.Node) Decl {
	return Decl{Name: name, StartLine: startLine(n), EndLine: endLine(n)}
}

// unquote strips the quotes of a string literal.
func unquote(s string) string {
	return strings.Trim(s, "'\"`")
}
