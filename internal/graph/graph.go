package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var (
	// ErrDuplicateID is returned when two nodes in one graph share an id.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrMissingParent is returned when a node's parent is not in the graph.
	ErrMissingParent = errors.New("parent node not found")
)

// Graph is an immutable {nodes, edges} snapshot of a source tree.
//
// Node and edge order is significant: builders emit them in a reproducible
// order and every serializer preserves it.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// New returns an empty graph with non-nil slices so it serializes as [].
func New() *Graph {
	return &Graph{Nodes: []Node{}, Edges: []Edge{}}
}

// Clone returns a deep copy of the graph. Mutating the copy, including its
// pointer and slice fields, never affects the receiver.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		Nodes: make([]Node, len(g.Nodes)),
		Edges: slices.Clone(g.Edges),
	}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	for i := range g.Nodes {
		out.Nodes[i] = g.Nodes[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	c := n
	c.Language = clonePtr(n.Language)
	c.Parent = clonePtr(n.Parent)
	c.ExportCount = clonePtr(n.ExportCount)
	c.StartLine = clonePtr(n.StartLine)
	c.EndLine = clonePtr(n.EndLine)
	c.CyclomaticComplexity = clonePtr(n.CyclomaticComplexity)
	c.ParamCount = clonePtr(n.ParamCount)
	c.MaxNesting = clonePtr(n.MaxNesting)
	c.Calls = slices.Clone(n.Calls)
	c.Decorators = slices.Clone(n.Decorators)
	c.Bases = slices.Clone(n.Bases)
	c.Meta = maps.Clone(n.Meta)
	return c
}

// Validate checks that node ids are unique and that every parent exists.
func (g *Graph) Validate() error {
	idx, err := NewIndex(g)
	if err != nil {
		return err
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if p := n.ParentID(); p != "" && idx.Node(p) == nil {
			return fmt.Errorf("%w: %s (parent of %s)", ErrMissingParent, p, n.ID)
		}
	}
	return nil
}

// CountByType returns the number of nodes per node type.
func (g *Graph) CountByType() map[NodeType]int {
	counts := make(map[NodeType]int)
	for i := range g.Nodes {
		counts[g.Nodes[i].Type]++
	}
	return counts
}

// CountEdgesByType returns the number of edges per edge type.
func (g *Graph) CountEdgesByType() map[EdgeType]int {
	counts := make(map[EdgeType]int)
	for _, e := range g.Edges {
		counts[e.Type]++
	}
	return counts
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
