package graph

import "fmt"

// Index provides O(1) lookups over a Graph snapshot.
//
// Children adjacency is derived from each node's Parent field, not from
// contains edges, and keeps the graph's node order. The index holds
// pointers into the graph's node slice, so the graph must not be mutated
// while the index is in use.
type Index struct {
	byID     map[string]*Node
	children map[string][]string
}

// NewIndex indexes g. It fails with ErrDuplicateID if two nodes share an id.
func NewIndex(g *Graph) (*Index, error) {
	idx := &Index{
		byID:     make(map[string]*Node, len(g.Nodes)),
		children: make(map[string][]string),
	}
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if _, dup := idx.byID[n.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, n.ID)
		}
		idx.byID[n.ID] = n
		if p := n.ParentID(); p != "" {
			idx.children[p] = append(idx.children[p], n.ID)
		}
	}
	return idx, nil
}

// Node returns the node with the given id, or nil.
func (idx *Index) Node(id string) *Node {
	return idx.byID[id]
}

// Has reports whether a node with the given id exists.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	return len(idx.byID)
}

// IDs returns the set of indexed ids.
func (idx *Index) IDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(idx.byID))
	for id := range idx.byID {
		ids[id] = struct{}{}
	}
	return ids
}

// Children returns the ids of the direct children of id.
func (idx *Index) Children(id string) []string {
	return idx.children[id]
}

// Descendants returns every transitive descendant of id, excluding id itself.
// A parent cycle in malformed input terminates instead of looping.
func (idx *Index) Descendants(id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	stack := append([]string(nil), idx.children[id]...)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		stack = append(stack, idx.children[cur]...)
	}
	return out
}
