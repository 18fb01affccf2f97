package diff

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/rHedBull/prism/internal/graph"
)

// Option configures Compute.
type Option func(*options)

type options struct {
	minLevel    int
	hasMinLevel bool
}

// WithMinLevel drops nodes below level, and edges touching them, from both
// graphs before comparing.
func WithMinLevel(level int) Option {
	return func(o *options) {
		o.minLevel = level
		o.hasMinLevel = true
	}
}

// Compute returns the structural difference from a to b. Neither graph is
// modified. Both graphs must have unique node ids.
//
// Removing or adding a container cascades to everything it contains.
// Removed and added nodes that share a name are reported as moved rather
// than modified. Changes bubble up the parent chain, marking unchanged
// ancestors with children_changed.
func Compute(a, b *graph.Graph, meta Meta, opts ...Option) (*Result, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasMinLevel {
		a = filterLevel(a, o.minLevel)
		b = filterLevel(b, o.minLevel)
	}

	idxA, err := graph.NewIndex(a)
	if err != nil {
		return nil, fmt.Errorf("indexing base graph: %w", err)
	}
	idxB, err := graph.NewIndex(b)
	if err != nil {
		return nil, fmt.Errorf("indexing target graph: %w", err)
	}

	c := &computation{a: idxA, b: idxB}
	c.cascade(a, b)
	moved := c.pairMoves()
	modified := c.modifications(a)
	modified = append(modified, c.bubble(modified)...)
	slices.SortFunc(modified, func(x, y ModifiedNode) int { return cmp.Compare(x.ID, y.ID) })

	if meta == nil {
		meta = Meta{}
	}
	res := &Result{
		Meta:          maps.Clone(meta),
		AddedNodes:    summaries(idxB, c.added),
		RemovedNodes:  summaries(idxA, c.removed),
		MovedNodes:    moved,
		ModifiedNodes: modified,
		AddedEdges:    edgeDifference(b.Edges, a.Edges),
		RemovedEdges:  edgeDifference(a.Edges, b.Edges),
	}
	res.Summary = Summary{
		AddedNodes:    len(res.AddedNodes),
		RemovedNodes:  len(res.RemovedNodes),
		MovedNodes:    len(res.MovedNodes),
		ModifiedNodes: len(res.ModifiedNodes),
		AddedEdges:    len(res.AddedEdges),
		RemovedEdges:  len(res.RemovedEdges),
	}
	return res, nil
}

type idSet map[string]struct{}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// computation holds the intermediate sets of one Compute call.
type computation struct {
	a, b    *graph.Index
	added   idSet
	removed idSet

	// movedIDs holds both the old and the new id of every moved node.
	movedIDs idSet
}

// cascade computes the added and removed sets, pulling in the descendants
// of every raw addition and removal.
func (c *computation) cascade(a, b *graph.Graph) {
	c.added = make(idSet)
	c.removed = make(idSet)
	for i := range a.Nodes {
		id := a.Nodes[i].ID
		if c.b.Has(id) {
			continue
		}
		c.removed[id] = struct{}{}
		for _, d := range c.a.Descendants(id) {
			c.removed[d] = struct{}{}
		}
	}
	for i := range b.Nodes {
		id := b.Nodes[i].ID
		if c.a.Has(id) {
			continue
		}
		c.added[id] = struct{}{}
		for _, d := range c.b.Descendants(id) {
			c.added[d] = struct{}{}
		}
	}
}

// pairMoves matches added nodes, in id order, with the first unmatched
// removed node of the same name, in id order.
func (c *computation) pairMoves() []MovedNode {
	byName := make(map[string][]string)
	for _, id := range c.removed.sorted() {
		name := c.a.Node(id).Name
		byName[name] = append(byName[name], id)
	}

	moved := []MovedNode{}
	c.movedIDs = make(idSet)
	for _, id := range c.added.sorted() {
		to := c.b.Node(id)
		candidates := byName[to.Name]
		if len(candidates) == 0 {
			continue
		}
		from := c.a.Node(candidates[0])
		byName[to.Name] = candidates[1:]

		moved = append(moved, MovedNode{
			ID:               to.ID,
			OldID:            from.ID,
			Name:             to.Name,
			OldFilePath:      from.FilePath,
			NewFilePath:      to.FilePath,
			AbstractionLevel: to.AbstractionLevel,
		})
		delete(c.added, to.ID)
		delete(c.removed, from.ID)
		c.movedIDs[to.ID] = struct{}{}
		c.movedIDs[from.ID] = struct{}{}
	}
	return moved
}

func (c *computation) categorized(id string) bool {
	return c.added.has(id) || c.removed.has(id) || c.movedIDs.has(id)
}

// modifications compares the tracked fields of nodes present in both
// graphs that are not otherwise categorized.
func (c *computation) modifications(a *graph.Graph) []ModifiedNode {
	out := []ModifiedNode{}
	for i := range a.Nodes {
		old := &a.Nodes[i]
		cur := c.b.Node(old.ID)
		if cur == nil || c.categorized(old.ID) {
			continue
		}
		if changes := fieldChanges(old, cur); len(changes) > 0 {
			out = append(out, ModifiedNode{ID: old.ID, Changes: changes})
		}
	}
	return out
}

func fieldChanges(old, cur *graph.Node) map[string]Change {
	changes := make(map[string]Change)
	if old.LinesOfCode != cur.LinesOfCode {
		changes[FieldLinesOfCode] = Change{old.LinesOfCode, cur.LinesOfCode}
	}
	if old.ExportCount != nil && cur.ExportCount != nil && *old.ExportCount != *cur.ExportCount {
		changes[FieldExportCount] = Change{*old.ExportCount, *cur.ExportCount}
	}
	if old.AbstractionLevel != cur.AbstractionLevel {
		changes[FieldAbstractionLevel] = Change{old.AbstractionLevel, cur.AbstractionLevel}
	}
	return changes
}

// bubble walks the parent chain of every added, removed and modified node
// and marks each ancestor present in both graphs and not yet changed.
func (c *computation) bubble(modified []ModifiedNode) []ModifiedNode {
	changed := make(idSet)
	seeds := make(idSet)
	for _, m := range modified {
		changed[m.ID] = struct{}{}
		seeds[m.ID] = struct{}{}
	}
	for id := range c.added {
		seeds[id] = struct{}{}
	}
	for id := range c.removed {
		seeds[id] = struct{}{}
	}

	var out []ModifiedNode
	visited := make(idSet)
	for _, id := range seeds.sorted() {
		for cur := c.parentOf(id); cur != ""; cur = c.parentOf(cur) {
			if visited.has(cur) {
				break
			}
			visited[cur] = struct{}{}
			if !c.a.Has(cur) || !c.b.Has(cur) || c.categorized(cur) || changed.has(cur) {
				continue
			}
			changed[cur] = struct{}{}
			out = append(out, ModifiedNode{
				ID:      cur,
				Changes: map[string]Change{FieldChildrenChanged: {true, true}},
			})
		}
	}
	return out
}

// parentOf prefers the target graph's view of a node.
func (c *computation) parentOf(id string) string {
	if n := c.b.Node(id); n != nil {
		return n.ParentID()
	}
	if n := c.a.Node(id); n != nil {
		return n.ParentID()
	}
	return ""
}

func summaries(idx *graph.Index, ids idSet) []NodeSummary {
	out := make([]NodeSummary, 0, len(ids))
	for _, id := range ids.sorted() {
		out = append(out, summarize(idx.Node(id)))
	}
	return out
}

// edgeDifference returns the edges of x missing from y, compared without
// weight and sorted.
func edgeDifference(x, y []graph.Edge) []EdgeRef {
	inY := make(map[graph.EdgeKey]bool, len(y))
	for _, e := range y {
		inY[e.Key()] = true
	}
	seen := make(map[graph.EdgeKey]bool)
	out := []EdgeRef{}
	for _, e := range x {
		k := e.Key()
		if inY[k] || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, EdgeRef{From: k.From, To: k.To, Type: k.Type})
	}
	slices.SortFunc(out, func(p, q EdgeRef) int {
		return cmp.Or(
			cmp.Compare(p.From, q.From),
			cmp.Compare(p.To, q.To),
			cmp.Compare(p.Type, q.Type),
		)
	})
	return out
}

// filterLevel returns the nodes at or above level and the edges between
// them. Node values are shared with g, which is never modified.
func filterLevel(g *graph.Graph, level int) *graph.Graph {
	out := graph.New()
	keep := make(idSet)
	for i := range g.Nodes {
		if g.Nodes[i].AbstractionLevel >= level {
			out.Nodes = append(out.Nodes, g.Nodes[i])
			keep[g.Nodes[i].ID] = struct{}{}
		}
	}
	for _, e := range g.Edges {
		if keep.has(e.From) && keep.has(e.To) {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}
