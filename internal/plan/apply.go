package plan

import (
	"fmt"
	"slices"

	"github.com/rHedBull/prism/internal/diff"
	"github.com/rHedBull/prism/internal/graph"
)

// Apply applies the plan's operations, in order, to a copy of g and
// returns the difference from g to the result. g is never modified.
//
// Operations that reference unknown node ids are no-ops; an operation
// missing required fields fails with ErrInvalidOperation.
func Apply(g *graph.Graph, p *Plan, opts ...diff.Option) (*diff.Result, error) {
	name := p.Name
	if name == "" {
		name = "unnamed"
	}

	target := g.Clone()
	for i, op := range p.Operations {
		if err := op.validate(); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
		switch op.Op {
		case OpAdd:
			add(target, op, name)
		case OpRemove:
			remove(target, op.ID)
		case OpMove:
			move(target, op.ID, op.ToLayer)
		}
	}

	return diff.Compute(g, target, diff.Meta{"source": diff.SourcePlan, "plan_name": name}, opts...)
}

func indexOf(g *graph.Graph, id string) int {
	return slices.IndexFunc(g.Nodes, func(n graph.Node) bool { return n.ID == id })
}

// add synthesizes a planned node, replacing any node with the same id,
// and links it to each existing dependency.
func add(g *graph.Graph, op Operation, planName string) {
	n := graph.NewPlannedNode(op.Name, planName, LevelForLayer(op.Layer))
	if i := indexOf(g, n.ID); i >= 0 {
		g.Nodes[i] = n
	} else {
		g.Nodes = append(g.Nodes, n)
	}
	for _, dep := range op.DependsOn {
		if indexOf(g, dep) < 0 {
			continue
		}
		g.Edges = append(g.Edges, graph.Edge{From: n.ID, To: dep, Type: graph.EdgeImports, Weight: 1})
	}
}

// remove deletes the node and every edge touching it.
func remove(g *graph.Graph, id string) {
	g.Nodes = slices.DeleteFunc(g.Nodes, func(n graph.Node) bool { return n.ID == id })
	g.Edges = slices.DeleteFunc(g.Edges, func(e graph.Edge) bool { return e.From == id || e.To == id })
}

// move changes the node's abstraction level to that of layer.
func move(g *graph.Graph, id, layer string) {
	if i := indexOf(g, id); i >= 0 {
		g.Nodes[i].AbstractionLevel = LevelForLayer(layer)
	}
}
