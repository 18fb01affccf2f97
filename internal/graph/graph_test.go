package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGraph() *Graph {
	g := New()
	g.Nodes = append(g.Nodes,
		NewDirectoryNode("src", "src", "", 1),
		NewFileNode("src/a.py", "a.py", "python", "dir:src", 10, 1, 1),
		NewFunctionNode("src/a.py", "login", "python", FunctionMetrics{StartLine: 1, EndLine: 3, LinesOfCode: 3, CyclomaticComplexity: 1}, []string{"auth"}, 1),
	)
	g.Edges = append(g.Edges,
		Edge{From: "dir:src", To: "file:src/a.py", Type: EdgeContains, Weight: 1},
		Edge{From: "file:src/a.py", To: "func:src/a.py:login", Type: EdgeContains, Weight: 1},
	)
	return g
}

func TestGraph_Clone(t *testing.T) {
	t.Parallel()

	t.Run("DeepCopy", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		c := g.Clone()
		require.Equal(t, g, c)

		*c.Nodes[1].ExportCount = 99
		c.Nodes[2].Calls[0] = "changed"
		c.Nodes[0].AbstractionLevel = 3
		c.Edges[0].Weight = 7
		c.Nodes = c.Nodes[:1]

		assert.Len(t, g.Nodes, 3)
		assert.Equal(t, 1, *g.Nodes[1].ExportCount)
		assert.Equal(t, "auth", g.Nodes[2].Calls[0])
		assert.Equal(t, 1, g.Nodes[0].AbstractionLevel)
		assert.Equal(t, 1, g.Edges[0].Weight)
	})

	t.Run("EmptyGraphKeepsNonNilSlices", func(t *testing.T) {
		t.Parallel()
		c := (&Graph{}).Clone()

		assert.NotNil(t, c.Nodes)
		assert.NotNil(t, c.Edges)
	})
}

func TestGraph_Validate(t *testing.T) {
	t.Parallel()

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, sampleGraph().Validate())
	})

	t.Run("DuplicateID", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		g.Nodes = append(g.Nodes, g.Nodes[0])

		assert.ErrorIs(t, g.Validate(), ErrDuplicateID)
	})

	t.Run("MissingParent", func(t *testing.T) {
		t.Parallel()
		g := sampleGraph()
		g.Nodes = g.Nodes[1:]

		assert.ErrorIs(t, g.Validate(), ErrMissingParent)
	})
}

func TestGraph_Counts(t *testing.T) {
	t.Parallel()

	g := sampleGraph()

	assert.Equal(t, map[NodeType]int{NodeDirectory: 1, NodeFile: 1, NodeFunction: 1}, g.CountByType())
	assert.Equal(t, map[EdgeType]int{EdgeContains: 2}, g.CountEdgesByType())
}

func TestIndex(t *testing.T) {
	t.Parallel()

	t.Run("Lookups", func(t *testing.T) {
		t.Parallel()
		idx, err := NewIndex(sampleGraph())
		require.NoError(t, err)

		assert.Equal(t, 3, idx.Len())
		assert.True(t, idx.Has("file:src/a.py"))
		assert.False(t, idx.Has("file:missing.py"))
		assert.Nil(t, idx.Node("file:missing.py"))
		assert.Equal(t, "login", idx.Node("func:src/a.py:login").Name)
		assert.Equal(t, []string{"file:src/a.py"}, idx.Children("dir:src"))
	})

	t.Run("Descendants", func(t *testing.T) {
		t.Parallel()
		idx, err := NewIndex(sampleGraph())
		require.NoError(t, err)

		assert.ElementsMatch(t, []string{"file:src/a.py", "func:src/a.py:login"}, idx.Descendants("dir:src"))
		assert.Empty(t, idx.Descendants("func:src/a.py:login"))
	})

	t.Run("ParentCycleTerminates", func(t *testing.T) {
		t.Parallel()
		a, b := "x", "y"
		g := &Graph{Nodes: []Node{{ID: "x", Parent: &b}, {ID: "y", Parent: &a}}}
		idx, err := NewIndex(g)
		require.NoError(t, err)

		assert.Equal(t, []string{"y"}, idx.Descendants("x"))
	})

	t.Run("Duplicate", func(t *testing.T) {
		t.Parallel()
		g := &Graph{Nodes: []Node{{ID: "x"}, {ID: "x"}}}
		_, err := NewIndex(g)

		assert.ErrorIs(t, err, ErrDuplicateID)
	})
}
