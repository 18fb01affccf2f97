package export

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rHedBull/prism/internal/graph"
)

type statement struct {
	cypher string
	params map[string]any
}

// recorder is a Runner that records statements and optionally fails.
type recorder struct {
	statements []statement
	failOn     int
}

func (r *recorder) Run(_ context.Context, cypher string, params map[string]any) error {
	r.statements = append(r.statements, statement{cypher, params})
	if r.failOn > 0 && len(r.statements) == r.failOn {
		return errors.New("boom")
	}
	return nil
}

func (r *recorder) batch(i int) []map[string]any {
	return r.statements[i].params["batch"].([]map[string]any)
}

func exportGraph() *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			graph.NewDirectoryNode("api", "api", "", 2),
			graph.NewFileNode("api/routes.py", "routes.py", "python", "dir:api", 40, 2, 2),
			graph.NewFunctionNode("api/routes.py", "index", "python",
				graph.FunctionMetrics{StartLine: 3, EndLine: 9, LinesOfCode: 7, CyclomaticComplexity: 2, ParamCount: 1},
				[]string{"render"}, 2),
			graph.NewFunctionNode("api/routes.py", "render", "python",
				graph.FunctionMetrics{StartLine: 11, EndLine: 12, LinesOfCode: 2, CyclomaticComplexity: 1}, nil, 2),
			graph.NewFileNode("main.py", "main.py", "python", "", 5, 0, 3),
		},
		Edges: []graph.Edge{
			{From: "dir:api", To: "file:api/routes.py", Type: graph.EdgeContains, Weight: 1},
			{From: "file:api/routes.py", To: "func:api/routes.py:index", Type: graph.EdgeContains, Weight: 1},
			{From: "file:api/routes.py", To: "func:api/routes.py:render", Type: graph.EdgeContains, Weight: 1},
			{From: "file:main.py", To: "file:api/routes.py", Type: graph.EdgeImports, Weight: 2},
			{From: "file:main.py", To: "file:api/routes.py", Type: graph.EdgeImports, Weight: 1},
			{From: "func:api/routes.py:index", To: "func:api/routes.py:render", Type: graph.EdgeCalls, Weight: 1},
		},
	}
}

func TestExport(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	stats, err := Export(context.Background(), r, exportGraph(), Options{})
	require.NoError(t, err)

	assert.Equal(t, Stats{Nodes: 5, Relationships: 5, Statements: 7}, stats)
	require.Len(t, r.statements, 7)

	assert.Contains(t, r.statements[0].cypher, "CREATE CONSTRAINT prism_node_id")

	// Directory, File, Function in order of first appearance.
	assert.Contains(t, r.statements[1].cypher, "SET n:Directory")
	assert.Contains(t, r.statements[2].cypher, "SET n:File")
	assert.Len(t, r.batch(2), 2)
	assert.Contains(t, r.statements[3].cypher, "SET n:Function")

	assert.Contains(t, r.statements[4].cypher, "[r:CONTAINS]")
	assert.Len(t, r.batch(4), 3)
	assert.Contains(t, r.statements[5].cypher, "[r:IMPORTS]")
	assert.Equal(t, []map[string]any{
		{"from": "file:main.py", "to": "file:api/routes.py", "weight": 3},
	}, r.batch(5))
	assert.Contains(t, r.statements[6].cypher, "[r:CALLS]")
}

func TestExport_NodeProps(t *testing.T) {
	t.Parallel()

	r := &recorder{}
	_, err := Export(context.Background(), r, exportGraph(), Options{})
	require.NoError(t, err)

	dir := r.batch(1)[0]
	assert.Equal(t, "dir:api", dir["id"])
	assert.Equal(t, map[string]any{
		"name":              "api",
		"type":              "directory",
		"file_path":         "api",
		"lines_of_code":     0,
		"abstraction_level": 2,
	}, dir["props"])

	fn := r.batch(3)[0]["props"].(map[string]any)
	assert.Equal(t, "python", fn["language"])
	assert.Equal(t, "file:api/routes.py", fn["parent"])
	assert.Equal(t, 2, fn["cyclomatic_complexity"])
	assert.Equal(t, 3, fn["start_line"])
	assert.NotContains(t, fn, "export_count")
}

func TestExport_Options(t *testing.T) {
	t.Parallel()

	t.Run("Clean", func(t *testing.T) {
		t.Parallel()
		r := &recorder{}
		stats, err := Export(context.Background(), r, exportGraph(), Options{Clean: true})
		require.NoError(t, err)
		assert.Equal(t, 8, stats.Statements)
		assert.Equal(t, "MATCH (n:PrismNode) DETACH DELETE n", r.statements[0].cypher)
	})

	t.Run("BatchSize", func(t *testing.T) {
		t.Parallel()
		r := &recorder{}
		stats, err := Export(context.Background(), r, exportGraph(), Options{BatchSize: 1})
		require.NoError(t, err)
		// constraint + 5 node rows + 5 relationship rows
		assert.Equal(t, 11, stats.Statements)
		for _, s := range r.statements[1:] {
			assert.Len(t, s.params["batch"], 1)
		}
	})

	t.Run("EmptyGraph", func(t *testing.T) {
		t.Parallel()
		r := &recorder{}
		stats, err := Export(context.Background(), r, graph.New(), Options{})
		require.NoError(t, err)
		assert.Equal(t, Stats{Statements: 1}, stats)
	})
}

func TestExport_Errors(t *testing.T) {
	t.Parallel()

	t.Run("RunnerFailure", func(t *testing.T) {
		t.Parallel()
		r := &recorder{failOn: 3}
		_, err := Export(context.Background(), r, exportGraph(), Options{})
		assert.ErrorContains(t, err, "loading File nodes")
	})

	t.Run("UnknownNodeType", func(t *testing.T) {
		t.Parallel()
		g := graph.New()
		g.Nodes = append(g.Nodes, graph.Node{ID: "x", Type: "module"})
		_, err := Export(context.Background(), &recorder{}, g, Options{})
		assert.ErrorContains(t, err, `unknown type "module"`)
	})
}
