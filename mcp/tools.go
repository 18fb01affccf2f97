package mcp

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rHedBull/prism/internal/diff"
	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/plan"
)

const (
	toolSummary = "prism_summary"
	toolDiff    = "prism_diff"
	toolPlan    = "prism_plan"

	schemaURI = "prism://schema"

	// largestFiles is how many files the summary lists.
	largestFiles = 10
)

// SummaryArgs are the arguments of prism_summary.
type SummaryArgs struct {
	GraphDir string `json:"graph_dir" jsonschema:"Directory holding nodes.json and edges.json, or a directory containing .callgraph"`
}

// DiffArgs are the arguments of prism_diff.
type DiffArgs struct {
	GraphA   string `json:"graph_a" jsonschema:"Graph directory of the base version"`
	GraphB   string `json:"graph_b" jsonschema:"Graph directory of the target version"`
	RefA     string `json:"ref_a,omitempty" jsonschema:"Label recorded for the base version"`
	RefB     string `json:"ref_b,omitempty" jsonschema:"Label recorded for the target version"`
	MinLevel *int   `json:"min_level,omitempty" jsonschema:"Ignore nodes below this abstraction level"`
}

// PlanArgs are the arguments of prism_plan.
type PlanArgs struct {
	GraphDir string `json:"graph_dir" jsonschema:"Graph directory the plan is applied to"`
	Plan     string `json:"plan" jsonschema:"Path to a JSON or YAML plan file"`
}

func (s *Server) summarize(in SummaryArgs) (string, error) {
	if in.GraphDir == "" {
		return "", fmt.Errorf("graph_dir is required")
	}
	g, err := s.graphs.load(in.GraphDir)
	if err != nil {
		return "", err
	}
	return formatSummary(in.GraphDir, g), nil
}

func (s *Server) diffGraphs(in DiffArgs) (string, error) {
	if in.GraphA == "" || in.GraphB == "" {
		return "", fmt.Errorf("graph_a and graph_b are required")
	}
	a, err := s.graphs.load(in.GraphA)
	if err != nil {
		return "", err
	}
	b, err := s.graphs.load(in.GraphB)
	if err != nil {
		return "", err
	}

	var opts []diff.Option
	if in.MinLevel != nil {
		opts = append(opts, diff.WithMinLevel(*in.MinLevel))
	}
	meta := diff.Meta{
		"source": diff.SourceCommits,
		"ref_a":  cmp.Or(in.RefA, in.GraphA),
		"ref_b":  cmp.Or(in.RefB, in.GraphB),
	}
	res, err := diff.Compute(a, b, meta, opts...)
	if err != nil {
		return "", err
	}
	return marshal(res)
}

func (s *Server) previewPlan(in PlanArgs) (string, error) {
	if in.GraphDir == "" || in.Plan == "" {
		return "", fmt.Errorf("graph_dir and plan are required")
	}
	g, err := s.graphs.load(in.GraphDir)
	if err != nil {
		return "", err
	}
	p, err := plan.Load(in.Plan)
	if err != nil {
		return "", err
	}
	res, err := plan.Apply(g, p)
	if err != nil {
		return "", err
	}
	return marshal(res)
}

func marshal(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func formatSummary(dir string, g *graph.Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Graph Summary: %s\n\n", dir)
	fmt.Fprintf(&sb, "**Nodes:** %d\n", len(g.Nodes))
	fmt.Fprintf(&sb, "**Edges:** %d\n", len(g.Edges))

	sb.WriteString("\n## Node Types\n\n")
	nodeCounts := g.CountByType()
	for _, t := range slices.Sorted(maps.Keys(nodeCounts)) {
		fmt.Fprintf(&sb, "- %s: %d\n", t, nodeCounts[t])
	}

	sb.WriteString("\n## Edge Types\n\n")
	edgeCounts := g.CountEdgesByType()
	for _, t := range slices.Sorted(maps.Keys(edgeCounts)) {
		fmt.Fprintf(&sb, "- %s: %d\n", t, edgeCounts[t])
	}

	sb.WriteString("\n## Abstraction Levels\n\n")
	levels := make(map[int]int)
	for i := range g.Nodes {
		levels[g.Nodes[i].AbstractionLevel]++
	}
	for _, l := range slices.Sorted(maps.Keys(levels)) {
		fmt.Fprintf(&sb, "- level %d: %d nodes\n", l, levels[l])
	}

	var files []*graph.Node
	for i := range g.Nodes {
		if g.Nodes[i].Type == graph.NodeFile {
			files = append(files, &g.Nodes[i])
		}
	}
	if len(files) > 0 {
		slices.SortStableFunc(files, func(x, y *graph.Node) int {
			return cmp.Or(cmp.Compare(y.LinesOfCode, x.LinesOfCode), cmp.Compare(x.ID, y.ID))
		})
		sb.WriteString("\n## Largest Files\n\n")
		for _, f := range files[:min(largestFiles, len(files))] {
			fmt.Fprintf(&sb, "- %s (%d lines, level %d)\n", f.FilePath, f.LinesOfCode, f.AbstractionLevel)
		}
	}
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Prism Graph Schema\n\n")
	sb.WriteString("## Node Types\n\n")
	sb.WriteString("| Type | ID | Key Properties |\n")
	sb.WriteString("|------|----|----------------|\n")
	sb.WriteString("| `directory` | `dir:<path>` | file_path |\n")
	sb.WriteString("| `file` | `file:<path>` | language, lines_of_code, export_count |\n")
	sb.WriteString("| `function` | `func:<path>:<name>` | start_line, end_line, cyclomatic_complexity, param_count, max_nesting, calls |\n")
	sb.WriteString("| `class` | `class:<path>:<name>` | start_line, end_line, decorators, bases |\n")
	sb.WriteString("| `interface` | `class:<path>:<name>` | start_line, end_line |\n")
	sb.WriteString("| `type_alias` | `class:<path>:<name>` | start_line, end_line |\n")
	sb.WriteString("| planned `file` | `plan:<name>` | meta.source, meta.plan_name |\n")
	sb.WriteString("\nEvery node has id, type, name, file_path, language, lines_of_code, abstraction_level and parent.\n")
	sb.WriteString("\n## Edge Types\n\n")
	sb.WriteString("| Type | Source → Target | Weight |\n")
	sb.WriteString("|------|-----------------|--------|\n")
	sb.WriteString("| `contains` | Directory → Directory/File, File → Symbol | 1 |\n")
	sb.WriteString("| `imports` | File → File | imported names, at least 1 |\n")
	sb.WriteString("| `calls` | Function → Function | call sites |\n")
	sb.WriteString("\n## Diff\n\n")
	sb.WriteString("A diff has meta, summary, added_nodes, removed_nodes, moved_nodes, modified_nodes, added_edges and removed_edges. ")
	sb.WriteString("modified_nodes map a field (lines_of_code, export_count, abstraction_level, children_changed) to its [old, new] values.\n")
	return sb.String()
}

// registerTools registers tools with the SDK server, sharing the handlers
// of CallTool.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolSummary,
		Description: "Summarize an architecture graph",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args SummaryArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.summarize(args))
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolDiff,
		Description: "Compute the structural diff between two graphs",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args DiffArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.diffGraphs(args))
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        toolPlan,
		Description: "Preview an architecture plan against a graph",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args PlanArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(s.previewPlan(args))
	})
}

// registerResources registers resources with the SDK server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         schemaURI,
		Name:        "Graph Schema",
		Description: "Node, edge and diff formats of Prism graphs",
		MIMEType:    "text/markdown",
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: schemaURI, MIMEType: "text/markdown", Text: getSchema()},
			},
		}, nil
	})
}

func toolResult(text string, err error) (*mcp.CallToolResult, any, error) {
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
			IsError: true,
		}, nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}
