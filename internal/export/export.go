// Package export loads architecture graphs into Neo4j using batched
// UNWIND ... MERGE statements.
package export

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/logging"
)

// DefaultBatchSize is the number of rows per UNWIND statement.
const DefaultBatchSize = 500

// Runner executes one Cypher statement.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) error
}

// Every exported node carries the base label plus one per node type.
const baseLabel = "PrismNode"

var nodeLabels = map[graph.NodeType]string{
	graph.NodeDirectory: "Directory",
	graph.NodeFile:      "File",
	graph.NodeFunction:  "Function",
	graph.NodeClass:     "Class",
	graph.NodeInterface: "Interface",
	graph.NodeTypeAlias: "TypeAlias",
}

var relTypes = map[graph.EdgeType]string{
	graph.EdgeContains: "CONTAINS",
	graph.EdgeImports:  "IMPORTS",
	graph.EdgeCalls:    "CALLS",
}

// Options configures an export.
type Options struct {
	// Clean removes every previously exported node first.
	Clean bool

	// BatchSize bounds rows per statement. Zero means DefaultBatchSize.
	BatchSize int

	// Logger receives progress output. Nil discards it.
	Logger *slog.Logger
}

// Stats summarizes an export.
type Stats struct {
	Nodes         int
	Relationships int
	Statements    int
}

// Export writes g to the database behind r. Nodes are merged on id, so
// repeated exports update in place. Duplicate edges are merged into one
// relationship whose weight is the sum of theirs.
func Export(ctx context.Context, r Runner, g *graph.Graph, opts Options) (Stats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	x := &exporter{r: r, opts: opts}

	if opts.Clean {
		opts.Logger.Info("export.clean")
		if err := x.run(ctx, "MATCH (n:"+baseLabel+") DETACH DELETE n", nil); err != nil {
			return x.stats, fmt.Errorf("cleaning graph: %w", err)
		}
	}
	if err := x.run(ctx, "CREATE CONSTRAINT prism_node_id IF NOT EXISTS FOR (n:"+baseLabel+") REQUIRE n.id IS UNIQUE", nil); err != nil {
		return x.stats, fmt.Errorf("creating constraint: %w", err)
	}
	if err := x.nodes(ctx, g.Nodes); err != nil {
		return x.stats, err
	}
	if err := x.edges(ctx, g.Edges); err != nil {
		return x.stats, err
	}
	opts.Logger.Info("export.done", "nodes", x.stats.Nodes, "relationships", x.stats.Relationships)
	return x.stats, nil
}

type exporter struct {
	r     Runner
	opts  Options
	stats Stats
}

func (x *exporter) run(ctx context.Context, cypher string, params map[string]any) error {
	x.stats.Statements++
	return x.r.Run(ctx, cypher, params)
}

// batches runs cypher once per chunk of rows.
func (x *exporter) batches(ctx context.Context, cypher string, rows []map[string]any) error {
	for start := 0; start < len(rows); start += x.opts.BatchSize {
		end := min(start+x.opts.BatchSize, len(rows))
		if err := x.run(ctx, cypher, map[string]any{"batch": rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}

// nodes merges nodes grouped by label, in order of first appearance.
// Labels cannot be parameters, so they come from nodeLabels only.
func (x *exporter) nodes(ctx context.Context, nodes []graph.Node) error {
	var order []string
	groups := make(map[string][]map[string]any)
	for i := range nodes {
		n := &nodes[i]
		label, ok := nodeLabels[n.Type]
		if !ok {
			return fmt.Errorf("node %s: unknown type %q", n.ID, n.Type)
		}
		if _, seen := groups[label]; !seen {
			order = append(order, label)
		}
		groups[label] = append(groups[label], map[string]any{"id": n.ID, "props": nodeProps(n)})
	}

	for _, label := range order {
		rows := groups[label]
		x.opts.Logger.Debug("export.nodes", "label", label, "count", len(rows))
		cypher := fmt.Sprintf(`UNWIND $batch AS row
MERGE (n:%s {id: row.id})
SET n:%s, n += row.props`, baseLabel, label)
		if err := x.batches(ctx, cypher, rows); err != nil {
			return fmt.Errorf("loading %s nodes: %w", label, err)
		}
		x.stats.Nodes += len(rows)
	}
	return nil
}

func (x *exporter) edges(ctx context.Context, edges []graph.Edge) error {
	var order []graph.EdgeKey
	weights := make(map[graph.EdgeKey]int)
	for _, e := range edges {
		k := e.Key()
		if _, seen := weights[k]; !seen {
			order = append(order, k)
		}
		weights[k] += e.Weight
	}

	var types []string
	groups := make(map[string][]map[string]any)
	for _, k := range order {
		rel, ok := relTypes[k.Type]
		if !ok {
			return fmt.Errorf("edge %s -> %s: unknown type %q", k.From, k.To, k.Type)
		}
		if _, seen := groups[rel]; !seen {
			types = append(types, rel)
		}
		groups[rel] = append(groups[rel], map[string]any{"from": k.From, "to": k.To, "weight": weights[k]})
	}

	for _, rel := range types {
		rows := groups[rel]
		x.opts.Logger.Debug("export.relationships", "type", rel, "count", len(rows))
		cypher := fmt.Sprintf(`UNWIND $batch AS row
MATCH (a:%[1]s {id: row.from}), (b:%[1]s {id: row.to})
MERGE (a)-[r:%[2]s]->(b)
SET r.weight = row.weight`, baseLabel, rel)
		if err := x.batches(ctx, cypher, rows); err != nil {
			return fmt.Errorf("loading %s relationships: %w", rel, err)
		}
		x.stats.Relationships += len(rows)
	}
	return nil
}

// nodeProps flattens a node into Neo4j properties. Absent optional
// fields are left out rather than stored as null.
func nodeProps(n *graph.Node) map[string]any {
	props := map[string]any{
		"name":              n.Name,
		"type":              string(n.Type),
		"file_path":         n.FilePath,
		"lines_of_code":     n.LinesOfCode,
		"abstraction_level": n.AbstractionLevel,
	}
	optional := map[string]*int{
		"export_count":          n.ExportCount,
		"start_line":            n.StartLine,
		"end_line":              n.EndLine,
		"cyclomatic_complexity": n.CyclomaticComplexity,
		"param_count":           n.ParamCount,
		"max_nesting":           n.MaxNesting,
	}
	for k, v := range optional {
		if v != nil {
			props[k] = *v
		}
	}
	if n.Language != nil {
		props["language"] = *n.Language
	}
	if n.Parent != nil {
		props["parent"] = *n.Parent
	}
	if len(n.Decorators) > 0 {
		props["decorators"] = n.Decorators
	}
	if len(n.Bases) > 0 {
		props["bases"] = n.Bases
	}
	return props
}
