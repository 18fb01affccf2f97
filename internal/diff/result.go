// Package diff computes structural differences between two architecture
// graphs.
package diff

import "github.com/rHedBull/prism/internal/graph"

// Meta carries provenance labels such as source, ref_a, ref_b or plan_name.
type Meta map[string]string

// Meta sources.
const (
	SourceCommits = "commits"
	SourcePlan    = "plan"
	SourceWatch   = "watch"
)

// Result is the structural difference between a base and a target graph.
type Result struct {
	Meta          Meta           `json:"meta"`
	Summary       Summary        `json:"summary"`
	AddedNodes    []NodeSummary  `json:"added_nodes"`
	RemovedNodes  []NodeSummary  `json:"removed_nodes"`
	MovedNodes    []MovedNode    `json:"moved_nodes"`
	ModifiedNodes []ModifiedNode `json:"modified_nodes"`
	AddedEdges    []EdgeRef      `json:"added_edges"`
	RemovedEdges  []EdgeRef      `json:"removed_edges"`
}

// Summary counts the entries of each result list.
type Summary struct {
	AddedNodes    int `json:"added_nodes"`
	RemovedNodes  int `json:"removed_nodes"`
	MovedNodes    int `json:"moved_nodes"`
	ModifiedNodes int `json:"modified_nodes"`
	AddedEdges    int `json:"added_edges"`
	RemovedEdges  int `json:"removed_edges"`
}

// Empty reports whether nothing changed.
func (s Summary) Empty() bool {
	return s == Summary{}
}

// NodeSummary describes an added or removed node.
type NodeSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	AbstractionLevel int    `json:"abstraction_level"`
	LinesOfCode      int    `json:"lines_of_code"`
}

// MovedNode pairs a removed and an added node that share a name.
type MovedNode struct {
	ID               string `json:"id"`
	OldID            string `json:"old_id"`
	Name             string `json:"name"`
	OldFilePath      string `json:"old_file_path"`
	NewFilePath      string `json:"new_file_path"`
	AbstractionLevel int    `json:"abstraction_level"`
}

// Change is an [old, new] value pair.
type Change [2]any

// Changed fields reported in ModifiedNode.Changes.
const (
	FieldLinesOfCode      = "lines_of_code"
	FieldExportCount      = "export_count"
	FieldAbstractionLevel = "abstraction_level"

	// FieldChildrenChanged marks a container whose descendants changed.
	FieldChildrenChanged = "children_changed"
)

// ModifiedNode lists the changed fields of a node present in both graphs.
type ModifiedNode struct {
	ID      string            `json:"id"`
	Changes map[string]Change `json:"changes"`
}

// EdgeRef is an edge identity without its weight.
type EdgeRef struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Type graph.EdgeType `json:"type"`
}

func summarize(n *graph.Node) NodeSummary {
	return NodeSummary{
		ID:               n.ID,
		Name:             n.Name,
		AbstractionLevel: n.AbstractionLevel,
		LinesOfCode:      n.LinesOfCode,
	}
}
