// Package graph provides the architecture graph data model for Prism.
//
// It defines the node and edge types that represent a source tree's
// structure (directories, files, functions, classes) and the relations
// between them (contains, imports, calls), together with the plain
// {nodes, edges} snapshot that every other package exchanges.
package graph

import "strings"

// NodeType represents the kind of a graph node.
type NodeType string

const (
	NodeDirectory NodeType = "directory"
	NodeFile      NodeType = "file"
	NodeFunction  NodeType = "function"
	NodeClass     NodeType = "class"
	NodeInterface NodeType = "interface"
	NodeTypeAlias NodeType = "type_alias"
)

// EdgeType represents the kind of relation between two nodes.
type EdgeType string

const (
	EdgeContains EdgeType = "contains"
	EdgeImports  EdgeType = "imports"
	EdgeCalls    EdgeType = "calls"
)

// ID namespace prefixes.
const (
	PrefixDirectory = "dir:"
	PrefixFile      = "file:"
	PrefixFunction  = "func:"
	PrefixClass     = "class:"
	PrefixPlan      = "plan:"
)

// Node is a point in the architecture graph.
//
// Node is a single flat record whose Type selects the variant. The
// variant-specific fields are pointers and are only populated by the
// matching constructor, so they serialize as absent for other variants.
type Node struct {
	// ID is the globally unique, namespaced identifier.
	ID string `json:"id"`

	// Type is the node variant.
	Type NodeType `json:"type"`

	// Name is the entity name (directory name, file base name, symbol name).
	Name string `json:"name"`

	// FilePath is the repo-relative, POSIX-separated path.
	FilePath string `json:"file_path"`

	// Language is nil for directories and planned nodes.
	Language *string `json:"language"`

	// LinesOfCode is the line count of the entity.
	LinesOfCode int `json:"lines_of_code"`

	// AbstractionLevel is the coarse architectural significance of the node.
	AbstractionLevel int `json:"abstraction_level"`

	// Parent is the id of the containing node, nil for roots.
	Parent *string `json:"parent"`

	ExportCount          *int `json:"export_count,omitempty"`
	StartLine            *int `json:"start_line,omitempty"`
	EndLine              *int `json:"end_line,omitempty"`
	CyclomaticComplexity *int `json:"cyclomatic_complexity,omitempty"`
	ParamCount           *int `json:"param_count,omitempty"`
	MaxNesting           *int `json:"max_nesting,omitempty"`

	// Calls lists call-target names in source order, duplicates kept.
	Calls []string `json:"calls,omitempty"`

	// Decorators and Bases are auxiliary class metadata.
	Decorators []string `json:"decorators,omitempty"`
	Bases      []string `json:"bases,omitempty"`

	// Meta carries provenance for synthesized nodes.
	Meta map[string]string `json:"meta,omitempty"`
}

// Edge is a directed relation between two nodes.
type Edge struct {
	From   string   `json:"from"`
	To     string   `json:"to"`
	Type   EdgeType `json:"type"`
	Weight int      `json:"weight"`
}

// EdgeKey identifies an edge irrespective of its weight.
type EdgeKey struct {
	From string
	To   string
	Type EdgeType
}

// Key returns the weight-free identity of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{From: e.From, To: e.To, Type: e.Type}
}

// ParentID returns the parent id or "" when the node is a root.
func (n *Node) ParentID() string {
	if n.Parent == nil {
		return ""
	}
	return *n.Parent
}

// IsDeclaration reports whether the node is a function or class-like symbol.
func (n *Node) IsDeclaration() bool {
	switch n.Type {
	case NodeFunction, NodeClass, NodeInterface, NodeTypeAlias:
		return true
	}
	return false
}

// DirectoryID returns the id of the directory node for dirPath.
func DirectoryID(dirPath string) string { return PrefixDirectory + dirPath }

// FileID returns the id of the file node for filePath.
func FileID(filePath string) string { return PrefixFile + filePath }

// FunctionID returns the id of a function declared in filePath.
func FunctionID(filePath, name string) string { return PrefixFunction + filePath + ":" + name }

// ClassID returns the id of a class-like declaration in filePath.
// Interfaces and type aliases share the class namespace.
func ClassID(filePath, name string) string { return PrefixClass + filePath + ":" + name }

// PlanID returns the id of a plan-synthesized node: lowercased, spaces
// replaced with underscores.
func PlanID(name string) string {
	return PrefixPlan + strings.ReplaceAll(strings.ToLower(name), " ", "_")
}

// NewDirectoryNode creates a directory node. parent is "" for top-level directories.
func NewDirectoryNode(dirPath, name, parent string, level int) Node {
	return Node{
		ID:               DirectoryID(dirPath),
		Type:             NodeDirectory,
		Name:             name,
		FilePath:         dirPath,
		AbstractionLevel: level,
		Parent:           optString(parent),
	}
}

// NewFileNode creates a file node. parent is "" for files at the root.
func NewFileNode(filePath, name, language, parent string, loc, exports, level int) Node {
	return Node{
		ID:               FileID(filePath),
		Type:             NodeFile,
		Name:             name,
		FilePath:         filePath,
		Language:         optString(language),
		LinesOfCode:      loc,
		AbstractionLevel: level,
		Parent:           optString(parent),
		ExportCount:      &exports,
	}
}

// FunctionMetrics holds the structural metrics of a function-like declaration.
type FunctionMetrics struct {
	StartLine            int
	EndLine              int
	LinesOfCode          int
	CyclomaticComplexity int
	ParamCount           int
	MaxNesting           int
}

// NewFunctionNode creates a function node contained in the file node for filePath.
func NewFunctionNode(filePath, name, language string, m FunctionMetrics, calls []string, level int) Node {
	return Node{
		ID:                   FunctionID(filePath, name),
		Type:                 NodeFunction,
		Name:                 name,
		FilePath:             filePath,
		Language:             optString(language),
		LinesOfCode:          m.LinesOfCode,
		AbstractionLevel:     level,
		Parent:               optString(FileID(filePath)),
		StartLine:            intPtr(m.StartLine),
		EndLine:              intPtr(m.EndLine),
		CyclomaticComplexity: intPtr(m.CyclomaticComplexity),
		ParamCount:           intPtr(m.ParamCount),
		MaxNesting:           intPtr(m.MaxNesting),
		Calls:                append([]string(nil), calls...),
	}
}

// NewClassNode creates a class, interface or type alias node. Only classes
// carry complexity metrics; metrics is ignored for the other kinds.
func NewClassNode(kind NodeType, filePath, name, language string, m FunctionMetrics, decorators, bases []string, level int) Node {
	n := Node{
		ID:               ClassID(filePath, name),
		Type:             kind,
		Name:             name,
		FilePath:         filePath,
		Language:         optString(language),
		LinesOfCode:      m.LinesOfCode,
		AbstractionLevel: level,
		Parent:           optString(FileID(filePath)),
		StartLine:        intPtr(m.StartLine),
		EndLine:          intPtr(m.EndLine),
		Decorators:       append([]string(nil), decorators...),
		Bases:            append([]string(nil), bases...),
	}
	if kind == NodeClass {
		n.CyclomaticComplexity = intPtr(m.CyclomaticComplexity)
		n.MaxNesting = intPtr(m.MaxNesting)
	}
	return n
}

// NewPlannedNode creates a parentless file node for a plan "add" operation.
func NewPlannedNode(name, planName string, level int) Node {
	zero := 0
	if planName == "" {
		planName = "unnamed"
	}
	return Node{
		ID:               PlanID(name),
		Type:             NodeFile,
		Name:             name,
		FilePath:         "(planned)/" + name,
		AbstractionLevel: level,
		ExportCount:      &zero,
		Meta:             map[string]string{"source": "plan", "plan_name": planName},
	}
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v int) *int { return &v }
