// Package output reads and writes the on-disk graph artifacts:
// nodes.json, edges.json, diff.json and plan.json.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rHedBull/prism/internal/diff"
	"github.com/rHedBull/prism/internal/graph"
)

// ErrNoGraph is returned by ReadGraph when neither the directory nor its
// .callgraph subdirectory holds a graph.
var ErrNoGraph = errors.New("no graph artifacts found")

// Artifact names.
const (
	DirName   = ".callgraph"
	NodesFile = "nodes.json"
	EdgesFile = "edges.json"
	DiffFile  = "diff.json"
	PlanFile  = "plan.json"
)

// WriteGraph writes g as nodes.json and edges.json into dir, creating it
// if needed.
func WriteGraph(dir string, g *graph.Graph) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	nodes, edges := g.Nodes, g.Edges
	if nodes == nil {
		nodes = []graph.Node{}
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	if err := writeJSON(filepath.Join(dir, NodesFile), nodes); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, EdgesFile), edges)
}

// ResolveDir returns the directory holding the graph artifacts: dir
// itself, or dir/.callgraph.
func ResolveDir(dir string) (string, error) {
	for _, candidate := range []string{dir, filepath.Join(dir, DirName)} {
		if isFile(filepath.Join(candidate, NodesFile)) && isFile(filepath.Join(candidate, EdgesFile)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoGraph, dir)
}

// ReadGraph loads a graph written by WriteGraph. dir may be the artifact
// directory or a directory containing .callgraph.
func ReadGraph(dir string) (*graph.Graph, error) {
	resolved, err := ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	g := graph.New()
	if err := readJSON(filepath.Join(resolved, NodesFile), &g.Nodes); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(resolved, EdgesFile), &g.Edges); err != nil {
		return nil, err
	}
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	return g, nil
}

// WriteDiff writes res as diff.json into dir.
func WriteDiff(dir string, res *diff.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return writeJSON(filepath.Join(dir, DiffFile), res)
}

// ReadDiff loads a diff.json from dir.
func ReadDiff(dir string) (*diff.Result, error) {
	var res diff.Result
	if err := readJSON(filepath.Join(dir, DiffFile), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CopyPlan copies the plan file at planPath, byte for byte, to
// dir/plan.json.
func CopyPlan(dir, planPath string) error {
	src, err := os.Open(planPath)
	if err != nil {
		return fmt.Errorf("opening plan: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return writeAtomic(filepath.Join(dir, PlanFile), func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	return writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic writes through a temporary file in the same directory and
// renames it into place, so readers never observe a partial artifact.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
