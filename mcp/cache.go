package mcp

import (
	"fmt"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/output"
)

// DefaultCacheSize is the number of loaded graphs kept in memory.
const DefaultCacheSize = 16

// stamp identifies one version of the artifacts on disk.
type stamp struct {
	nodes, edges int64 // modification times, ns
	size         int64
}

type cachedGraph struct {
	stamp stamp
	graph *graph.Graph
}

// graphCache keeps recently loaded graphs keyed by artifact directory.
// An entry is reused only while the files' modification times and sizes
// are unchanged, so a rebuild in watch mode is picked up on the next call.
type graphCache struct {
	entries *lru.Cache[string, cachedGraph]
}

func newGraphCache(size int) (*graphCache, error) {
	entries, err := lru.New[string, cachedGraph](size)
	if err != nil {
		return nil, fmt.Errorf("creating graph cache: %w", err)
	}
	return &graphCache{entries: entries}, nil
}

// load returns the graph in dir, from cache when still current. Callers
// must not modify the returned graph.
func (c *graphCache) load(dir string) (*graph.Graph, error) {
	resolved, err := output.ResolveDir(dir)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(resolved); err == nil {
		resolved = abs
	}
	st, err := stampOf(resolved)
	if err != nil {
		return nil, err
	}
	if e, ok := c.entries.Get(resolved); ok && e.stamp == st {
		return e.graph, nil
	}
	g, err := output.ReadGraph(resolved)
	if err != nil {
		return nil, err
	}
	c.entries.Add(resolved, cachedGraph{stamp: st, graph: g})
	return g, nil
}

func stampOf(dir string) (stamp, error) {
	nodes, err := os.Stat(filepath.Join(dir, output.NodesFile))
	if err != nil {
		return stamp{}, err
	}
	edges, err := os.Stat(filepath.Join(dir, output.EdgesFile))
	if err != nil {
		return stamp{}, err
	}
	return stamp{
		nodes: nodes.ModTime().UnixNano(),
		edges: edges.ModTime().UnixNano(),
		size:  nodes.Size() + edges.Size(),
	}, nil
}
