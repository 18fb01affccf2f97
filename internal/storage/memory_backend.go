package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/rHedBull/prism/internal/graph"
)

type memoryEntry struct {
	snap  Snapshot
	graph *graph.Graph
}

// MemoryStore is an in-memory Store, used by watch mode and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Save implements Store. The graph is copied.
func (m *MemoryStore) Save(ctx context.Context, label string, g *graph.Graph) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	snap, err := newSnapshot(label, g)
	if err != nil {
		return Snapshot{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return Snapshot{}, ErrClosed
	}
	m.entries[snap.Label] = memoryEntry{snap: snap, graph: g.Clone()}
	return snap, nil
}

// Load implements Store. The returned graph is a copy.
func (m *MemoryStore) Load(ctx context.Context, label string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return nil, ErrClosed
	}
	e, ok := m.entries[strings.TrimSpace(label)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
	}
	return e.graph.Clone(), nil
}

// List implements Store.
func (m *MemoryStore) List(ctx context.Context) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.entries == nil {
		return nil, ErrClosed
	}
	snaps := make([]Snapshot, 0, len(m.entries))
	for _, label := range slices.Sorted(maps.Keys(m.entries)) {
		snaps = append(snaps, m.entries[label].snap)
	}
	return snaps, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		return ErrClosed
	}
	label = strings.TrimSpace(label)
	if _, ok := m.entries[label]; !ok {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
	}
	delete(m.entries, label)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}
