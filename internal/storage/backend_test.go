package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rHedBull/prism/internal/graph"
)

func testGraph(loc int) *graph.Graph {
	return &graph.Graph{
		Nodes: []graph.Node{
			graph.NewDirectoryNode("pkg", "pkg", "", 1),
			graph.NewFileNode("pkg/a.ts", "a.ts", "typescript", "dir:pkg", loc, 2, 1),
			graph.NewFunctionNode("pkg/a.ts", "run", "typescript",
				graph.FunctionMetrics{StartLine: 2, EndLine: 5, LinesOfCode: 4, CyclomaticComplexity: 1},
				[]string{"fetch"}, 1),
		},
		Edges: []graph.Edge{
			{From: "dir:pkg", To: "file:pkg/a.ts", Type: graph.EdgeContains, Weight: 1},
			{From: "file:pkg/a.ts", To: "func:pkg/a.ts:run", Type: graph.EdgeContains, Weight: 1},
		},
	}
}

// stores returns every Store implementation, opened and cleaned up.
func stores(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore := NewBadgerStore()
	require.NoError(t, badgerStore.Initialize("", false))
	memoryStore := NewMemoryStore()
	t.Cleanup(func() {
		badgerStore.Close()
		memoryStore.Close()
	})
	return map[string]Store{"Badger": badgerStore, "Memory": memoryStore}
}

func TestStore_SaveLoad(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			g := testGraph(10)
			snap, err := store.Save(ctx, " v1.0 ", g)
			require.NoError(t, err)
			assert.Equal(t, "v1.0", snap.Label)
			assert.NotEmpty(t, snap.ID)
			assert.False(t, snap.CreatedAt.IsZero())
			assert.Equal(t, 3, snap.Nodes)
			assert.Equal(t, 2, snap.Edges)

			got, err := store.Load(ctx, "v1.0")
			require.NoError(t, err)
			assert.Equal(t, g, got)

			// Mutating the loaded copy never reaches the store.
			got.Nodes[0].Name = "changed"
			again, err := store.Load(ctx, "v1.0")
			require.NoError(t, err)
			assert.Equal(t, "pkg", again.Nodes[0].Name)
		})
	}
}

func TestStore_SaveReplacesLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			first, err := store.Save(ctx, "main", testGraph(10))
			require.NoError(t, err)
			second, err := store.Save(ctx, "main", testGraph(99))
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)

			got, err := store.Load(ctx, "main")
			require.NoError(t, err)
			assert.Equal(t, 99, got.Nodes[1].LinesOfCode)

			snaps, err := store.List(ctx)
			require.NoError(t, err)
			require.Len(t, snaps, 1)
			assert.Equal(t, second.ID, snaps[0].ID)
		})
	}
}

func TestStore_ListSortedByLabel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for _, label := range []string{"v2", "main", "v10"} {
				_, err := store.Save(ctx, label, testGraph(1))
				require.NoError(t, err)
			}

			snaps, err := store.List(ctx)
			require.NoError(t, err)
			labels := make([]string, len(snaps))
			for i, s := range snaps {
				labels[i] = s.Label
			}
			assert.Equal(t, []string{"main", "v10", "v2"}, labels)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := store.Save(ctx, "old", testGraph(1))
			require.NoError(t, err)
			require.NoError(t, store.Delete(ctx, "old"))

			_, err = store.Load(ctx, "old")
			assert.ErrorIs(t, err, ErrSnapshotNotFound)
			assert.ErrorIs(t, store.Delete(ctx, "old"), ErrSnapshotNotFound)

			snaps, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, snaps)
		})
	}
}

func TestStore_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := store.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrSnapshotNotFound)

			_, err = store.Save(ctx, "  ", testGraph(1))
			assert.ErrorIs(t, err, ErrInvalidLabel)

			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err = store.Save(cancelled, "x", testGraph(1))
			assert.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestStore_Closed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.NoError(t, store.Close())
			_, err := store.Save(ctx, "x", testGraph(1))
			assert.ErrorIs(t, err, ErrClosed)
			_, err = store.List(ctx)
			assert.ErrorIs(t, err, ErrClosed)
			assert.NoError(t, store.Close())
		})
	}
}

func TestEncodeGraph(t *testing.T) {
	t.Parallel()

	g := testGraph(42)
	blob, err := encodeGraph(g)
	require.NoError(t, err)

	got, err := decodeGraph(blob)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	_, err = decodeGraph([]byte("not zstd"))
	assert.Error(t, err)
}
