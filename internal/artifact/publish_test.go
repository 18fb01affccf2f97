package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rHedBull/prism/internal/config"
	"github.com/rHedBull/prism/internal/graph"
	"github.com/rHedBull/prism/internal/output"
)

func TestPublish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("GraphArtifacts", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, output.WriteGraph(dir, graph.New()))
		store := NewMemoryStore()

		published, err := Publish(ctx, store, dir, "run-42")
		require.NoError(t, err)
		assert.Equal(t, []string{"nodes.json", "edges.json"}, published)

		listed, err := store.List(ctx, "run-42")
		require.NoError(t, err)
		assert.Equal(t, []string{"edges.json", "nodes.json"}, listed)

		data, err := store.Get(ctx, "run-42", "nodes.json")
		require.NoError(t, err)
		assert.Equal(t, "[]\n", string(data))
	})

	t.Run("PlanArtifacts", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, output.DiffFile), []byte("{}"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, output.PlanFile), []byte(`{"name":"p"}`), 0o644))

		published, err := Publish(ctx, NewMemoryStore(), dir, "run-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"diff.json", "plan.json"}, published)
	})

	t.Run("Empty", func(t *testing.T) {
		t.Parallel()
		_, err := Publish(ctx, NewMemoryStore(), t.TempDir(), "run-1")
		assert.ErrorIs(t, err, ErrNothingToPublish)
	})

	t.Run("MissingRunID", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		require.NoError(t, output.WriteGraph(dir, graph.New()))
		_, err := Publish(ctx, NewMemoryStore(), dir, " ")
		assert.ErrorContains(t, err, "run_id is required")
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "a", "/x.json", []byte("1")))
	require.NoError(t, store.Put(ctx, "ab", "y.json", []byte("2")))

	got, err := store.Get(ctx, "a", "x.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	_, err = store.Get(ctx, "a", "y.json")
	assert.ErrorIs(t, err, ErrNotFound)

	listed, err := store.List(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.json"}, listed)
}

func TestNewS3Store_Validation(t *testing.T) {
	t.Parallel()

	valid := config.S3Config{Endpoint: "localhost:9000", Bucket: "prism", AccessKey: "k", SecretKey: "s"}

	tests := []struct {
		name    string
		mutate  func(*config.S3Config)
		wantErr string
	}{
		{"MissingEndpoint", func(c *config.S3Config) { c.Endpoint = "" }, "endpoint is required"},
		{"MissingKeys", func(c *config.S3Config) { c.SecretKey = " " }, "secret key are required"},
		{"MissingBucket", func(c *config.S3Config) { c.Bucket = "" }, "bucket is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			tt.mutate(&cfg)
			_, err := NewS3Store(cfg)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()
		store, err := NewS3Store(valid)
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", store.region)
	})
}
