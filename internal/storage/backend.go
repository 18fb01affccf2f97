// Package storage persists labelled graph snapshots so builds taken at
// different times can be diffed later.
//
// It defines the Store interface that all snapshot stores satisfy, the
// snapshot metadata, and the compressed encoding shared by the backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/rHedBull/prism/internal/graph"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot has the label.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrInvalidLabel is returned for empty or whitespace-only labels.
	ErrInvalidLabel = errors.New("invalid snapshot label")

	// ErrClosed is returned by stores that are not open.
	ErrClosed = errors.New("store is closed")
)

// Snapshot describes one stored graph.
type Snapshot struct {
	// ID is unique per save, including saves that replace a label.
	ID string `json:"id"`

	// Label is the user-chosen key, for example a tag or commit.
	Label string `json:"label"`

	// CreatedAt is when the snapshot was saved (UTC).
	CreatedAt time.Time `json:"created_at"`

	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// Store defines the interface for snapshot stores.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores g under label, replacing any previous snapshot with
	// that label.
	Save(ctx context.Context, label string, g *graph.Graph) (Snapshot, error)

	// Load returns the graph stored under label.
	Load(ctx context.Context, label string) (*graph.Graph, error)

	// List returns every snapshot ordered by label.
	List(ctx context.Context) ([]Snapshot, error)

	// Delete removes the snapshot stored under label.
	Delete(ctx context.Context, label string) error

	// Close releases all resources held by the store.
	Close() error
}

func newSnapshot(label string, g *graph.Graph) (Snapshot, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Snapshot{}, ErrInvalidLabel
	}
	return Snapshot{
		ID:        uuid.New().String(),
		Label:     label,
		CreatedAt: time.Now().UTC(),
		Nodes:     len(g.Nodes),
		Edges:     len(g.Edges),
	}, nil
}

// The encoder and decoder are only used through EncodeAll and DecodeAll,
// which are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// encodeGraph returns the zstd-compressed JSON form of g.
func encodeGraph(g *graph.Graph) ([]byte, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshaling graph: %w", err)
	}
	return encoder.EncodeAll(data, nil), nil
}

func decodeGraph(blob []byte) (*graph.Graph, error) {
	data, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing graph: %w", err)
	}
	g := graph.New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("unmarshaling graph: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = []graph.Node{}
	}
	if g.Edges == nil {
		g.Edges = []graph.Edge{}
	}
	return g, nil
}
