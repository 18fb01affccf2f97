package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/rHedBull/prism/internal/graph"
)

// Key prefixes for different data types
const (
	prefixSnapshot = "s:" // snapshot metadata
	prefixGraph    = "g:" // compressed graph
)

// BadgerStore is a BadgerDB-backed snapshot store.
type BadgerStore struct {
	mu sync.RWMutex
	db *badger.DB
}

// NewBadgerStore creates a new, unopened BadgerDB store.
func NewBadgerStore() *BadgerStore {
	return &BadgerStore{}
}

// Initialize opens or creates the database at path. An empty path opens
// an in-memory database.
func (b *BadgerStore) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}
	b.db = db
	return nil
}

// Close releases all resources held by the store.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// Save implements Store. Metadata and graph are written in one transaction.
func (b *BadgerStore) Save(ctx context.Context, label string, g *graph.Graph) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	snap, err := newSnapshot(label, g)
	if err != nil {
		return Snapshot{}, err
	}
	meta, err := json.Marshal(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshaling snapshot: %w", err)
	}
	blob, err := encodeGraph(g)
	if err != nil {
		return Snapshot{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return Snapshot{}, ErrClosed
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key(prefixSnapshot, snap.Label), meta); err != nil {
			return err
		}
		return txn.Set(key(prefixGraph, snap.Label), blob)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("saving snapshot %q: %w", snap.Label, err)
	}
	return snap, nil
}

// Load implements Store.
func (b *BadgerStore) Load(ctx context.Context, label string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, ErrClosed
	}

	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(prefixGraph, label))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", label, err)
	}
	return decodeGraph(blob)
}

// List implements Store. Badger iterates keys in order, so snapshots come
// back sorted by label.
func (b *BadgerStore) List(ctx context.Context) ([]Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, ErrClosed
	}

	snaps := []Snapshot{}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixSnapshot)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var snap Snapshot
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &snap)
			}); err != nil {
				return fmt.Errorf("decoding %s: %w", it.Item().Key(), err)
			}
			snaps = append(snaps, snap)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return snaps, nil
}

// Delete implements Store.
func (b *BadgerStore) Delete(ctx context.Context, label string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	label = strings.TrimSpace(label)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(prefixSnapshot, label)); err != nil {
			return err
		}
		if err := txn.Delete(key(prefixSnapshot, label)); err != nil {
			return err
		}
		return txn.Delete(key(prefixGraph, label))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, label)
	}
	if err != nil {
		return fmt.Errorf("deleting snapshot %q: %w", label, err)
	}
	return nil
}

func key(prefix, label string) []byte {
	return []byte(prefix + label)
}
