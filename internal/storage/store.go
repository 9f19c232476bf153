package storage

import (
	"context"
	"errors"
	"time"

	"fedigraph/internal/catalog"
	"fedigraph/internal/graph"
)

var ErrSnapshotNotFound = errors.New("snapshot not stored")

// SnapshotInfo describes a stored snapshot without loading it.
type SnapshotInfo struct {
	catalog.Key
	Nodes    int
	Edges    int
	StoredAt time.Time
}

// SnapshotStore persists materialized graphs keyed by their coordinates.
type SnapshotStore interface {
	// SaveSnapshot replaces any snapshot stored under key.
	SaveSnapshot(ctx context.Context, key catalog.Key, g *graph.Graph) error

	LoadSnapshot(ctx context.Context, key catalog.Key) (*graph.Graph, error)

	// ListSnapshots returns stored snapshots ordered by key.
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)

	Close() error
}
