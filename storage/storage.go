// Package storage persists DAG specs, workflow run records and system
// snapshots behind a small interface with in-memory and Redis backed
// implementations. The engine writes runtime transitions through to the
// configured Storage; the snapshot manager uses it as its durability seam.
package storage

import (
	"context"
	"errors"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
)

// Not-found sentinels. Callers distinguish absence from infrastructure
// failures by errors.Is against these.
var (
	ErrSpecNotFound     = errors.New("dag spec not found")
	ErrRunNotFound      = errors.New("workflow run not found")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Storage defines the interface for persisting and retrieving specs, run
// records and snapshots.
type Storage interface {
	// SaveSpec saves a DAG spec definition.
	SaveSpec(ctx context.Context, spec graph.DAGSpec) error

	// GetSpec retrieves a DAG spec by ID.
	GetSpec(ctx context.Context, id string) (graph.DAGSpec, error)

	// SaveRun saves a workflow run record.
	SaveRun(ctx context.Context, run RunRecord) error

	// GetRun retrieves a workflow run record by ID.
	GetRun(ctx context.Context, id string) (RunRecord, error)

	// SaveSnapshot saves a system snapshot.
	SaveSnapshot(ctx context.Context, snap SnapshotRecord) error

	// GetSnapshot retrieves a system snapshot by ID.
	GetSnapshot(ctx context.Context, id string) (SnapshotRecord, error)
}

// withContext is a standalone generic helper function.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}
