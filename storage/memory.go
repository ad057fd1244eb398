package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// It is the default backend; everything lives in process-local maps guarded
// by one RWMutex.
type MemoryStorage struct {
	specs     map[string]graph.DAGSpec
	runs      map[string]RunRecord
	snapshots map[string]SnapshotRecord
	mu        sync.RWMutex
}

// NewMemoryStorage creates a new MemoryStorage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		specs:     make(map[string]graph.DAGSpec),
		runs:      make(map[string]RunRecord),
		snapshots: make(map[string]SnapshotRecord),
	}
}

// getItem is a standalone generic helper function.
func getItem[T any](ctx context.Context, mu *sync.RWMutex, m map[string]T, id string, errNotFound error) (T, error) {
	return withContext(ctx, func() (T, error) {
		mu.RLock()
		defer mu.RUnlock()
		item, ok := m[id]
		if !ok {
			var zero T
			return zero, fmt.Errorf("%w: id=%s", errNotFound, id)
		}
		return item, nil
	})
}

// SaveSpec saves a DAG spec to memory.
func (s *MemoryStorage) SaveSpec(ctx context.Context, spec graph.DAGSpec) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.specs[spec.ID] = spec
		return struct{}{}, nil
	})
	return err
}

// GetSpec retrieves a DAG spec from memory.
func (s *MemoryStorage) GetSpec(ctx context.Context, id string) (graph.DAGSpec, error) {
	return getItem(ctx, &s.mu, s.specs, id, ErrSpecNotFound)
}

// SaveRun saves a workflow run record to memory. The record is cloned so
// later caller mutations cannot leak into the store.
func (s *MemoryStorage) SaveRun(ctx context.Context, run RunRecord) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.runs[run.ID] = run.Clone()
		return struct{}{}, nil
	})
	return err
}

// GetRun retrieves a workflow run record from memory.
func (s *MemoryStorage) GetRun(ctx context.Context, id string) (RunRecord, error) {
	run, err := getItem(ctx, &s.mu, s.runs, id, ErrRunNotFound)
	if err != nil {
		return RunRecord{}, err
	}
	return run.Clone(), nil
}

// SaveSnapshot saves a snapshot to memory.
func (s *MemoryStorage) SaveSnapshot(ctx context.Context, snap SnapshotRecord) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.snapshots[snap.ID] = snap.Clone()
		return struct{}{}, nil
	})
	return err
}

// GetSnapshot retrieves a snapshot from memory.
func (s *MemoryStorage) GetSnapshot(ctx context.Context, id string) (SnapshotRecord, error) {
	snap, err := getItem(ctx, &s.mu, s.snapshots, id, ErrSnapshotNotFound)
	if err != nil {
		return SnapshotRecord{}, err
	}
	return snap.Clone(), nil
}

// ClearTerminalRuns removes completed, cancelled or failed run records.
func (s *MemoryStorage) ClearTerminalRuns(ctx context.Context) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, run := range s.runs {
			switch run.Status {
			case "completed", "cancelled", "failed":
				delete(s.runs, id)
			}
		}
		return struct{}{}, nil
	})
	return err
}
