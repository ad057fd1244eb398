package mesh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Snapshot is a point-in-time, deep copied view of the coordination domain:
// registry membership, workflow run records, scheduled task records and
// broadcast subscriptions. Mutations after the snapshot never affect it.
type Snapshot = storage.SnapshotRecord

// RestoreResult is the structured outcome of RestoreSystemSnapshot. Restore
// never partially applies: on failure the live state is untouched.
type RestoreResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CreateSystemSnapshot captures the current mesh state by value and persists
// it to the engine's storage backend. The returned snapshot is independent of
// live state.
func (m *Mesh) CreateSystemSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := Snapshot{
		ID:            core.NewID(),
		Timestamp:     time.Now().UTC(),
		Agents:        m.registry.Summaries(),
		Runs:          m.engine.ExportRuns(),
		Tasks:         m.engine.Scheduler().ExportTasks(),
		Subscriptions: m.router.Subscriptions(),
	}

	if err := m.storage.SaveSnapshot(ctx, snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	m.logger.Info("snapshot created", "snapshot_id", snap.ID,
		"agents", len(snap.Agents), "runs", len(snap.Runs), "tasks", len(snap.Tasks))
	out := snap.Clone()
	return &out, nil
}

// RestoreSystemSnapshot replaces live mesh state with the named snapshot's
// contents. The swap is all-or-nothing: an unknown snapshot id, or a snapshot
// agent whose live handle no longer exists, fails the restore without
// mutating anything. Agents registered after the snapshot are dropped from
// the registry; agent handles themselves are not reconstructed, only
// membership is restored.
func (m *Mesh) RestoreSystemSnapshot(ctx context.Context, snapshotID string) RestoreResult {
	snap, err := m.storage.GetSnapshot(ctx, snapshotID)
	if err != nil {
		if errors.Is(err, storage.ErrSnapshotNotFound) {
			return RestoreResult{Success: false, Error: "unknown snapshot: " + snapshotID}
		}
		return RestoreResult{Success: false, Error: err.Error()}
	}

	membership := make(map[string]core.Agent, len(snap.Agents))
	for _, summary := range snap.Agents {
		a := m.registry.GetAgent(summary.ID)
		if a == nil {
			return RestoreResult{Success: false,
				Error: "agent handle no longer available: " + summary.ID}
		}
		membership[summary.ID] = a
	}

	m.registry.replaceMembership(membership)
	m.engine.RestoreRuns(ctx, snap.Runs)
	m.engine.Scheduler().RestoreTasks(snap.Tasks)
	m.router.restoreSubscriptions(snap.Subscriptions)

	m.logger.Info("snapshot restored", "snapshot_id", snapshotID, "agents", len(membership))
	return RestoreResult{Success: true}
}
