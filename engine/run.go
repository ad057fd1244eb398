package engine

import (
	"sync"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Workflow run statuses. Completed, cancelled and failed are terminal.
const (
	RunCreated    = "created"
	RunValidating = "validating"
	RunRunning    = "running"
	RunPaused     = "paused"
	RunCompleted  = "completed"
	RunCancelled  = "cancelled"
	RunFailed     = "failed"

	// StatusUnknown is fabricated by status reads for absent ids so
	// observability calls never fail.
	StatusUnknown = "unknown"
)

// Node statuses. Succeeded, failed and skipped are terminal.
const (
	NodePending   = "pending"
	NodeRunning   = "running"
	NodeSucceeded = "succeeded"
	NodeFailed    = "failed"
	NodeSkipped   = "skipped"
)

// Task statuses used by the flat scheduler.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskSucceeded = "succeeded"
	TaskFailed    = "failed"
)

// dagRun is one live workflow run: the immutable spec plus the mutable run
// record. The mutex is the single owner of the record; the condition variable
// wakes the scheduler loop on completions and control transitions.
type dagRun struct {
	spec     *graph.DAGSpec
	mu       sync.Mutex
	cond     *sync.Cond
	record   storage.RunRecord
	inflight int
	done     chan struct{}
	finished bool
}

func newDAGRun(spec *graph.DAGSpec) *dagRun {
	now := time.Now().UnixMilli()
	r := &dagRun{
		spec: spec,
		record: storage.RunRecord{
			ID:            spec.ID,
			SpecID:        spec.ID,
			Status:        RunCreated,
			Nodes:         make(map[string]storage.NodeRecord, len(spec.Nodes)),
			EdgeDecisions: make(map[string]bool),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
		done: make(chan struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	for id := range spec.Nodes {
		r.record.Nodes[id] = storage.NodeRecord{Status: NodePending}
	}
	return r
}

// restoredRun rebuilds a run handle from a persisted record. The spec may be
// nil when it is no longer loadable; such runs stay inspectable but cannot be
// started.
func restoredRun(spec *graph.DAGSpec, record storage.RunRecord) *dagRun {
	r := &dagRun{spec: spec, record: record.Clone(), done: make(chan struct{})}
	r.cond = sync.NewCond(&r.mu)
	if isTerminalRunStatus(record.Status) {
		r.finished = true
		close(r.done)
	}
	return r
}

func isTerminalRunStatus(status string) bool {
	switch status {
	case RunCompleted, RunCancelled, RunFailed:
		return true
	}
	return false
}

func isTerminalNodeStatus(status string) bool {
	switch status {
	case NodeSucceeded, NodeFailed, NodeSkipped:
		return true
	}
	return false
}

// touchLocked bumps the record's update timestamp. Caller holds r.mu.
func (r *dagRun) touchLocked() {
	r.record.UpdatedAt = time.Now().UnixMilli()
}

// finishLocked marks the run terminal and releases waiters. Caller holds r.mu.
func (r *dagRun) finishLocked(status string) {
	r.record.Status = status
	r.touchLocked()
	if !r.finished {
		r.finished = true
		close(r.done)
	}
	r.cond.Broadcast()
}
