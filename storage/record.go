package storage

import "time"

// NodeRecord is the mutable execution record of one DAG node inside a run.
// Output is stored as-is and treated as immutable once recorded.
type NodeRecord struct {
	Status    string `json:"status"` // pending, running, succeeded, failed, skipped
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	Output    any    `json:"output,omitempty"`
}

// RunRecord is the serializable runtime state of one workflow run: the run
// level status, the per-node records and the advisory edge decisions.
type RunRecord struct {
	ID            string                `json:"id"`
	SpecID        string                `json:"spec_id"`
	Status        string                `json:"status"` // created, validating, running, paused, completed, cancelled, failed
	Nodes         map[string]NodeRecord `json:"nodes"`
	EdgeDecisions map[string]bool       `json:"edge_decisions,omitempty"`
	Failures      int                   `json:"failures"`
	CreatedAt     int64                 `json:"created_at"`
	UpdatedAt     int64                 `json:"updated_at"`
}

// Clone returns a deep copy of the run record. Node outputs are copied by
// reference; they are never mutated after being recorded.
func (r RunRecord) Clone() RunRecord {
	out := r
	out.Nodes = make(map[string]NodeRecord, len(r.Nodes))
	for id, n := range r.Nodes {
		out.Nodes[id] = n
	}
	if r.EdgeDecisions != nil {
		out.EdgeDecisions = make(map[string]bool, len(r.EdgeDecisions))
		for id, d := range r.EdgeDecisions {
			out.EdgeDecisions[id] = d
		}
	}
	return out
}

// TaskRecord is the serializable runtime state of one scheduled flat task.
type TaskRecord struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	Error      string         `json:"error,omitempty"`
}

// Clone returns a deep copy of the task record.
func (t TaskRecord) Clone() TaskRecord {
	out := t
	if t.Parameters != nil {
		out.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			out.Parameters[k] = v
		}
	}
	return out
}

// AgentSummary is the registry view of one agent captured in a snapshot.
type AgentSummary struct {
	ID    string `json:"id"`
	Role  string `json:"role"`
	State string `json:"state"`
}

// SnapshotRecord is a point-in-time, read-only copy of mesh state: registry
// membership, in-flight run records, scheduled tasks and subscription
// interest sets. The only externally guaranteed fields are ID and Timestamp;
// the rest of the layout is engine-defined.
type SnapshotRecord struct {
	ID            string               `json:"id"`
	Timestamp     time.Time            `json:"timestamp"`
	Agents        []AgentSummary       `json:"agents"`
	Runs          map[string]RunRecord `json:"runs,omitempty"`
	Tasks         map[string]TaskRecord `json:"tasks,omitempty"`
	Subscriptions map[string][]string  `json:"subscriptions,omitempty"`
}

// Clone returns a deep copy of the snapshot.
func (s SnapshotRecord) Clone() SnapshotRecord {
	out := s
	out.Agents = append([]AgentSummary(nil), s.Agents...)
	out.Runs = make(map[string]RunRecord, len(s.Runs))
	for id, r := range s.Runs {
		out.Runs[id] = r.Clone()
	}
	out.Tasks = make(map[string]TaskRecord, len(s.Tasks))
	for id, t := range s.Tasks {
		out.Tasks[id] = t.Clone()
	}
	out.Subscriptions = make(map[string][]string, len(s.Subscriptions))
	for id, types := range s.Subscriptions {
		out.Subscriptions[id] = append([]string(nil), types...)
	}
	return out
}
