package graph

import (
	"sort"
	"time"
)

// NodeType categorizes a node's role in the graph.
type NodeType string

// Node types.
const (
	NodeTask     NodeType = "task"
	NodeDecision NodeType = "decision"
	NodeMerge    NodeType = "merge"
)

// EdgeType categorizes an advisory edge.
type EdgeType string

// Edge types. Conditional edges carry an expression under
// Metadata["condition"] evaluated against the source node's outcome.
const (
	EdgeSuccess     EdgeType = "success"
	EdgeFailure     EdgeType = "failure"
	EdgeConditional EdgeType = "conditional"
)

// Node is a single unit of work in a DAG. Identity is the ID field, unique
// within a spec. Dependencies lists the node ids that must reach a terminal
// successful state before this node becomes eligible.
type Node struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         NodeType       `json:"type"`
	TaskType     string         `json:"task_type,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Edge is an advisory directional link between two nodes used for routing
// and labeling. Edges never override the ordering derived from Dependencies.
type Edge struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Type     EdgeType       `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FailureStrategy selects how the engine reacts once the failure threshold
// is breached.
type FailureStrategy string

// Failure strategies.
const (
	StrategyStop       FailureStrategy = "stop"
	StrategyContinue   FailureStrategy = "continue"
	StrategyCompensate FailureStrategy = "compensate"
)

// ExecutionPolicy bounds the scheduling of one DAG run.
type ExecutionPolicy struct {
	MaxConcurrency   int           `json:"max_concurrency"`
	Timeout          time.Duration `json:"timeout,omitempty"`
	RetryAttempts    int           `json:"retry_attempts"`
	FailureThreshold int           `json:"failure_threshold"`
}

// FailureHandling configures the reaction to terminal node failures.
type FailureHandling struct {
	Strategy             FailureStrategy `json:"strategy"`
	CompensationTasks    []string        `json:"compensation_tasks,omitempty"`
	NotificationChannels []string        `json:"notification_channels,omitempty"`
}

// DAGSpec is the immutable description of a DAG: the node arena keyed by id,
// advisory edges keyed by id, and the execution/failure policies for runs of
// this spec. Specs carry no runtime state.
type DAGSpec struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Version         string          `json:"version,omitempty"`
	Nodes           map[string]Node `json:"nodes"`
	Edges           map[string]Edge `json:"edges,omitempty"`
	ExecutionPolicy ExecutionPolicy `json:"execution_policy"`
	FailureHandling FailureHandling `json:"failure_handling"`
}

// NodeIDs returns the spec's node ids in ascending order. Sorting keeps every
// traversal over the arena deterministic.
func (s *DAGSpec) NodeIDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns, for every node id, the ids of nodes that depend on it.
// The reverse adjacency is derived from Dependencies only.
func (s *DAGSpec) Dependents() map[string][]string {
	out := make(map[string][]string, len(s.Nodes))
	for _, id := range s.NodeIDs() {
		for _, dep := range s.Nodes[id].Dependencies {
			out[dep] = append(out[dep], id)
		}
	}
	return out
}

// EdgesFrom returns the advisory edges whose source is the given node id,
// ordered by edge id.
func (s *DAGSpec) EdgesFrom(nodeID string) []Edge {
	ids := make([]string, 0)
	for id, e := range s.Edges {
		if e.Source == nodeID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	out := make([]Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.Edges[id])
	}
	return out
}
