package graph

import (
	"fmt"
	"sort"
)

// ValidationResult is the structured outcome of a spec validation. Expected
// failure modes are reported through Result/Reason, never raised.
type ValidationResult struct {
	Result bool   `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// Validate checks a spec for structural soundness:
//
//  1. every node id is unique and consistent with its arena key
//  2. every dependency entry and edge endpoint resolves to an existing node
//  3. the dependency relation is acyclic
//
// Cycle detection is a depth-first traversal with three coloring
// (unvisited/in-progress/done) over the id arena; meeting an in-progress node
// on the current path proves a cycle, and the reason names a node on it.
func Validate(spec *DAGSpec) ValidationResult {
	if spec == nil {
		return ValidationResult{Result: false, Reason: "spec is nil"}
	}
	if spec.ID == "" {
		return ValidationResult{Result: false, Reason: "spec id is empty"}
	}
	if len(spec.Nodes) == 0 {
		return ValidationResult{Result: false, Reason: "spec has no nodes"}
	}

	ids := spec.NodeIDs()
	for _, id := range ids {
		node := spec.Nodes[id]
		if node.ID == "" {
			return ValidationResult{Result: false, Reason: fmt.Sprintf("node keyed %q has empty id", id)}
		}
		if node.ID != id {
			return ValidationResult{Result: false, Reason: fmt.Sprintf("node id %q does not match arena key %q", node.ID, id)}
		}
		for _, dep := range node.Dependencies {
			if _, ok := spec.Nodes[dep]; !ok {
				return ValidationResult{Result: false, Reason: fmt.Sprintf("node %q depends on unknown node %q", id, dep)}
			}
			if dep == id {
				return ValidationResult{Result: false, Reason: fmt.Sprintf("circular dependency: node %q depends on itself", id)}
			}
		}
	}

	edgeIDs := make([]string, 0, len(spec.Edges))
	for id := range spec.Edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)
	for _, id := range edgeIDs {
		edge := spec.Edges[id]
		if _, ok := spec.Nodes[edge.Source]; !ok {
			return ValidationResult{Result: false, Reason: fmt.Sprintf("edge %q references unknown source node %q", id, edge.Source)}
		}
		if _, ok := spec.Nodes[edge.Target]; !ok {
			return ValidationResult{Result: false, Reason: fmt.Sprintf("edge %q references unknown target node %q", id, edge.Target)}
		}
	}

	if cycle := findCycle(spec, ids); len(cycle) > 0 {
		return ValidationResult{Result: false, Reason: fmt.Sprintf("circular dependency detected: %v", cycle)}
	}

	return ValidationResult{Result: true}
}

// Traversal colors for cycle detection.
const (
	colorWhite = 0 // unvisited
	colorGray  = 1 // in progress on the current path
	colorBlack = 2 // done
)

// findCycle returns the node ids of one dependency cycle, or nil when the
// spec is acyclic. Traversal order is the sorted id order, so the witness
// cycle is stable for a given spec.
func findCycle(spec *DAGSpec, ids []string) []string {
	color := make(map[string]int, len(ids))
	parent := make(map[string]string, len(ids))

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		color[id] = colorGray
		deps := append([]string(nil), spec.Nodes[id].Dependencies...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch color[dep] {
			case colorWhite:
				parent[dep] = id
				if dfs(dep) {
					return true
				}
			case colorGray:
				// Back edge id -> dep. Reconstruct dep ... id -> dep.
				cycle = append(cycle, dep)
				cur := id
				for cur != "" && cur != dep {
					cycle = append(cycle, cur)
					cur = parent[cur]
				}
				cycle = append(cycle, dep)
				return true
			}
		}
		color[id] = colorBlack
		return false
	}

	for _, id := range ids {
		if color[id] != colorWhite {
			continue
		}
		if dfs(id) {
			break
		}
	}

	if len(cycle) == 0 {
		return nil
	}

	// The walk collected the cycle backwards; reverse it for reporting.
	out := make([]string, len(cycle))
	for i := range cycle {
		out[i] = cycle[len(cycle)-1-i]
	}
	return out
}
