package graph

// Resolution is the outcome of resolving a flat dependency list. On success
// ResolvedDependencies holds the distinct ids in input order and
// ExecutionOrder the order to run them in. On failure CircularDependencies
// names the ids whose repetition signalled a cycle.
type Resolution struct {
	Success              bool     `json:"success"`
	ResolvedDependencies []string `json:"resolved_dependencies,omitempty"`
	ExecutionOrder       []string `json:"execution_order,omitempty"`
	CircularDependencies []string `json:"circular_dependencies,omitempty"`
}

// ResolveDependencies treats ids as a flat precedence list: each entry must
// run after the ones before it. Repetition of an id already on the resolution
// path signals a cycle by calling convention, so a list containing the same
// id twice resolves as circular.
//
// This is a standalone utility independent of a full DAG, shared by the
// workflow engine and by ad-hoc callers with bare dependency sets.
func ResolveDependencies(ids []string) Resolution {
	seen := make(map[string]struct{}, len(ids))
	resolved := make([]string, 0, len(ids))
	var circular []string

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			circular = append(circular, id)
			continue
		}
		seen[id] = struct{}{}
		resolved = append(resolved, id)
	}

	if len(circular) > 0 {
		return Resolution{Success: false, CircularDependencies: circular}
	}

	order := append([]string(nil), resolved...)
	return Resolution{Success: true, ResolvedDependencies: resolved, ExecutionOrder: order}
}
