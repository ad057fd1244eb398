package graph

import (
	"container/heap"
	"fmt"
)

type stringMinHeap []string

func (h stringMinHeap) Len() int           { return len(h) }
func (h stringMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h stringMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *stringMinHeap) Push(x any)        { *h = append(*h, x.(string)) }
func (h *stringMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// ComputeExecutionOrder returns a topological ordering of the spec's node ids
// using Kahn's algorithm. When several nodes are eligible in the same step the
// ready set is drained through a min-heap on node id, so the order is fully
// deterministic. Returns an error when the spec contains a cycle.
func ComputeExecutionOrder(spec *DAGSpec) ([]string, error) {
	if spec == nil {
		return nil, fmt.Errorf("spec is nil")
	}

	ids := spec.NodeIDs()
	indeg := make(map[string]int, len(ids))
	for _, id := range ids {
		indeg[id] = len(spec.Nodes[id].Dependencies)
	}
	dependents := spec.Dependents()

	ready := &stringMinHeap{}
	heap.Init(ready)
	for _, id := range ids {
		if indeg[id] == 0 {
			heap.Push(ready, id)
		}
	}

	out := make([]string, 0, len(ids))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(string)
		out = append(out, id)
		for _, dep := range dependents[id] {
			indeg[dep]--
			if indeg[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(out) != len(ids) {
		cycle := findCycle(spec, ids)
		return nil, fmt.Errorf("circular dependency detected: %v", cycle)
	}
	return out, nil
}
