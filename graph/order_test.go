package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(order []string, id string) int {
	for i, v := range order {
		if v == id {
			return i
		}
	}
	return -1
}

func TestComputeExecutionOrderRespectsDependencies(t *testing.T) {
	spec := specOf(
		Node{ID: "build"},
		Node{ID: "test", Dependencies: []string{"build"}},
		Node{ID: "lint", Dependencies: []string{"build"}},
		Node{ID: "release", Dependencies: []string{"test", "lint"}},
	)

	order, err := ComputeExecutionOrder(spec)
	require.NoError(t, err)
	require.Len(t, order, 4)

	for _, id := range spec.NodeIDs() {
		for _, dep := range spec.Nodes[id].Dependencies {
			assert.Less(t, indexOf(order, dep), indexOf(order, id),
				"%s must appear after its dependency %s", id, dep)
		}
	}
}

func TestComputeExecutionOrderTieBreaksByID(t *testing.T) {
	spec := specOf(Node{ID: "c"}, Node{ID: "a"}, Node{ID: "b"})

	order, err := ComputeExecutionOrder(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestComputeExecutionOrderCycle(t *testing.T) {
	spec := specOf(
		Node{ID: "a", Dependencies: []string{"b"}},
		Node{ID: "b", Dependencies: []string{"a"}},
	)

	_, err := ComputeExecutionOrder(spec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circular")
}

func TestComputeExecutionOrderNil(t *testing.T) {
	_, err := ComputeExecutionOrder(nil)
	assert.Error(t, err)
}
