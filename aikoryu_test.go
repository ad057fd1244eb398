package aikoryu

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorAMM/aiko-ryu-sub008/agent"
	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/engine"
	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/mesh"
)

func TestSystemEndToEnd(t *testing.T) {
	sys := New()

	var handled []string
	worker := agent.NewFuncAgent("worker", "processor", func(ctx context.Context, event core.Event) error {
		handled = append(handled, event.Type)
		return nil
	})
	require.True(t, sys.RegisterAgent(worker))
	require.NoError(t, sys.Initialize(context.Background()))

	res := sys.OrchestrateWorkflow(context.Background(), mesh.Workflow{
		ID:    "wf-e2e",
		Steps: []mesh.Step{{ID: "s1", AgentID: "worker", Action: "process"}},
	})
	require.True(t, res.Success)
	assert.Equal(t, []string{"process"}, handled)

	require.NoError(t, sys.Shutdown(context.Background()))
	require.NoError(t, sys.Shutdown(context.Background()))
}

func TestSystemRunsDAGWorkflows(t *testing.T) {
	sys := New()

	var ran bool
	sys.RegisterHandler("compute", func(ctx context.Context, node graph.Node) (any, error) {
		ran = true
		return 42, nil
	})

	spec := &graph.DAGSpec{
		ID:    "dag-facade",
		Name:  "facade",
		Nodes: map[string]graph.Node{"n1": {ID: "n1", Type: graph.NodeTask, TaskType: "compute"}},
		Edges: map[string]graph.Edge{},
	}
	_, err := sys.CreateDAG(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, sys.StartWorkflow(context.Background(), "dag-facade").Success)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := sys.Engine().Wait(ctx, "dag-facade")
	require.NoError(t, err)
	assert.Equal(t, engine.RunCompleted, record.Status)
	assert.True(t, ran)
}
