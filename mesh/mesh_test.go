package mesh

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorAMM/aiko-ryu-sub008/agent"
	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/engine"
	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/internal/testutil"
)

func TestOrchestrateWorkflowSingleStep(t *testing.T) {
	m := New()
	worker := testutil.NewStubAgent("worker")
	require.True(t, m.Registry().RegisterAgent(worker))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		ID:    "wf-1",
		Steps: []Step{{ID: "s1", AgentID: "worker", Action: "process"}},
	})

	assert.True(t, res.Success)
	assert.Equal(t, "wf-1", res.WorkflowID)
	assert.Equal(t, OrchestrationCompleted, res.Status)
	assert.Equal(t, []string{"s1"}, res.CompletedSteps)
	assert.Empty(t, res.FailedSteps)
	assert.Equal(t, []string{"process"}, worker.EventTypes())
}

func TestOrchestrateWorkflowGhostAgentFailsFast(t *testing.T) {
	m := New()

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		Steps: []Step{{ID: "s1", AgentID: "ghost", Action: "process"}},
	})

	assert.False(t, res.Success)
	assert.Equal(t, OrchestrationFailed, res.Status)
	assert.Empty(t, res.CompletedSteps)
	assert.NotEmpty(t, res.WorkflowID)
}

func TestOrchestrateWorkflowRespectsDependencies(t *testing.T) {
	m := New()
	var order atomic.Value
	order.Store([]string{})
	track := func(ctx context.Context, event core.Event) error {
		order.Store(append(order.Load().([]string), event.Type))
		return nil
	}
	require.True(t, m.Registry().RegisterAgent(agentFunc("a", track)))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		ID: "wf-deps",
		Steps: []Step{
			{ID: "second", AgentID: "a", Action: "act-second", Dependencies: []string{"first"}},
			{ID: "first", AgentID: "a", Action: "act-first"},
		},
	})

	require.True(t, res.Success)
	assert.Equal(t, []string{"act-first", "act-second"}, order.Load().([]string))
}

func TestOrchestrateWorkflowCyclicStepsFails(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		Steps: []Step{
			{ID: "s1", AgentID: "a", Action: "x", Dependencies: []string{"s2"}},
			{ID: "s2", AgentID: "a", Action: "y", Dependencies: []string{"s1"}},
		},
	})
	assert.False(t, res.Success)
	assert.Equal(t, OrchestrationFailed, res.Status)
}

func TestOrchestrateWorkflowFailurePropagates(t *testing.T) {
	m := New()
	bad := testutil.NewStubAgent("bad")
	bad.HandleErr = errors.New("refused")
	good := testutil.NewStubAgent("good")
	require.True(t, m.Registry().RegisterAgent(bad))
	require.True(t, m.Registry().RegisterAgent(good))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		ID: "wf-fail",
		Steps: []Step{
			{ID: "s1", AgentID: "bad", Action: "x"},
			{ID: "s2", AgentID: "good", Action: "y", Dependencies: []string{"s1"}},
			{ID: "s3", AgentID: "good", Action: "z"},
		},
	})

	assert.False(t, res.Success)
	assert.Equal(t, OrchestrationFailed, res.Status)
	assert.Equal(t, []string{"s3"}, res.CompletedSteps)
	assert.Equal(t, []string{"s1", "s2"}, res.FailedSteps)
}

func TestOrchestrateWorkflowRetriesSteps(t *testing.T) {
	m := New()
	var calls int32
	flaky := agentFunc("flaky", func(ctx context.Context, event core.Event) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.True(t, m.Registry().RegisterAgent(flaky))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		ID:    "wf-retry",
		Steps: []Step{{ID: "s1", AgentID: "flaky", Action: "x"}},
		RetryPolicy: RetryPolicy{
			MaxAttempts:     3,
			BackoffStrategy: engine.BackoffLinear,
			InitialDelay:    time.Millisecond,
			MaxDelay:        5 * time.Millisecond,
		},
	})

	assert.True(t, res.Success)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestOrchestrateWorkflowStepTimeoutDiscardsLateSuccess(t *testing.T) {
	m := New()
	stubborn := agentFunc("stubborn", func(ctx context.Context, event core.Event) error {
		// Ignores its context and reports success after the deadline.
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.True(t, m.Registry().RegisterAgent(stubborn))

	res := m.OrchestrateWorkflow(context.Background(), Workflow{
		ID:    "wf-slow",
		Steps: []Step{{ID: "s1", AgentID: "stubborn", Action: "x", Timeout: 20 * time.Millisecond}},
	})

	assert.False(t, res.Success)
	assert.Equal(t, OrchestrationFailed, res.Status)
	assert.Equal(t, []string{"s1"}, res.FailedSteps)
	assert.Empty(t, res.CompletedSteps)
}

func TestOrchestrateWorkflowEmptySteps(t *testing.T) {
	m := New()
	res := m.OrchestrateWorkflow(context.Background(), Workflow{ID: "wf-empty"})
	assert.False(t, res.Success)
}

func TestMeshLifecycleIdempotent(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Initialize(context.Background()))
	assert.True(t, m.Status().Initialized)

	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	status := m.Status()
	assert.True(t, status.Stopped)
	assert.Equal(t, 1, status.AgentCount)
}

func TestDAGNodesDispatchThroughRouter(t *testing.T) {
	m := New()
	worker := testutil.NewStubAgent("worker")
	require.True(t, m.Registry().RegisterAgent(worker))

	spec := &graph.DAGSpec{
		ID:   "dag-mesh",
		Name: "mesh dispatch",
		Nodes: map[string]graph.Node{
			"n1": {ID: "n1", Type: graph.NodeTask, TaskType: "transform",
				Metadata: map[string]any{"agent": "worker"}},
		},
		Edges: map[string]graph.Edge{},
	}
	_, err := m.Engine().CreateDAG(context.Background(), spec)
	require.NoError(t, err)
	require.True(t, m.Engine().StartWorkflow(context.Background(), "dag-mesh").Success)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := m.Engine().Wait(ctx, "dag-mesh")
	require.NoError(t, err)
	assert.Equal(t, engine.RunCompleted, record.Status)
	assert.Equal(t, []string{"transform"}, worker.EventTypes())
}

func agentFunc(id string, fn agent.EventFunc) core.Agent {
	return agent.NewFuncAgent(id, "worker", fn)
}
