package mesh

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorAMM/aiko-ryu-sub008/engine"
	"github.com/VictorAMM/aiko-ryu-sub008/internal/testutil"
)

func registryIDs(r *Registry) []string {
	ids := make([]string, 0)
	for id := range r.AllAgents() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func TestSnapshotThenRestoreIsNoOp(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("b")))
	m.Router().SubscribeToEvents("a", []string{"alerts"})

	snap, err := m.CreateSystemSnapshot(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, snap.ID)
	require.False(t, snap.Timestamp.IsZero())

	before := registryIDs(m.Registry())
	res := m.RestoreSystemSnapshot(context.Background(), snap.ID)
	require.True(t, res.Success)
	assert.Equal(t, before, registryIDs(m.Registry()))
	assert.Equal(t, []string{"alerts"}, m.Router().Subscriptions()["a"])
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))

	snap, err := m.CreateSystemSnapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Agents, 1)

	// Registry changes after the fact must not show up in the snapshot.
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("late")))
	assert.Len(t, snap.Agents, 1)
}

func TestRestoreUnknownSnapshotFails(t *testing.T) {
	m := New()

	res := m.RestoreSystemSnapshot(context.Background(), "ghost")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unknown snapshot")
}

func TestRestoreDropsAgentsRegisteredAfterSnapshot(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))

	snap, err := m.CreateSystemSnapshot(context.Background())
	require.NoError(t, err)

	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("late")))
	res := m.RestoreSystemSnapshot(context.Background(), snap.ID)
	require.True(t, res.Success)
	assert.Equal(t, []string{"a"}, registryIDs(m.Registry()))
}

func TestRestoreFailsWhenAgentHandleGone(t *testing.T) {
	m := New()
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("a")))
	require.True(t, m.Registry().RegisterAgent(testutil.NewStubAgent("b")))

	snap, err := m.CreateSystemSnapshot(context.Background())
	require.NoError(t, err)

	require.True(t, m.Registry().UnregisterAgent("b"))
	res := m.RestoreSystemSnapshot(context.Background(), snap.ID)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no longer available")

	// Nothing was mutated by the failed restore.
	assert.Equal(t, []string{"a"}, registryIDs(m.Registry()))
}

func TestSnapshotCapturesTasksAndRuns(t *testing.T) {
	m := New()
	taskID := m.Engine().Scheduler().ScheduleTask(engine.Task{Type: "audit"})

	snap, err := m.CreateSystemSnapshot(context.Background())
	require.NoError(t, err)
	require.Contains(t, snap.Tasks, taskID)
}
