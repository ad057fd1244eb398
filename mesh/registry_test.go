package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorAMM/aiko-ryu-sub008/internal/testutil"
)

func TestRegisterAgentIdempotentRejection(t *testing.T) {
	r := NewRegistry(nil)

	first := testutil.NewStubAgent("a1")
	assert.True(t, r.RegisterAgent(first))
	assert.Equal(t, 1, r.Count())

	// Same id again: rejected, original handle stays.
	second := testutil.NewStubAgent("a1")
	assert.False(t, r.RegisterAgent(second))
	assert.Equal(t, 1, r.Count())
	assert.Same(t, first, r.GetAgent("a1").(*testutil.StubAgent))
}

func TestRegisterAgentRejectsNilAndEmptyID(t *testing.T) {
	r := NewRegistry(nil)

	assert.False(t, r.RegisterAgent(nil))
	assert.False(t, r.RegisterAgent(testutil.NewStubAgent("")))
	assert.Equal(t, 0, r.Count())
}

func TestUnregisterAgent(t *testing.T) {
	r := NewRegistry(nil)
	require.True(t, r.RegisterAgent(testutil.NewStubAgent("a1")))

	assert.True(t, r.UnregisterAgent("a1"))
	assert.False(t, r.UnregisterAgent("a1"))
	assert.Nil(t, r.GetAgent("a1"))
}

func TestAllAgentsReturnsCopy(t *testing.T) {
	r := NewRegistry(nil)
	require.True(t, r.RegisterAgent(testutil.NewStubAgent("a1")))

	view := r.AllAgents()
	delete(view, "a1")
	assert.Equal(t, 1, r.Count())
}

func TestSummariesSortedByID(t *testing.T) {
	r := NewRegistry(nil)
	require.True(t, r.RegisterAgent(testutil.NewStubAgent("b")))
	require.True(t, r.RegisterAgent(testutil.NewStubAgent("a")))
	require.True(t, r.RegisterAgent(testutil.NewStubAgent("c")))

	summaries := r.Summaries()
	require.Len(t, summaries, 3)
	assert.Equal(t, "a", summaries[0].ID)
	assert.Equal(t, "b", summaries[1].ID)
	assert.Equal(t, "c", summaries[2].ID)
	assert.Equal(t, "stub", summaries[0].Role)
}
