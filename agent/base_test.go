package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
)

func TestBaseAgentIdentity(t *testing.T) {
	b := NewBaseAgent("validator-1", "validator", "optimizer-1")

	assert.Equal(t, "validator-1", b.ID())
	assert.Equal(t, "validator", b.Role())
	assert.Equal(t, []string{"optimizer-1"}, b.Dependencies())

	// The returned slice is a copy.
	deps := b.Dependencies()
	deps[0] = "mutated"
	assert.Equal(t, []string{"optimizer-1"}, b.Dependencies())
}

func TestBaseAgentLifecycleIdempotent(t *testing.T) {
	b := NewBaseAgent("a1", "worker")
	ctx := context.Background()

	require.NoError(t, b.Initialize(ctx))
	require.NoError(t, b.Initialize(ctx))
	assert.Equal(t, core.StateReady, b.Status().State)

	require.NoError(t, b.Shutdown(ctx))
	require.NoError(t, b.Shutdown(ctx))

	// Status stays queryable after shutdown.
	assert.Equal(t, core.StateReady, b.Status().State)
}

func TestBaseAgentArtifactsAndInteractions(t *testing.T) {
	b := NewBaseAgent("a1", "worker")

	b.RecordArtifact(core.DesignArtifact{Kind: "adr", Content: "use a queue"})
	artifacts := b.GenerateDesignArtifacts(context.Background())
	require.Len(t, artifacts, 1)
	assert.NotEmpty(t, artifacts[0].ID)
	assert.False(t, artifacts[0].CreatedAt.IsZero())

	b.TrackUserInteraction(core.Interaction{Kind: "approval"})
	interactions := b.Interactions()
	require.Len(t, interactions, 1)
	assert.NotEmpty(t, interactions[0].ID)
}

func TestFuncAgentHandlesEvents(t *testing.T) {
	var seen []string
	a := NewFuncAgent("echo", "worker", func(ctx context.Context, event core.Event) error {
		seen = append(seen, event.Type)
		return nil
	})

	err := a.HandleEvent(context.Background(), core.NewEvent("ping", "test", nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"ping"}, seen)
	assert.Equal(t, core.StateReady, a.Status().State)
}

func TestFuncAgentErrorSurfacesInStatus(t *testing.T) {
	a := NewFuncAgent("flaky", "worker", func(ctx context.Context, event core.Event) error {
		return errors.New("boom")
	})

	err := a.HandleEvent(context.Background(), core.NewEvent("ping", "test", nil))
	require.Error(t, err)
	status := a.Status()
	assert.Equal(t, core.StateError, status.State)
	assert.Equal(t, "boom", status.Detail["error"])
}

func TestFuncAgentNilHandler(t *testing.T) {
	a := NewFuncAgent("noop", "worker", nil)
	assert.NoError(t, a.HandleEvent(context.Background(), core.NewEvent("ping", "test", nil)))
}
