package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewEvent(t *testing.T) {
	ev := NewEvent("status.changed", "engine", map[string]any{"state": "running"})

	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "status.changed", ev.Type)
	assert.Equal(t, "engine", ev.Source)
	assert.Equal(t, "running", ev.Payload["state"])
	assert.WithinDuration(t, time.Now().UTC(), ev.Timestamp, time.Second)
}

func TestNewEventUniqueIDs(t *testing.T) {
	a := NewEvent("x", "", nil)
	b := NewEvent("x", "", nil)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewActionEvent(t *testing.T) {
	ev := NewActionEvent("orchestrator", "compile", map[string]any{"target": "all"})
	assert.Equal(t, "compile", ev.Type)
	assert.Equal(t, "orchestrator", ev.Source)
	assert.Equal(t, "all", ev.Payload["target"])
}

func TestUnixSeconds(t *testing.T) {
	ev := NewEvent("x", "", nil)
	assert.InDelta(t, float64(ev.Timestamp.UnixNano())/1e9, ev.UnixSeconds(), 0.0001)
}
