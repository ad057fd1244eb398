package agent

import (
	"context"
	"sync"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
)

// BaseAgent bundles the shared identity, lifecycle and interaction
// bookkeeping of a mesh participant. Embed it in concrete implementations and
// override HandleEvent to react to routed events. All exported methods are
// goroutine-safe.
type BaseAgent struct {
	id           string
	role         string
	dependencies []string

	mu           sync.Mutex
	initialized  bool
	stopped      bool
	startedAt    time.Time
	lastErr      string
	artifacts    []core.DesignArtifact
	interactions []core.Interaction
}

// NewBaseAgent constructs a BaseAgent with the given identity. Dependencies
// name the agent ids this agent expects to collaborate with; the list is
// informational.
func NewBaseAgent(id, role string, dependencies ...string) BaseAgent {
	return BaseAgent{
		id:           id,
		role:         role,
		dependencies: dependencies,
	}
}

// ID returns the agent's unique identity within the mesh.
func (b *BaseAgent) ID() string { return b.id }

// Role returns the agent's role label.
func (b *BaseAgent) Role() string { return b.role }

// Dependencies returns the declared collaborator ids.
func (b *BaseAgent) Dependencies() []string {
	return append([]string(nil), b.dependencies...)
}

// Initialize marks the agent ready. Repeated calls are no-ops.
func (b *BaseAgent) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	b.initialized = true
	b.stopped = false
	b.startedAt = time.Now()
	return nil
}

// Shutdown marks the agent stopped. Repeated calls are no-ops. Status remains
// queryable after shutdown.
func (b *BaseAgent) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	return nil
}

// Status reports the agent's current state. An agent that recorded an error
// reports StateError until the next successful initialize.
func (b *BaseAgent) Status() core.AgentStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := core.StateReady
	var detail map[string]string
	if b.lastErr != "" {
		state = core.StateError
		detail = map[string]string{"error": b.lastErr}
	}
	var uptime time.Duration
	if b.initialized && !b.startedAt.IsZero() {
		uptime = time.Since(b.startedAt)
	}
	return core.AgentStatus{State: state, Uptime: uptime, Detail: detail}
}

// HandleEvent accepts any routed event and does nothing with it. Concrete
// agents override this.
func (b *BaseAgent) HandleEvent(ctx context.Context, event core.Event) error {
	return nil
}

// ValidateSpecification accepts every specification. Concrete agents with
// domain rules override this.
func (b *BaseAgent) ValidateSpecification(ctx context.Context, spec any) core.SpecValidation {
	return core.SpecValidation{Result: true, Consensus: true}
}

// GenerateDesignArtifacts returns a copy of the artifacts recorded so far.
func (b *BaseAgent) GenerateDesignArtifacts(ctx context.Context) []core.DesignArtifact {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.DesignArtifact(nil), b.artifacts...)
}

// RecordArtifact appends a design artifact to the agent's record.
func (b *BaseAgent) RecordArtifact(artifact core.DesignArtifact) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if artifact.ID == "" {
		artifact.ID = core.NewID()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	b.artifacts = append(b.artifacts, artifact)
}

// TrackUserInteraction records an interaction for later inspection.
func (b *BaseAgent) TrackUserInteraction(interaction core.Interaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if interaction.ID == "" {
		interaction.ID = core.NewID()
	}
	if interaction.Timestamp.IsZero() {
		interaction.Timestamp = time.Now().UTC()
	}
	b.interactions = append(b.interactions, interaction)
}

// Interactions returns a copy of the recorded interactions.
func (b *BaseAgent) Interactions() []core.Interaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]core.Interaction(nil), b.interactions...)
}

// setError records a handler error surfaced through Status.
func (b *BaseAgent) setError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.lastErr = err.Error()
	} else {
		b.lastErr = ""
	}
}
