package core

import (
	"context"
	"time"
)

// Agent defines the uniform capability contract every mesh participant must
// implement.
//
// Agents are variants behind this single interface, never a class hierarchy:
// workflow front ends, rule engines, optimizers and the mesh itself all
// satisfy the same set of methods. Agents never hold references to each
// other; they are addressed exclusively through the mesh by ID, which keeps
// the object graph cycle free.
//
// Implementations must:
//   - Keep Initialize and Shutdown idempotent
//   - Remain query-able via Status after Shutdown (the handle stays valid)
//   - Ignore unrecognized event types in HandleEvent rather than erroring
type Agent interface {
	// ID returns the unique identity of the agent within the mesh.
	ID() string

	// Role returns a human readable role label (e.g. "validator", "optimizer").
	Role() string

	// Dependencies declares the agent ids this agent expects to collaborate
	// with. The declaration is informational; the mesh does not enforce it as
	// a startup ordering constraint.
	Dependencies() []string

	// Initialize prepares the agent for participation. Calling it more than
	// once must be a no-op.
	Initialize(ctx context.Context) error

	// Shutdown releases agent resources. Calling it more than once must be a
	// no-op, and Status must keep answering afterwards.
	Shutdown(ctx context.Context) error

	// Status reports the current lifecycle state of the agent.
	Status() AgentStatus

	// HandleEvent processes a routed or broadcast event. Unrecognized event
	// types are silently ignored. A returned error is recorded by the router
	// as a delivery failure.
	HandleEvent(ctx context.Context, event Event) error

	// ValidateSpecification reviews an arbitrary specification object and
	// reports whether the agent considers it acceptable.
	ValidateSpecification(ctx context.Context, spec any) SpecValidation

	// GenerateDesignArtifacts produces the agent's design/compliance
	// artifacts. May return an empty slice.
	GenerateDesignArtifacts(ctx context.Context) []DesignArtifact

	// TrackUserInteraction records a user interaction for audit purposes.
	// It must not fail; unsupported interactions are dropped.
	TrackUserInteraction(interaction Interaction)
}

// AgentStatus is the point-in-time lifecycle report of an agent.
type AgentStatus struct {
	State  string            `json:"state"` // "ready", "error", ...
	Uptime time.Duration     `json:"uptime"`
	Detail map[string]string `json:"detail,omitempty"`
}

// Agent lifecycle states. Shutdown intentionally reports StateReady so the
// handle remains inspectable after teardown.
const (
	StateReady = "ready"
	StateError = "error"
)

// SpecValidation is the outcome of a specification review.
type SpecValidation struct {
	Result    bool   `json:"result"`
	Consensus bool   `json:"consensus"`
	Reason    string `json:"reason,omitempty"`
}

// DesignArtifact is a single governance artifact emitted by an agent.
type DesignArtifact struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Interaction captures a user interaction handed to an agent for tracking.
type Interaction struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
