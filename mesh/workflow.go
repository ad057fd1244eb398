package mesh

import (
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/engine"
)

// Step is one unit of a cross-agent workflow: an action dispatched to a named
// agent once every listed dependency step has completed.
type Step struct {
	ID           string         `json:"id"`
	AgentID      string         `json:"agent_id"`
	Action       string         `json:"action"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Timeout      time.Duration  `json:"timeout,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RetryPolicy controls per-step retry behavior. A zero MaxAttempts means one
// attempt and no retries.
type RetryPolicy struct {
	MaxAttempts     int                    `json:"max_attempts"`
	BackoffStrategy engine.BackoffStrategy `json:"backoff_strategy,omitempty"`
	InitialDelay    time.Duration          `json:"initial_delay,omitempty"`
	MaxDelay        time.Duration          `json:"max_delay,omitempty"`
}

// Workflow describes a cross-agent workflow. Steps reference each other by id
// through Dependencies; the orchestrator derives the execution order from
// those references alone.
type Workflow struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Agents      []string      `json:"agents,omitempty"`
	Steps       []Step        `json:"steps"`
	Timeout     time.Duration `json:"timeout,omitempty"`
	RetryPolicy RetryPolicy   `json:"retry_policy,omitempty"`
}

// OrchestrationResult summarizes one OrchestrateWorkflow call. Success is
// true only when every step completed; failed steps and steps unreachable
// because a dependency failed are listed in FailedSteps.
type OrchestrationResult struct {
	Success        bool          `json:"success"`
	WorkflowID     string        `json:"workflow_id"`
	Status         string        `json:"status"`
	CompletedSteps []string      `json:"completed_steps,omitempty"`
	FailedSteps    []string      `json:"failed_steps,omitempty"`
	ExecutionTime  time.Duration `json:"execution_time"`
}

// Orchestration statuses.
const (
	OrchestrationCompleted = "completed"
	OrchestrationFailed    = "failed"
)

func (p RetryPolicy) maxAttempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	strategy := p.BackoffStrategy
	if strategy == "" {
		strategy = engine.BackoffExponential
	}
	return engine.ComputeBackoff(strategy, attempt, p.InitialDelay, p.MaxDelay)
}
