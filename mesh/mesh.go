package mesh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/engine"
	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/logging"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Options configures a Mesh.
type Options struct {
	// Engine executes DAG workflows and scheduled tasks. Defaults to a new
	// engine with in-memory storage.
	Engine *engine.Engine

	// Logger receives structured coordination logs. Defaults to no-op.
	Logger logging.Logger
}

// Mesh composes the agent registry, the event router and the workflow engine
// into one coordination domain. It wires the engine's dispatcher so DAG nodes
// addressed to an agent are delivered through the router.
type Mesh struct {
	registry *Registry
	router   *Router
	engine   *engine.Engine
	storage  storage.Storage
	logger   logging.Logger

	mu          sync.Mutex
	initialized bool
	stopped     bool
}

// Status is a point-in-time view of the mesh lifecycle. It stays available
// after shutdown.
type Status struct {
	Initialized bool `json:"initialized"`
	Stopped     bool `json:"stopped"`
	AgentCount  int  `json:"agent_count"`
}

// New creates a Mesh with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Mesh {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Engine == nil {
		opts.Engine = engine.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry := NewRegistry(opts.Logger)
	router := NewRouter(registry, opts.Logger)

	m := &Mesh{
		registry: registry,
		router:   router,
		engine:   opts.Engine,
		storage:  opts.Engine.Storage(),
		logger:   opts.Logger,
	}
	m.engine.SetDispatcher(&agentDispatcher{router: router})
	return m
}

// Registry returns the mesh's agent registry.
func (m *Mesh) Registry() *Registry { return m.registry }

// Router returns the mesh's event router.
func (m *Mesh) Router() *Router { return m.router }

// Engine returns the mesh's workflow engine.
func (m *Mesh) Engine() *engine.Engine { return m.engine }

// Initialize brings every registered agent up, in id order. Calling it again
// after a successful initialization is a no-op.
func (m *Mesh) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return nil
	}

	for _, id := range m.agentIDs() {
		a := m.registry.GetAgent(id)
		if a == nil {
			continue
		}
		if err := a.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize agent %s: %w", id, err)
		}
	}
	m.initialized = true
	m.logger.Info("mesh initialized", "agents", m.registry.Count())
	return nil
}

// Shutdown stops every registered agent, in id order. Calling it again is a
// no-op. The mesh remains queryable after shutdown; only agent lifecycles are
// affected.
func (m *Mesh) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}

	var firstErr error
	for _, id := range m.agentIDs() {
		a := m.registry.GetAgent(id)
		if a == nil {
			continue
		}
		if err := a.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shutdown agent %s: %w", id, err)
		}
	}
	m.stopped = true
	m.logger.Info("mesh stopped", "agents", m.registry.Count())
	return firstErr
}

// Status reports the mesh lifecycle state.
func (m *Mesh) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Initialized: m.initialized,
		Stopped:     m.stopped,
		AgentCount:  m.registry.Count(),
	}
}

// OrchestrateWorkflow runs a cross-agent workflow. It fails fast when any
// step names an unregistered agent, resolves step dependencies the same way
// the DAG engine resolves node dependencies, then executes steps in waves:
// every step whose dependencies have completed runs concurrently, each step
// retried per the workflow's retry policy and dispatched through the router
// as an action event. Steps left unreachable by an upstream failure are
// reported as failed.
func (m *Mesh) OrchestrateWorkflow(ctx context.Context, wf Workflow) OrchestrationResult {
	start := time.Now()
	if wf.ID == "" {
		wf.ID = core.NewID()
	}
	result := OrchestrationResult{WorkflowID: wf.ID, Status: OrchestrationFailed}

	if len(wf.Steps) == 0 {
		result.ExecutionTime = time.Since(start)
		return result
	}
	for _, step := range wf.Steps {
		if m.registry.GetAgent(step.AgentID) == nil {
			m.logger.Warn("workflow names unregistered agent",
				"workflow_id", wf.ID, "step_id", step.ID, "agent_id", step.AgentID)
			result.ExecutionTime = time.Since(start)
			return result
		}
	}

	spec := stepGraph(wf)
	if res := graph.Validate(spec); !res.Result {
		m.logger.Warn("workflow step graph invalid", "workflow_id", wf.ID, "reason", res.Reason)
		result.ExecutionTime = time.Since(start)
		return result
	}

	if wf.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wf.Timeout)
		defer cancel()
	}

	steps := make(map[string]Step, len(wf.Steps))
	for _, step := range wf.Steps {
		steps[step.ID] = step
	}

	completed := make(map[string]bool)
	failed := make(map[string]bool)
	for len(completed)+len(failed) < len(steps) {
		wave := nextWave(steps, completed, failed)
		if len(wave) == 0 {
			// Remaining steps are unreachable behind a failed dependency.
			for id := range steps {
				if !completed[id] && !failed[id] {
					failed[id] = true
				}
			}
			break
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, id := range wave {
			wg.Add(1)
			go func(step Step) {
				defer wg.Done()
				err := m.executeStep(ctx, wf, step)
				mu.Lock()
				if err != nil {
					failed[step.ID] = true
				} else {
					completed[step.ID] = true
				}
				mu.Unlock()
			}(steps[id])
		}
		wg.Wait()
	}

	result.CompletedSteps = sortedKeys(completed)
	result.FailedSteps = sortedKeys(failed)
	result.Success = len(failed) == 0
	if result.Success {
		result.Status = OrchestrationCompleted
	}
	result.ExecutionTime = time.Since(start)
	m.logger.Info("workflow orchestrated", "workflow_id", wf.ID, "status", result.Status,
		"completed", len(result.CompletedSteps), "failed", len(result.FailedSteps),
		"duration", result.ExecutionTime)
	return result
}

// executeStep dispatches one step through the router, retrying per the
// workflow retry policy with backoff between attempts.
func (m *Mesh) executeStep(ctx context.Context, wf Workflow, step Step) error {
	maxAttempts := wf.RetryPolicy.maxAttempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stepCtx := ctx
		cancel := func() {}
		if step.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		}

		event := core.NewActionEvent(wf.ID, step.Action, step.Parameters)
		res := m.routeWithDeadline(stepCtx, event, step.AgentID)
		cancel()
		if res.Success {
			return nil
		}
		lastErr = fmt.Errorf("step %s attempt %d: %s", step.ID, attempt, res.Error)
		m.logger.Warn("workflow step attempt failed",
			"workflow_id", wf.ID, "step_id", step.ID, "attempt", attempt, "error", res.Error)

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wf.RetryPolicy.delay(attempt)):
		}
	}
	return lastErr
}

// routeWithDeadline races the delivery against the context. When the deadline
// fires first the attempt is counted as failed and the late routing result is
// discarded, so an agent that ignores its context cannot stall the wave.
func (m *Mesh) routeWithDeadline(ctx context.Context, event core.Event, targetID string) RouteResult {
	if ctx.Done() == nil {
		return m.router.RouteEvent(ctx, event, targetID)
	}
	ch := make(chan RouteResult, 1)
	go func() { ch <- m.router.RouteEvent(ctx, event, targetID) }()
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		return RouteResult{Success: false, RoutedTo: targetID, Error: ctx.Err().Error()}
	}
}

func (m *Mesh) agentIDs() []string {
	agents := m.registry.AllAgents()
	ids := make([]string, 0, len(agents))
	for id := range agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// stepGraph expresses workflow steps as a node arena so step dependency
// resolution shares the DAG validator.
func stepGraph(wf Workflow) *graph.DAGSpec {
	spec := &graph.DAGSpec{
		ID:    wf.ID,
		Name:  wf.Name,
		Nodes: make(map[string]graph.Node, len(wf.Steps)),
		Edges: map[string]graph.Edge{},
	}
	for _, step := range wf.Steps {
		spec.Nodes[step.ID] = graph.Node{
			ID:           step.ID,
			Name:         step.ID,
			Type:         graph.NodeTask,
			TaskType:     step.Action,
			Dependencies: step.Dependencies,
		}
	}
	return spec
}

// nextWave returns the ids of steps whose dependencies have all completed,
// sorted for deterministic dispatch order.
func nextWave(steps map[string]Step, completed, failed map[string]bool) []string {
	var wave []string
	for id, step := range steps {
		if completed[id] || failed[id] {
			continue
		}
		ready := true
		for _, dep := range step.Dependencies {
			if !completed[dep] {
				ready = false
				break
			}
		}
		if ready {
			wave = append(wave, id)
		}
	}
	sort.Strings(wave)
	return wave
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// agentDispatcher adapts the router to the engine's dispatch hook. DAG nodes
// carrying an "agent" metadata key are delivered as action events to that
// agent; the node's task type names the action.
type agentDispatcher struct {
	router *Router
}

func (d *agentDispatcher) DispatchNode(ctx context.Context, spec *graph.DAGSpec, node graph.Node) (any, error) {
	agentID, _ := node.Metadata["agent"].(string)
	if agentID == "" {
		return nil, fmt.Errorf("node %s has no agent metadata", node.ID)
	}

	action := node.TaskType
	if action == "" {
		action = node.ID
	}
	event := core.NewActionEvent(spec.ID, action, map[string]any{
		"workflow_id": spec.ID,
		"node_id":     node.ID,
	})
	res := d.router.RouteEvent(ctx, event, agentID)
	if !res.Success {
		return nil, fmt.Errorf("dispatch node %s to agent %s: %s", node.ID, agentID, res.Error)
	}
	return res, nil
}
