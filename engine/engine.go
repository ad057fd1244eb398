package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/logging"
	"github.com/VictorAMM/aiko-ryu-sub008/rules"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Handler executes one node of a workflow. The returned value is recorded as
// the node's output; a returned error counts as an execution failure subject
// to retry policy.
type Handler func(ctx context.Context, node graph.Node) (any, error)

// Dispatcher is the hook through which the mesh delivers nodes addressed to
// agents. When a node carries Metadata["agent"] and a Dispatcher is
// configured, dispatch goes through it instead of the per-type handlers.
type Dispatcher interface {
	DispatchNode(ctx context.Context, spec *graph.DAGSpec, node graph.Node) (any, error)
}

// Config defines tuning parameters for the engine's scheduling behavior.
// Per-spec ExecutionPolicy values take precedence over these defaults.
type Config struct {
	// DefaultMaxConcurrency bounds concurrent node dispatches for specs that
	// do not set ExecutionPolicy.MaxConcurrency.
	DefaultMaxConcurrency int

	// DefaultRetryAttempts is the retry limit for flat scheduled tasks.
	DefaultRetryAttempts int

	// RetryBackoff is the base delay between retry attempts.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps the delay produced by the backoff policy.
	MaxRetryBackoff time.Duration
}

// DefaultConfig provides conservative defaults safe for tests and local use.
var DefaultConfig = Config{
	DefaultMaxConcurrency: 4,
	DefaultRetryAttempts:  3,
	RetryBackoff:          50 * time.Millisecond,
	MaxRetryBackoff:       5 * time.Second,
}

// Options configures an Engine instance using the functional options pattern.
// All services have in-memory defaults so a bare New() is immediately usable.
type Options struct {
	// Config contains scheduling defaults. Defaults to DefaultConfig.
	Config Config

	// Storage persists specs and run records. Defaults to in-memory storage.
	Storage storage.Storage

	// Evaluator decides conditional edge expressions. Defaults to the expr
	// based evaluator.
	Evaluator rules.Evaluator

	// Dispatcher routes agent-addressed nodes. Nil means only registered
	// handlers are consulted.
	Dispatcher Dispatcher

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger
}

// Engine owns DAG workflow runs, the scheduler loop and the flat task
// scheduler. All public methods are safe for concurrent use; the runs map is
// guarded by its own mutex and each run's record by the run's mutex.
type Engine struct {
	config     Config
	storage    storage.Storage
	evaluator  rules.Evaluator
	dispatcher Dispatcher
	logger     logging.Logger

	runs   map[string]*dagRun
	runsMu sync.RWMutex

	handlers   map[string]Handler
	handlersMu sync.RWMutex

	scheduler *TaskScheduler
}

// New creates an Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Storage:   storage.NewMemoryStorage(),
		Evaluator: rules.NewExprEvaluator(),
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := &Engine{
		config:     opts.Config,
		storage:    opts.Storage,
		evaluator:  opts.Evaluator,
		dispatcher: opts.Dispatcher,
		logger:     opts.Logger,
		runs:       make(map[string]*dagRun),
		handlers:   make(map[string]Handler),
	}
	e.scheduler = newTaskScheduler(e)
	return e
}

// RegisterHandler installs the handler executing nodes and tasks of the given
// task type. Registering an existing type replaces the previous handler.
func (e *Engine) RegisterHandler(taskType string, h Handler) {
	e.handlersMu.Lock()
	defer e.handlersMu.Unlock()
	e.handlers[taskType] = h
}

// SetDispatcher installs the agent dispatch hook. Intended to be called by
// the mesh during wiring, before any workflow starts.
func (e *Engine) SetDispatcher(d Dispatcher) { e.dispatcher = d }

// Scheduler returns the engine's flat task scheduler.
func (e *Engine) Scheduler() *TaskScheduler { return e.scheduler }

// Storage exposes the engine's persistence backend so cooperating components,
// such as the snapshot manager, share one store.
func (e *Engine) Storage() storage.Storage { return e.storage }

// handler returns the handler for a task type, or nil.
func (e *Engine) handler(taskType string) Handler {
	e.handlersMu.RLock()
	defer e.handlersMu.RUnlock()
	return e.handlers[taskType]
}

// StartResult is the structured outcome of StartWorkflow.
type StartResult struct {
	Success    bool   `json:"success"`
	WorkflowID string `json:"workflow_id"`
	Reason     string `json:"reason,omitempty"`
}

// CreateDAG registers a new DAG spec with the engine and persists it. The run
// starts in the created state; StartWorkflow validates and executes it.
// Returns the workflow id (the spec id).
func (e *Engine) CreateDAG(ctx context.Context, spec *graph.DAGSpec) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("spec is nil")
	}
	if spec.ID == "" {
		return "", fmt.Errorf("spec id is empty")
	}

	e.runsMu.Lock()
	if _, exists := e.runs[spec.ID]; exists {
		e.runsMu.Unlock()
		return "", fmt.Errorf("dag %s already exists", spec.ID)
	}
	run := newDAGRun(spec)
	e.runs[spec.ID] = run
	e.runsMu.Unlock()

	if err := e.storage.SaveSpec(ctx, *spec); err != nil {
		return "", fmt.Errorf("failed to persist spec: %w", err)
	}
	if err := e.storage.SaveRun(ctx, run.record.Clone()); err != nil {
		return "", fmt.Errorf("failed to persist run: %w", err)
	}

	e.logger.Debug("created dag", "workflow_id", spec.ID, "nodes", len(spec.Nodes))
	return spec.ID, nil
}

// StartWorkflow validates the DAG and begins the scheduler loop. The result
// is structured: an unknown id or an illegal starting state yields
// Success=false rather than an error; a validation failure transitions the
// run to failed (terminal) and also yields Success=false.
func (e *Engine) StartWorkflow(ctx context.Context, dagID string) StartResult {
	run := e.getRun(dagID)
	if run == nil {
		return StartResult{Success: false, WorkflowID: dagID, Reason: "unknown workflow"}
	}

	run.mu.Lock()
	if run.record.Status != RunCreated {
		reason := fmt.Sprintf("workflow is %s, expected %s", run.record.Status, RunCreated)
		run.mu.Unlock()
		return StartResult{Success: false, WorkflowID: dagID, Reason: reason}
	}
	if run.spec == nil {
		// Restored run whose spec was not loadable.
		spec, err := e.storage.GetSpec(ctx, run.record.SpecID)
		if err != nil {
			run.mu.Unlock()
			return StartResult{Success: false, WorkflowID: dagID, Reason: "spec unavailable"}
		}
		run.spec = &spec
	}

	run.record.Status = RunValidating
	run.touchLocked()
	e.persistLocked(run)

	if res := graph.Validate(run.spec); !res.Result {
		run.finishLocked(RunFailed)
		e.persistLocked(run)
		run.mu.Unlock()
		e.logger.Warn("validation failed", "workflow_id", dagID, "reason", res.Reason)
		return StartResult{Success: false, WorkflowID: dagID, Reason: res.Reason}
	}

	run.record.Status = RunRunning
	run.touchLocked()
	e.persistLocked(run)
	run.mu.Unlock()

	e.logger.Info("started workflow", "workflow_id", dagID)
	go e.runLoop(ctx, run)

	return StartResult{Success: true, WorkflowID: dagID}
}

// PauseWorkflow suspends scheduling of new node dispatches. In-flight
// dispatches keep running. Returns true only when the workflow exists and is
// currently running.
func (e *Engine) PauseWorkflow(id string) bool {
	run := e.getRun(id)
	if run == nil {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.record.Status != RunRunning {
		return false
	}
	run.record.Status = RunPaused
	run.touchLocked()
	e.persistLocked(run)
	run.cond.Broadcast()
	e.logger.Info("paused workflow", "workflow_id", id)
	return true
}

// ResumeWorkflow re-enables scheduling for a paused workflow. Returns true
// only when the workflow exists and is currently paused.
func (e *Engine) ResumeWorkflow(id string) bool {
	run := e.getRun(id)
	if run == nil {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	if run.record.Status != RunPaused {
		return false
	}
	run.record.Status = RunRunning
	run.touchLocked()
	e.persistLocked(run)
	run.cond.Broadcast()
	e.logger.Info("resumed workflow", "workflow_id", id)
	return true
}

// CancelWorkflow terminates a running or paused workflow. New dispatches
// stop immediately; nodes still pending or running are marked skipped, and
// the eventual results of in-flight handlers are discarded rather than
// awaited. Returns true only when the transition is legal.
func (e *Engine) CancelWorkflow(id string) bool {
	run := e.getRun(id)
	if run == nil {
		return false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	switch run.record.Status {
	case RunRunning, RunPaused:
	default:
		return false
	}
	for nodeID, rec := range run.record.Nodes {
		if rec.Status == NodePending || rec.Status == NodeRunning {
			rec.Status = NodeSkipped
			run.record.Nodes[nodeID] = rec
		}
	}
	run.finishLocked(RunCancelled)
	e.persistLocked(run)
	e.logger.Info("cancelled workflow", "workflow_id", id)
	return true
}

// GetWorkflowStatus returns the current run record for the given id. Absent
// ids yield a fabricated record with StatusUnknown so observability reads
// never fail.
func (e *Engine) GetWorkflowStatus(id string) storage.RunRecord {
	run := e.getRun(id)
	if run == nil {
		return storage.RunRecord{ID: id, Status: StatusUnknown, Nodes: map[string]storage.NodeRecord{}}
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.record.Clone()
}

// GetTaskStatus returns the runtime record of a flat scheduled task. Like
// GetWorkflowStatus it fabricates an unknown-status record for absent ids.
func (e *Engine) GetTaskStatus(taskID string) storage.TaskRecord {
	return e.scheduler.GetTaskStatus(taskID)
}

// Wait blocks until the workflow reaches a terminal status or the context is
// cancelled, and returns the final run record.
func (e *Engine) Wait(ctx context.Context, id string) (storage.RunRecord, error) {
	run := e.getRun(id)
	if run == nil {
		return storage.RunRecord{}, fmt.Errorf("unknown workflow %s", id)
	}
	select {
	case <-ctx.Done():
		return storage.RunRecord{}, ctx.Err()
	case <-run.done:
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.record.Clone(), nil
}

// ExportRuns returns deep copies of all run records, keyed by workflow id.
// Used by the snapshot manager.
func (e *Engine) ExportRuns() map[string]storage.RunRecord {
	e.runsMu.RLock()
	handles := make([]*dagRun, 0, len(e.runs))
	for _, run := range e.runs {
		handles = append(handles, run)
	}
	e.runsMu.RUnlock()

	out := make(map[string]storage.RunRecord, len(handles))
	for _, run := range handles {
		run.mu.Lock()
		out[run.record.ID] = run.record.Clone()
		run.mu.Unlock()
	}
	return out
}

// RestoreRuns replaces the engine's run state with the given records. Active
// scheduler loops are cancelled cooperatively before the swap. Specs are
// recovered from the current handles or from storage when still available.
func (e *Engine) RestoreRuns(ctx context.Context, records map[string]storage.RunRecord) {
	e.runsMu.Lock()
	old := e.runs
	e.runsMu.Unlock()

	for _, run := range old {
		run.mu.Lock()
		if run.record.Status == RunRunning || run.record.Status == RunPaused {
			for nodeID, rec := range run.record.Nodes {
				if rec.Status == NodePending || rec.Status == NodeRunning {
					rec.Status = NodeSkipped
					run.record.Nodes[nodeID] = rec
				}
			}
			run.finishLocked(RunCancelled)
		}
		run.mu.Unlock()
	}

	next := make(map[string]*dagRun, len(records))
	for id, record := range records {
		var spec *graph.DAGSpec
		if prev, ok := old[id]; ok {
			spec = prev.spec
		}
		if spec == nil {
			if stored, err := e.storage.GetSpec(ctx, record.SpecID); err == nil {
				spec = &stored
			}
		}
		next[id] = restoredRun(spec, record)
	}

	e.runsMu.Lock()
	e.runs = next
	e.runsMu.Unlock()
	e.logger.Info("restored run state", "runs", len(next))
}

func (e *Engine) getRun(id string) *dagRun {
	e.runsMu.RLock()
	defer e.runsMu.RUnlock()
	return e.runs[id]
}

// persistLocked writes the run record through to storage. Caller holds the
// run mutex. Persistence failures are logged, not escalated: the in-memory
// record stays authoritative.
func (e *Engine) persistLocked(run *dagRun) {
	if err := e.storage.SaveRun(context.Background(), run.record.Clone()); err != nil {
		e.logger.Error("failed to persist run", "workflow_id", run.record.ID, "error", err)
	}
}
