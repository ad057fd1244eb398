// Package aikoryu provides a high-level façade over the workflow engine and
// the mesh coordination layer, enabling rapid construction of agent driven
// workflow systems. Most applications interact with this package by:
//  1. Creating a System via New() (optionally overriding storage or logging)
//  2. Registering one or more agents (FuncAgent, custom BaseAgent embedders)
//  3. Submitting DAG workflows (CreateDAG/StartWorkflow) or cross-agent
//     workflows (OrchestrateWorkflow)
//
// The façade delegates execution to engine.Engine and coordination to
// mesh.Mesh while keeping setup ergonomics concise. All defaults are safe for
// local development and testing; production deployments typically supply a
// durable storage backend and a structured logger.
package aikoryu

import (
	"context"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/engine"
	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/logging"
	"github.com/VictorAMM/aiko-ryu-sub008/mesh"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Options configures the System instance.
type Options struct {
	// EngineConfig holds scheduling defaults (concurrency, retries, backoff).
	EngineConfig engine.Config

	// Storage persists specs, run records and snapshots. Defaults to an
	// in-memory store.
	Storage storage.Storage

	// Logger defaults to NoOp if nil.
	Logger logging.Logger
}

// System is the high-level façade aggregating the engine and the mesh.
type System struct {
	opts   Options
	engine *engine.Engine
	mesh   *mesh.Mesh
}

// New creates a System with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *System {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Storage:      storage.NewMemoryStorage(),
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Storage = opts.Storage
		o.Logger = opts.Logger
	})
	m := mesh.New(func(o *mesh.Options) {
		o.Engine = eng
		o.Logger = opts.Logger
	})

	return &System{opts: opts, engine: eng, mesh: m}
}

// Mesh returns the coordination layer for direct registry, router and
// snapshot access.
func (s *System) Mesh() *mesh.Mesh { return s.mesh }

// Engine returns the underlying workflow engine.
func (s *System) Engine() *engine.Engine { return s.engine }

// RegisterAgent adds an agent to the mesh registry.
func (s *System) RegisterAgent(a core.Agent) bool {
	return s.mesh.Registry().RegisterAgent(a)
}

// RegisterHandler binds a task type to a handler on the engine.
func (s *System) RegisterHandler(taskType string, h engine.Handler) {
	s.engine.RegisterHandler(taskType, h)
}

// CreateDAG validates nothing up front; it persists the spec and prepares a
// run. Validation happens on StartWorkflow.
func (s *System) CreateDAG(ctx context.Context, spec *graph.DAGSpec) (string, error) {
	return s.engine.CreateDAG(ctx, spec)
}

// StartWorkflow validates and begins executing a created DAG.
func (s *System) StartWorkflow(ctx context.Context, dagID string) engine.StartResult {
	return s.engine.StartWorkflow(ctx, dagID)
}

// OrchestrateWorkflow runs a cross-agent workflow through the mesh.
func (s *System) OrchestrateWorkflow(ctx context.Context, wf mesh.Workflow) mesh.OrchestrationResult {
	return s.mesh.OrchestrateWorkflow(ctx, wf)
}

// Initialize brings up all registered agents.
func (s *System) Initialize(ctx context.Context) error { return s.mesh.Initialize(ctx) }

// Shutdown stops all registered agents.
func (s *System) Shutdown(ctx context.Context) error { return s.mesh.Shutdown(ctx) }
