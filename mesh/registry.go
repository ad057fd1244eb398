package mesh

import (
	"sort"
	"sync"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/logging"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Registry is the thread-safe in-memory directory of live agents. Membership
// is keyed by agent id; there is no external persistence and no capacity
// bound.
type Registry struct {
	logger logging.Logger

	mu       sync.RWMutex
	agents   map[string]core.Agent
	onRemove []func(id string)
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		logger: logger,
		agents: make(map[string]core.Agent),
	}
}

// RegisterAgent inserts an agent keyed by its id. Registration is
// idempotent-rejecting: a second registration under the same id returns false
// and leaves the existing handle in place, it never overwrites. Nil agents
// and empty ids are rejected.
func (r *Registry) RegisterAgent(a core.Agent) bool {
	if a == nil || a.ID() == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID()]; exists {
		return false
	}
	r.agents[a.ID()] = a
	r.logger.Debug("agent registered", "agent_id", a.ID(), "role", a.Role())
	return true
}

// UnregisterAgent removes the agent with the given id. Returns false when the
// id is not registered.
func (r *Registry) UnregisterAgent(id string) bool {
	r.mu.Lock()
	if _, exists := r.agents[id]; !exists {
		r.mu.Unlock()
		return false
	}
	delete(r.agents, id)
	hooks := r.onRemove
	r.mu.Unlock()

	for _, fn := range hooks {
		fn(id)
	}
	r.logger.Debug("agent unregistered", "agent_id", id)
	return true
}

// notifyRemoval registers a callback invoked after an agent leaves the
// registry, whether by UnregisterAgent or a membership swap. The router uses
// it to release per-agent routing state.
func (r *Registry) notifyRemoval(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

// GetAgent returns the registered agent handle, or nil when absent.
func (r *Registry) GetAgent(id string) core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agents[id]
}

// AllAgents returns a copied view of the registry keyed by agent id. Mutating
// the returned map does not affect membership.
func (r *Registry) AllAgents() map[string]core.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]core.Agent, len(r.agents))
	for id, a := range r.agents {
		out[id] = a
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Summaries returns per-agent summaries sorted by id, used by the snapshot
// manager.
func (r *Registry) Summaries() []storage.AgentSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]storage.AgentSummary, 0, len(r.agents))
	for id, a := range r.agents {
		out = append(out, storage.AgentSummary{
			ID:    id,
			Role:  a.Role(),
			State: a.Status().State,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// replaceMembership swaps the registry to exactly the given set of handles.
// Used by snapshot restore after the all-or-nothing validation has passed.
func (r *Registry) replaceMembership(agents map[string]core.Agent) {
	r.mu.Lock()
	var dropped []string
	for id := range r.agents {
		if _, keep := agents[id]; !keep {
			dropped = append(dropped, id)
		}
	}
	next := make(map[string]core.Agent, len(agents))
	for id, a := range agents {
		next[id] = a
	}
	r.agents = next
	hooks := r.onRemove
	r.mu.Unlock()

	for _, id := range dropped {
		for _, fn := range hooks {
			fn(id)
		}
	}
}
