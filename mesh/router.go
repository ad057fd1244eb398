package mesh

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/logging"
)

// RouteResult is the structured outcome of a unicast delivery. An unknown
// target or a failed handler yields Success=false; RouteEvent itself never
// returns an error and never panics.
type RouteResult struct {
	Success     bool     `json:"success"`
	RoutedTo    string   `json:"routed_to,omitempty"`
	RoutingPath []string `json:"routing_path,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// BroadcastResult is the structured outcome of a broadcast. BroadcastTo lists
// the agents whose delivery succeeded, sorted by id.
type BroadcastResult struct {
	Success     bool     `json:"success"`
	BroadcastTo []string `json:"broadcast_to,omitempty"`
}

// Router delivers events between registered agents, either point-to-point or
// fanned out to the whole registry. Subscription interest sets filter
// broadcast eligibility only; unicast routing ignores them.
type Router struct {
	registry *Registry
	logger   logging.Logger

	mu            sync.Mutex
	subscriptions map[string]map[string]struct{}
	targetLocks   map[string]*sync.Mutex
}

// NewRouter creates a router delivering to agents in the given registry.
func NewRouter(registry *Registry, logger logging.Logger) *Router {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	r := &Router{
		registry:      registry,
		logger:        logger,
		subscriptions: make(map[string]map[string]struct{}),
		targetLocks:   make(map[string]*sync.Mutex),
	}
	if registry != nil {
		registry.notifyRemoval(r.dropTargetLock)
	}
	return r
}

// RouteEvent delivers one event synchronously to the named target. The
// returned RoutingPath records the hop sequence, event source first when set.
// Events routed to the same target are serialized, so a target's handler
// observes them in RouteEvent invocation order. Handler errors and panics are
// recorded as delivery failures, never re-raised.
func (r *Router) RouteEvent(ctx context.Context, event core.Event, targetID string) RouteResult {
	target := r.registry.GetAgent(targetID)
	if target == nil {
		r.logger.Warn("route target not registered", "target_id", targetID, "event_type", event.Type)
		return RouteResult{Success: false, Error: "target not registered: " + targetID}
	}

	path := []string{}
	if event.Source != "" {
		path = append(path, event.Source)
	}
	path = append(path, targetID)

	lock := r.targetLock(targetID)
	lock.Lock()
	err := deliver(ctx, target, event)
	lock.Unlock()

	if err != nil {
		r.logger.Warn("delivery failed", "target_id", targetID, "event_type", event.Type, "error", err)
		return RouteResult{Success: false, RoutedTo: targetID, RoutingPath: path, Error: err.Error()}
	}
	r.logger.Debug("event routed", "target_id", targetID, "event_type", event.Type)
	return RouteResult{Success: true, RoutedTo: targetID, RoutingPath: path}
}

// BroadcastEvent fans the event out to every registered agent except the
// source. Excluding the source is deliberate: an agent never hears its own
// broadcasts. Agents with a non-empty interest set only receive event types
// they subscribed to; an empty interest set receives everything. Deliveries
// run concurrently and independently, one failure does not block the others.
// Success reports the weakest useful threshold: true when at least one
// delivery succeeded.
func (r *Router) BroadcastEvent(ctx context.Context, event core.Event, sourceID string) BroadcastResult {
	agents := r.registry.AllAgents()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var delivered []string
	for id, a := range agents {
		if id == sourceID {
			continue
		}
		if !r.interested(id, event.Type) {
			continue
		}
		wg.Add(1)
		go func(id string, a core.Agent) {
			defer wg.Done()
			lock := r.targetLock(id)
			lock.Lock()
			err := deliver(ctx, a, event)
			lock.Unlock()
			if err != nil {
				r.logger.Warn("broadcast delivery failed", "target_id", id, "event_type", event.Type, "error", err)
				return
			}
			mu.Lock()
			delivered = append(delivered, id)
			mu.Unlock()
		}(id, a)
	}
	wg.Wait()

	sort.Strings(delivered)
	return BroadcastResult{Success: len(delivered) > 0, BroadcastTo: delivered}
}

// SubscribeToEvents adds event types to an agent's interest set. An agent
// with no subscriptions receives all broadcasts; the first subscription
// narrows it to the listed types.
func (r *Router) SubscribeToEvents(agentID string, eventTypes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subscriptions[agentID]
	if set == nil {
		set = make(map[string]struct{})
		r.subscriptions[agentID] = set
	}
	for _, t := range eventTypes {
		set[t] = struct{}{}
	}
}

// UnsubscribeFromEvents removes event types from an agent's interest set.
// Removing the last subscribed type returns the agent to receive-everything.
func (r *Router) UnsubscribeFromEvents(agentID string, eventTypes []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subscriptions[agentID]
	if set == nil {
		return
	}
	for _, t := range eventTypes {
		delete(set, t)
	}
	if len(set) == 0 {
		delete(r.subscriptions, agentID)
	}
}

// Subscriptions returns a deep copy of the interest sets keyed by agent id,
// each sorted. Used by the snapshot manager.
func (r *Router) Subscriptions() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]string, len(r.subscriptions))
	for id, set := range r.subscriptions {
		types := make([]string, 0, len(set))
		for t := range set {
			types = append(types, t)
		}
		sort.Strings(types)
		out[id] = types
	}
	return out
}

// restoreSubscriptions replaces all interest sets. Used by snapshot restore.
func (r *Router) restoreSubscriptions(subs map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions = make(map[string]map[string]struct{}, len(subs))
	for id, types := range subs {
		if len(types) == 0 {
			continue
		}
		set := make(map[string]struct{}, len(types))
		for _, t := range types {
			set[t] = struct{}{}
		}
		r.subscriptions[id] = set
	}
}

func (r *Router) interested(agentID, eventType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.subscriptions[agentID]
	if len(set) == 0 {
		return true
	}
	_, ok := set[eventType]
	return ok
}

func (r *Router) targetLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock := r.targetLocks[id]
	if lock == nil {
		lock = &sync.Mutex{}
		r.targetLocks[id] = lock
	}
	return lock
}

// dropTargetLock releases the serialization mutex of an agent that left the
// registry, keeping the lock map from growing with membership churn.
func (r *Router) dropTargetLock(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.targetLocks, id)
}

// deliver invokes the target's handler, converting panics into errors so a
// misbehaving agent cannot take down the router.
func deliver(ctx context.Context, target core.Agent, event core.Event) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return target.HandleEvent(ctx, event)
}
