// Package mesh is the coordination layer of the system: a registry of live
// agents, an event router between them, a cross-agent workflow orchestrator
// and a snapshot manager for recovery.
//
// All components share one coordination domain. The registry owns agent
// membership, the router owns subscription state, and the workflow engine
// owns per-run state; every other component reads through their public
// methods. The mesh wires the engine's dispatcher so DAG nodes addressed to
// an agent (Metadata["agent"]) are delivered through the router like any
// other event.
//
// Delivery contracts worth knowing: unicast routing preserves per-target call
// order, broadcast deliveries are concurrent with no cross-target ordering,
// and broadcast success means at least one recipient accepted the event.
package mesh
