// Package agent provides reusable building blocks for mesh participants.
//
// BaseAgent carries the identity, lifecycle and interaction bookkeeping every
// agent needs; embed it and override HandleEvent to add behavior. FuncAgent
// wraps a single event handling function for the common case where an agent
// is one reaction to routed events.
//
// Lifecycle calls are idempotent: Initialize and Shutdown may be invoked any
// number of times, and Status stays queryable after shutdown.
package agent
