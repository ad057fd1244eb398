// Package core defines the shared contracts of the coordination domain: the
// Agent capability interface every mesh participant satisfies, the Event type
// exchanged through the router, and the small result structures returned by
// governance hooks.
//
// The package is deliberately free of behavior beyond value helpers so that
// graph, engine and mesh can all depend on it without import cycles.
package core
