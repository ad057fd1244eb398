// Package graph holds the immutable DAG description (nodes, edges, policies)
// and the pure resolution algorithms operating on it: structural validation,
// cycle detection, topological ordering and flat dependency resolution.
//
// The package has no runtime state. Nodes are kept in an arena keyed by id
// and adjacency is derived from the Dependencies lists, so cycle detection
// works over ids and never over pointers. Dependencies, not edges, are the
// authoritative precedence relation; edges are advisory routing labels.
package graph
