// Package engine implements the DAG workflow engine: it owns workflow run
// instances, drives the scheduler loop under concurrency and retry policies,
// and exposes the pause/resume/cancel state machine. It also carries the
// flat TaskScheduler for ungraphed one-off work.
//
// All engine state is explicit and owned by a single Engine instance; there
// are no ambient singletons. The scheduler is cooperative: pause, resume and
// cancel are state fields checked by the loop before each dispatch round,
// never thread suspension, and cancellation stops new dispatch without
// forcibly aborting in-flight handlers.
package engine
