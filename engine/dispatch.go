package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// BackoffStrategy selects how retry delays grow across attempts.
type BackoffStrategy string

// Backoff strategies.
const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// ComputeBackoff returns the delay before the given retry attempt (1-based).
// Linear adds a constant increment per attempt; exponential doubles. Both are
// capped at max.
func ComputeBackoff(strategy BackoffStrategy, attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if initial <= 0 {
		return 0
	}
	var d time.Duration
	switch strategy {
	case BackoffExponential:
		d = initial
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				d = max
				break
			}
		}
	default:
		d = initial * time.Duration(attempt)
	}
	if max > 0 && d > max {
		d = max
	}
	return d
}

// runWithDeadline races fn against ctx. When the context expires first the
// deadline error is returned and the eventual result of fn is discarded, so a
// handler that ignores its context still observes the timeout as a failure.
// Contexts without a Done channel run fn inline.
func runWithDeadline(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	if ctx.Done() == nil {
		return fn(ctx)
	}
	type outcome struct {
		output any
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		output, err := fn(ctx)
		ch <- outcome{output: output, err: err}
	}()
	select {
	case o := <-ch:
		return o.output, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runLoop is the cooperative scheduler for one workflow run. It holds the run
// mutex between rounds: eligibility scanning and record mutation happen under
// the lock, handler execution happens in dispatch goroutines outside it.
func (e *Engine) runLoop(ctx context.Context, run *dagRun) {
	start := time.Now()
	maxConcurrency := run.spec.ExecutionPolicy.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = e.config.DefaultMaxConcurrency
	}

	// Wake the loop when the context is cancelled, otherwise a run parked in
	// cond.Wait with nothing in flight would never observe the cancellation.
	if done := ctx.Done(); done != nil {
		finished := make(chan struct{})
		defer close(finished)
		go func() {
			select {
			case <-done:
				run.mu.Lock()
				run.cond.Broadcast()
				run.mu.Unlock()
			case <-finished:
			}
		}()
	}

	run.mu.Lock()
	for {
		if ctx.Err() != nil && !isTerminalRunStatus(run.record.Status) {
			for nodeID, rec := range run.record.Nodes {
				if rec.Status == NodePending || rec.Status == NodeRunning {
					rec.Status = NodeSkipped
					run.record.Nodes[nodeID] = rec
				}
			}
			run.finishLocked(RunCancelled)
			e.persistLocked(run)
			break
		}
		if isTerminalRunStatus(run.record.Status) {
			break
		}
		if run.record.Status == RunPaused {
			run.cond.Wait()
			continue
		}

		e.settleSkipsLocked(run)
		eligible := e.eligibleLocked(run)

		if len(eligible) == 0 && run.inflight == 0 {
			e.finalizeLocked(run)
			break
		}

		dispatched := false
		for _, nodeID := range eligible {
			if run.inflight >= maxConcurrency {
				break
			}
			rec := run.record.Nodes[nodeID]
			rec.Status = NodeRunning
			run.record.Nodes[nodeID] = rec
			run.inflight++
			dispatched = true
			go e.dispatchNode(ctx, run, nodeID)
		}

		if !dispatched {
			// Nothing startable this round: wait for a completion or a
			// control transition.
			run.cond.Wait()
		}
	}
	status := run.record.Status
	failures := run.record.Failures
	run.mu.Unlock()

	e.logger.Info("workflow finished",
		"workflow_id", run.record.ID, "status", status, "failures", failures, "duration", time.Since(start))
}

// settleSkipsLocked marks pending nodes whose dependencies can never succeed
// as skipped, to a fixpoint. Under the stop strategy a skipped dependency is
// as fatal as a failed one, so skips cascade transitively; under continue and
// compensate a skipped dependency counts as satisfied and only the direct
// dependents of failed nodes are cut. Caller holds run.mu.
func (e *Engine) settleSkipsLocked(run *dagRun) {
	stop := run.spec.FailureHandling.Strategy == graph.StrategyStop || run.spec.FailureHandling.Strategy == ""
	changed := true
	for changed {
		changed = false
		for _, nodeID := range run.spec.NodeIDs() {
			rec := run.record.Nodes[nodeID]
			if rec.Status != NodePending {
				continue
			}
			for _, dep := range run.spec.Nodes[nodeID].Dependencies {
				depStatus := run.record.Nodes[dep].Status
				if depStatus == NodeFailed || (stop && depStatus == NodeSkipped) {
					rec.Status = NodeSkipped
					run.record.Nodes[nodeID] = rec
					changed = true
					break
				}
			}
		}
	}
}

// eligibleLocked returns pending nodes whose dependencies are all satisfied:
// succeeded, or skipped under the continue/compensate strategies. Ordered by
// node id for deterministic dispatch. Caller holds run.mu.
func (e *Engine) eligibleLocked(run *dagRun) []string {
	skippedSatisfies := run.spec.FailureHandling.Strategy == graph.StrategyContinue ||
		run.spec.FailureHandling.Strategy == graph.StrategyCompensate

	var out []string
	for _, nodeID := range run.spec.NodeIDs() {
		if run.record.Nodes[nodeID].Status != NodePending {
			continue
		}
		ready := true
		for _, dep := range run.spec.Nodes[nodeID].Dependencies {
			depStatus := run.record.Nodes[dep].Status
			if depStatus == NodeSucceeded {
				continue
			}
			if depStatus == NodeSkipped && skippedSatisfies {
				continue
			}
			ready = false
			break
		}
		if ready {
			out = append(out, nodeID)
		}
	}
	return out
}

// finalizeLocked settles the terminal status once every node is terminal:
// failed when the failure count breached the threshold, completed otherwise.
// Caller holds run.mu.
func (e *Engine) finalizeLocked(run *dagRun) {
	status := RunCompleted
	if run.record.Failures > run.spec.ExecutionPolicy.FailureThreshold && run.record.Failures > 0 {
		status = RunFailed
	}
	run.finishLocked(status)
	e.persistLocked(run)
}

// dispatchNode executes one node with retries and timeout, then applies the
// outcome to the run record. Runs in its own goroutine; the loop is woken via
// the condition variable.
func (e *Engine) dispatchNode(ctx context.Context, run *dagRun, nodeID string) {
	node := run.spec.Nodes[nodeID]
	policy := run.spec.ExecutionPolicy
	maxAttempts := policy.RetryAttempts + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var output any
	var lastErr error
	attempts := 0

	for attempts < maxAttempts {
		attempts++
		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		start := time.Now()
		output, lastErr = runWithDeadline(attemptCtx, func(ctx context.Context) (any, error) {
			return e.executeNode(ctx, run.spec, node)
		})
		cancel()

		if lastErr == nil {
			e.logger.Debug("node succeeded",
				"workflow_id", run.record.ID, "node_id", nodeID, "attempt", attempts, "duration", time.Since(start))
			break
		}
		e.logger.Warn("node attempt failed",
			"workflow_id", run.record.ID, "node_id", nodeID, "attempt", attempts, "error", lastErr)

		run.mu.Lock()
		active := run.record.Status == RunRunning || run.record.Status == RunPaused
		run.mu.Unlock()
		if !active {
			// Run went terminal while we were executing; discard the result.
			e.settleDispatchDiscarded(run)
			return
		}
		if attempts < maxAttempts {
			time.Sleep(ComputeBackoff(BackoffExponential, attempts, e.config.RetryBackoff, e.config.MaxRetryBackoff))
		}
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	run.inflight--

	if isTerminalRunStatus(run.record.Status) {
		// Cancelled (or force-failed) while in flight: the node was already
		// marked skipped, its result is irrelevant.
		run.cond.Broadcast()
		return
	}

	rec := run.record.Nodes[nodeID]
	rec.Attempts = attempts
	if lastErr == nil {
		rec.Status = NodeSucceeded
		rec.Output = output
		rec.LastError = ""
	} else {
		rec.Status = NodeFailed
		rec.LastError = lastErr.Error()
		run.record.Failures++
	}
	run.record.Nodes[nodeID] = rec
	run.touchLocked()
	e.recordEdgeDecisionsLocked(run, nodeID, rec)

	if lastErr != nil && run.record.Failures > run.spec.ExecutionPolicy.FailureThreshold {
		e.applyFailureStrategyLocked(run)
	}

	e.persistLocked(run)
	run.cond.Broadcast()
}

// settleDispatchDiscarded drops the bookkeeping for a dispatch whose run went
// terminal mid-flight.
func (e *Engine) settleDispatchDiscarded(run *dagRun) {
	run.mu.Lock()
	run.inflight--
	run.cond.Broadcast()
	run.mu.Unlock()
}

// applyFailureStrategyLocked reacts to a failure-threshold breach. Caller
// holds run.mu.
//   - stop: halt scheduling, skip everything non-terminal, mark failed
//   - continue: keep independent branches running; the terminal status is
//     settled in finalizeLocked
//   - compensate: like stop, but the spec's compensation tasks are enqueued
//     on the flat scheduler first
func (e *Engine) applyFailureStrategyLocked(run *dagRun) {
	switch run.spec.FailureHandling.Strategy {
	case graph.StrategyContinue:
		return
	case graph.StrategyCompensate:
		for _, taskType := range run.spec.FailureHandling.CompensationTasks {
			e.scheduler.ScheduleTask(Task{
				Name: fmt.Sprintf("compensate-%s-%s", run.record.ID, taskType),
				Type: taskType,
				Parameters: map[string]any{
					"workflow_id": run.record.ID,
				},
			})
		}
	}

	for nodeID, rec := range run.record.Nodes {
		if rec.Status == NodePending || rec.Status == NodeRunning {
			rec.Status = NodeSkipped
			run.record.Nodes[nodeID] = rec
		}
	}
	run.finishLocked(RunFailed)
	e.logger.Warn("failure threshold breached",
		"workflow_id", run.record.ID, "failures", run.record.Failures, "strategy", run.spec.FailureHandling.Strategy)
}

// executeNode resolves the execution target for a node. Agent-addressed nodes
// go through the mesh dispatcher; otherwise the handler registered for the
// node's task type runs. Nodes with no resolvable target succeed as no-ops,
// which keeps purely structural nodes (merge points, markers) cheap.
func (e *Engine) executeNode(ctx context.Context, spec *graph.DAGSpec, node graph.Node) (any, error) {
	if e.dispatcher != nil {
		if _, ok := node.Metadata["agent"]; ok {
			return e.dispatcher.DispatchNode(ctx, spec, node)
		}
	}
	if h := e.handler(node.TaskType); h != nil {
		return h(ctx, node)
	}
	return nil, nil
}

// recordEdgeDecisionsLocked evaluates the advisory edges leaving a node once
// it reaches a terminal state. Success/failure edges fire on the matching
// outcome; conditional edges evaluate their Metadata["condition"] expression
// against {status, attempts, output}. Decisions are observability only and
// never influence scheduling. Caller holds run.mu.
func (e *Engine) recordEdgeDecisionsLocked(run *dagRun, nodeID string, rec storage.NodeRecord) {
	for _, edge := range run.spec.EdgesFrom(nodeID) {
		var fired bool
		switch edge.Type {
		case graph.EdgeSuccess:
			fired = rec.Status == NodeSucceeded
		case graph.EdgeFailure:
			fired = rec.Status == NodeFailed
		case graph.EdgeConditional:
			expr, _ := edge.Metadata["condition"].(string)
			if expr == "" {
				fired = rec.Status == NodeSucceeded
				break
			}
			env := map[string]any{
				"status":   rec.Status,
				"attempts": rec.Attempts,
				"output":   rec.Output,
			}
			result, err := e.evaluator.Evaluate(expr, env)
			if err != nil {
				e.logger.Warn("conditional edge evaluation failed",
					"workflow_id", run.record.ID, "edge_id", edge.ID, "error", err)
				fired = false
				break
			}
			fired = result
		}
		run.record.EdgeDecisions[edge.ID] = fired
	}
}
