package engine

import (
	"context"
	"sync"
	"time"

	"github.com/VictorAMM/aiko-ryu-sub008/core"
	"github.com/VictorAMM/aiko-ryu-sub008/graph"
	"github.com/VictorAMM/aiko-ryu-sub008/storage"
)

// Task is one unit of ungraphed scheduled work. Dependencies is a flat
// precedence list resolved with graph.ResolveDependencies before execution;
// it never forms a DAG.
type Task struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Timeout      time.Duration  `json:"timeout,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TaskResult records the outcome of one executed task.
type TaskResult struct {
	TaskID   string `json:"task_id"`
	Success  bool   `json:"success"`
	Output   any    `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Attempts int    `json:"attempts"`
}

// FailureResult is the structured outcome of HandleTaskFailure. It never
// carries an error value: absence of the task yields Success=false with the
// same echoed id and message.
type FailureResult struct {
	Success    bool          `json:"success"`
	TaskID     string        `json:"task_id"`
	Error      string        `json:"error,omitempty"`
	WillRetry  bool          `json:"will_retry"`
	RetryDelay time.Duration `json:"retry_delay,omitempty"`
}

type taskEntry struct {
	task   Task
	record storage.TaskRecord
}

// TaskScheduler is a FIFO queue of independent tasks used for one-off
// scheduled work and failure bookkeeping. It shares the engine's handler
// registry, concurrency bound and backoff policy.
type TaskScheduler struct {
	engine *Engine

	mu    sync.Mutex
	tasks map[string]*taskEntry
	queue []string
}

func newTaskScheduler(e *Engine) *TaskScheduler {
	return &TaskScheduler{engine: e, tasks: make(map[string]*taskEntry)}
}

// ScheduleTask enqueues a task and returns its id. The task is assigned
// pending status; nothing executes until ExecuteScheduledTasks drains the
// queue.
func (s *TaskScheduler) ScheduleTask(task Task) string {
	if task.ID == "" {
		task.ID = core.NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = &taskEntry{
		task: task,
		record: storage.TaskRecord{
			ID:         task.ID,
			Name:       task.Name,
			Type:       task.Type,
			Parameters: task.Parameters,
			Status:     TaskPending,
		},
	}
	s.queue = append(s.queue, task.ID)
	return task.ID
}

// ExecuteScheduledTasks drains the queue, executing each task's declared
// action bounded by the engine's concurrency limit, and returns one result
// per drained task in enqueue order.
func (s *TaskScheduler) ExecuteScheduledTasks(ctx context.Context) []TaskResult {
	s.mu.Lock()
	batch := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	maxConcurrency := s.engine.config.DefaultMaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	sem := make(chan struct{}, maxConcurrency)

	results := make([]TaskResult, len(batch))
	var wg sync.WaitGroup
	for i, taskID := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, taskID string) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.executeOne(ctx, taskID)
		}(i, taskID)
	}
	wg.Wait()

	return results
}

func (s *TaskScheduler) executeOne(ctx context.Context, taskID string) TaskResult {
	s.mu.Lock()
	entry, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return TaskResult{TaskID: taskID, Success: false, Error: "unknown task"}
	}
	entry.record.Status = TaskRunning
	entry.record.Attempts++
	attempts := entry.record.Attempts
	task := entry.task
	s.mu.Unlock()

	finish := func(output any, errMsg string) TaskResult {
		s.mu.Lock()
		if errMsg == "" {
			entry.record.Status = TaskSucceeded
			entry.record.Error = ""
		} else {
			entry.record.Status = TaskFailed
			entry.record.Error = errMsg
		}
		s.mu.Unlock()
		return TaskResult{TaskID: taskID, Success: errMsg == "", Output: output, Error: errMsg, Attempts: attempts}
	}

	if res := graph.ResolveDependencies(task.Dependencies); !res.Success {
		return finish(nil, "circular task dependencies")
	}

	handler := s.engine.handler(task.Type)
	if handler == nil {
		return finish(nil, "no handler registered for task type "+task.Type)
	}

	execCtx := ctx
	cancel := func() {}
	if task.Timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, task.Timeout)
	}
	defer cancel()

	output, err := runWithDeadline(execCtx, func(ctx context.Context) (any, error) {
		return handler(ctx, graph.Node{
			ID:       task.ID,
			Name:     task.Name,
			Type:     graph.NodeTask,
			TaskType: task.Type,
			Metadata: task.Metadata,
		})
	})
	if err != nil {
		s.engine.logger.Warn("scheduled task failed", "task_id", taskID, "attempt", attempts, "error", err)
		return finish(nil, err.Error())
	}
	return finish(output, "")
}

// HandleTaskFailure records a failure against a task's runtime record and
// decides retry eligibility using the engine's backoff policy. It never
// errors: an unknown task id yields Success=false with the echoed id and
// message. Retry-eligible tasks are re-enqueued as pending.
func (s *TaskScheduler) HandleTaskFailure(taskID, errMsg string) FailureResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[taskID]
	if !ok {
		return FailureResult{Success: false, TaskID: taskID, Error: errMsg}
	}

	entry.record.Attempts++
	entry.record.Error = errMsg

	maxAttempts := s.engine.config.DefaultRetryAttempts + 1
	if entry.record.Attempts < maxAttempts {
		entry.record.Status = TaskPending
		s.queue = append(s.queue, taskID)
		delay := ComputeBackoff(BackoffExponential, entry.record.Attempts,
			s.engine.config.RetryBackoff, s.engine.config.MaxRetryBackoff)
		return FailureResult{Success: true, TaskID: taskID, Error: errMsg, WillRetry: true, RetryDelay: delay}
	}

	entry.record.Status = TaskFailed
	return FailureResult{Success: true, TaskID: taskID, Error: errMsg, WillRetry: false}
}

// GetTaskStatus returns the runtime record for a task, fabricating an
// unknown-status record for absent ids so reads never fail.
func (s *TaskScheduler) GetTaskStatus(taskID string) storage.TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.tasks[taskID]; ok {
		return entry.record.Clone()
	}
	return storage.TaskRecord{ID: taskID, Status: StatusUnknown}
}

// ExportTasks returns deep copies of all task records keyed by id. Used by
// the snapshot manager.
func (s *TaskScheduler) ExportTasks() map[string]storage.TaskRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]storage.TaskRecord, len(s.tasks))
	for id, entry := range s.tasks {
		out[id] = entry.record.Clone()
	}
	return out
}

// RestoreTasks replaces the scheduler's task records. Tasks restored as
// pending are re-enqueued; execution details (handler type, parameters) come
// from the record itself.
func (s *TaskScheduler) RestoreTasks(records map[string]storage.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]*taskEntry, len(records))
	s.queue = nil
	for id, record := range records {
		s.tasks[id] = &taskEntry{
			task: Task{
				ID:         record.ID,
				Name:       record.Name,
				Type:       record.Type,
				Parameters: record.Parameters,
			},
			record: record.Clone(),
		}
		if record.Status == TaskPending {
			s.queue = append(s.queue, id)
		}
	}
}
