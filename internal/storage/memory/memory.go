package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.ExecutionRepository and
// storage.TaskRepository.
type Repository struct {
	executions map[string]model.Execution
	// tasks are the tasks of each execution in run order.
	tasks      map[string][]model.Task
	mu         sync.RWMutex
	logger     log.Logger
}

var (
	_ storage.ExecutionRepository = &Repository{}
	_ storage.TaskRepository      = &Repository{}
)

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		executions: make(map[string]model.Execution),
		tasks:      make(map[string][]model.Task),
		logger:     cfg.Logger,
	}, nil
}

// CreateExecution stores a new execution.
func (r *Repository) CreateExecution(ctx context.Context, e model.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[e.ID]; ok {
		return fmt.Errorf("execution %s: %w", e.ID, model.ErrAlreadyExists)
	}

	r.executions[e.ID] = copyExecution(e)
	r.logger.Debugf("Created execution in repository: %s", e.ID)

	return nil
}

// GetExecution retrieves an execution by ID.
func (r *Repository) GetExecution(ctx context.Context, id string) (*model.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executions[id]
	if !ok {
		return nil, fmt.Errorf("execution %s: %w", id, model.ErrNotFound)
	}

	e = copyExecution(e)
	return &e, nil
}

// ListExecutions returns executions, newest first.
func (r *Repository) ListExecutions(ctx context.Context, opts storage.ListExecutionsOpts) ([]model.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	executions := make([]model.Execution, 0, len(r.executions))
	for _, e := range r.executions {
		if opts.Status != nil && e.Status != *opts.Status {
			continue
		}
		executions = append(executions, copyExecution(e))
	}

	slices.SortFunc(executions, func(a, b model.Execution) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if opts.Limit > 0 && len(executions) > opts.Limit {
		executions = executions[:opts.Limit]
	}

	return executions, nil
}

// UpdateExecution updates an existing execution.
func (r *Repository) UpdateExecution(ctx context.Context, e model.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executions[e.ID]; !ok {
		return fmt.Errorf("execution %s: %w", e.ID, model.ErrNotFound)
	}

	r.executions[e.ID] = copyExecution(e)
	r.logger.Debugf("Updated execution in repository: %s (%s)", e.ID, e.Status)

	return nil
}

// InterruptExecutions marks all the unfinished executions as failed.
func (r *Repository) InterruptExecutions(ctx context.Context, reason string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	n := 0
	for id, e := range r.executions {
		if e.Status.Finished() {
			continue
		}
		e.Status = model.ExecutionStatusFailed
		e.Error = reason
		e.FinishedAt = &now
		r.executions[id] = e
		n++
	}

	r.logger.Debugf("Interrupted %d executions", n)
	return n, nil
}

// SetTasks replaces the tasks of an execution with pending ones, in run order.
func (r *Repository) SetTasks(ctx context.Context, executionID string, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	tasks := make([]model.Task, 0, len(names))
	for i, name := range names {
		tasks = append(tasks, model.Task{
			ID:          ulid.Make().String(),
			ExecutionID: executionID,
			Sequence:    i + 1,
			Name:        name,
			Status:      model.TaskStatusPending,
			CreatedAt:   now,
		})
	}
	r.tasks[executionID] = tasks

	return nil
}

// NextTask returns the first pending task of an execution, nil when none is left.
func (r *Repository) NextTask(ctx context.Context, executionID string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := slices.IndexFunc(r.tasks[executionID], func(t model.Task) bool { return t.Status == model.TaskStatusPending })
	if i < 0 {
		return nil, nil
	}

	t := r.tasks[executionID][i]
	return &t, nil
}

// CompleteTask marks a task as done.
func (r *Repository) CompleteTask(ctx context.Context, taskID string) error {
	return r.setTaskStatus(taskID, model.TaskStatusDone, "")
}

// FailTask marks a task as failed with the error message.
func (r *Repository) FailTask(ctx context.Context, taskID string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return r.setTaskStatus(taskID, model.TaskStatusFailed, msg)
}

// Progress returns how many tasks of an execution are done out of the total.
func (r *Repository) Progress(ctx context.Context, executionID string) (*model.TaskProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := r.tasks[executionID]
	p := &model.TaskProgress{Total: len(tasks)}
	for _, t := range tasks {
		if t.Status == model.TaskStatusDone {
			p.Done++
		}
	}

	return p, nil
}

// ListTasks returns the tasks of an execution in run order.
func (r *Repository) ListTasks(ctx context.Context, executionID string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]model.Task{}, r.tasks[executionID]...), nil
}

func (r *Repository) setTaskStatus(taskID string, status model.TaskStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tasks := range r.tasks {
		for i := range tasks {
			if tasks[i].ID != taskID {
				continue
			}
			tasks[i].Status = status
			tasks[i].Error = errMsg
			return nil
		}
	}

	return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

func copyExecution(e model.Execution) model.Execution {
	e.Options = e.Options.Clone()
	if e.StartedAt != nil {
		t := *e.StartedAt
		e.StartedAt = &t
	}
	if e.FinishedAt != nil {
		t := *e.FinishedAt
		e.FinishedAt = &t
	}
	return e
}
