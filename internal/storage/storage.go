package storage

import (
	"context"

	"github.com/slok/runq/internal/model"
)

// ListExecutionsOpts are the options to filter listed executions.
type ListExecutionsOpts struct {
	// Status filters by status when set.
	Status *model.ExecutionStatus
	// Limit is the max number of executions returned, 0 means no limit.
	Limit int
}

// ExecutionRepository is the interface for execution history persistence.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, e model.Execution) error
	GetExecution(ctx context.Context, id string) (*model.Execution, error)
	// ListExecutions returns the executions, newest first.
	ListExecutions(ctx context.Context, opts ListExecutionsOpts) ([]model.Execution, error)
	UpdateExecution(ctx context.Context, e model.Execution) error
	// InterruptExecutions marks all queued and running executions as failed with
	// the reason as error and returns how many were marked.
	InterruptExecutions(ctx context.Context, reason string) (int, error)
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name ExecutionRepository

// TaskRepository tracks the tasks of an execution while it runs.
type TaskRepository interface {
	// SetTasks replaces the tasks of an execution with pending ones, in run order.
	SetTasks(ctx context.Context, executionID string, names []string) error
	// NextTask returns the first pending task of an execution, nil when none is left.
	NextTask(ctx context.Context, executionID string) (*model.Task, error)
	// CompleteTask marks a task as done.
	CompleteTask(ctx context.Context, taskID string) error
	// FailTask marks a task as failed with the error message.
	FailTask(ctx context.Context, taskID string, err error) error
	// Progress returns how many tasks of an execution are done out of the total.
	Progress(ctx context.Context, executionID string) (*model.TaskProgress, error)
	// ListTasks returns the tasks of an execution in run order.
	ListTasks(ctx context.Context, executionID string) ([]model.Task, error)
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository
