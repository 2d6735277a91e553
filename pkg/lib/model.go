package lib

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/slok/runq/internal/model"
)

// Sentinel errors returned by the SDK. Use [errors.Is] to check for them.
var (
	// ErrNotFound is returned when the requested execution doesn't exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a resource that already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when the input is not valid.
	ErrNotValid = errors.New("not valid")
)

// LatestExecution can be used as an execution ID in [Client.Status] to get the
// newest execution.
const LatestExecution = "latest"

// ExecutionStatus represents the lifecycle state of an execution.
//
// The lifecycle is:
//
//	queued -> running -> succeeded | failed
type ExecutionStatus string

const (
	// ExecutionStatusQueued indicates the execution waits for the worker.
	ExecutionStatusQueued ExecutionStatus = "queued"
	// ExecutionStatusRunning indicates the worker is running the execution tasks.
	ExecutionStatusRunning ExecutionStatus = "running"
	// ExecutionStatusSucceeded indicates every task finished without error.
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	// ExecutionStatusFailed indicates the execution ended with an error.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// TaskStatus represents the state of a task of an execution.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Task is a named command that every execution runs.
type Task struct {
	// Name identifies the task, must be unique.
	Name string
	// Command is the program and its arguments.
	Command []string
	// WorkingDir is the directory the command runs in. Default: the current one.
	WorkingDir string
	// Env contains environment variables added to the process environment.
	Env map[string]string
}

// RunOptions is the run configuration of an execution.
type RunOptions struct {
	// Only restricts the run to these task names, empty means all tasks.
	Only []string
	// DryRun logs what would be run without running anything.
	DryRun bool
	// Env contains environment variables merged over every task environment.
	Env map[string]string
}

// Execution is a read-only snapshot of an execution record at the time of the
// API call. Use [Client.Status] to get the latest state.
type Execution struct {
	// ID is the unique identifier (ULID) assigned when requested.
	ID string
	// Status is the current lifecycle state.
	Status ExecutionStatus
	// Options are the run options requested for the execution. Nil if the
	// execution used the options in effect.
	Options *RunOptions
	// Error is the failure reason, empty unless failed.
	Error string
	// CreatedAt is when the execution was requested.
	CreatedAt time.Time
	// StartedAt is when the worker started the execution. Nil if never started.
	StartedAt *time.Time
	// FinishedAt is when the execution ended. Nil if not finished.
	FinishedAt *time.Time
}

// TaskState is the state of one task of an execution.
type TaskState struct {
	Name   string
	Status TaskStatus
	Error  string
}

// ExecutionState is an execution together with the progress of its tasks.
type ExecutionState struct {
	Execution Execution
	// TasksDone and TasksTotal are the task progress of the execution.
	TasksDone  int
	TasksTotal int
	// Tasks are the execution tasks in run order.
	Tasks []TaskState
}

// HistoryOpts filters the execution history.
type HistoryOpts struct {
	// Status only returns executions in this state. Nil returns all of them.
	Status *ExecutionStatus
	// Limit is the max number of executions returned, 0 means all.
	Limit int
}

func toInternalTasks(ts []Task) []model.TaskDefinition {
	res := make([]model.TaskDefinition, 0, len(ts))
	for _, t := range ts {
		res = append(res, model.TaskDefinition{
			Name:       t.Name,
			Command:    slices.Clone(t.Command),
			WorkingDir: t.WorkingDir,
			Env:        maps.Clone(t.Env),
		})
	}
	return res
}

func toInternalRunOptions(o *RunOptions) *model.RunOptions {
	if o == nil {
		return nil
	}
	return &model.RunOptions{
		Only:   slices.Clone(o.Only),
		DryRun: o.DryRun,
		Env:    maps.Clone(o.Env),
	}
}

func fromInternalRunOptions(o *model.RunOptions) *RunOptions {
	if o == nil {
		return nil
	}
	return &RunOptions{
		Only:   slices.Clone(o.Only),
		DryRun: o.DryRun,
		Env:    maps.Clone(o.Env),
	}
}

func fromInternalExecution(e model.Execution) Execution {
	return Execution{
		ID:         e.ID,
		Status:     ExecutionStatus(e.Status),
		Options:    fromInternalRunOptions(e.Options),
		Error:      e.Error,
		CreatedAt:  e.CreatedAt,
		StartedAt:  e.StartedAt,
		FinishedAt: e.FinishedAt,
	}
}

func fromInternalExecutionList(es []model.Execution) []Execution {
	res := make([]Execution, 0, len(es))
	for _, e := range es {
		res = append(res, fromInternalExecution(e))
	}
	return res
}

func fromInternalStatusInfo(info model.ExecutionStatusInfo) ExecutionState {
	st := ExecutionState{
		Execution:  fromInternalExecution(info.Execution),
		TasksDone:  info.Progress.Done,
		TasksTotal: info.Progress.Total,
		Tasks:      make([]TaskState, 0, len(info.Tasks)),
	}
	for _, t := range info.Tasks {
		st.Tasks = append(st.Tasks, TaskState{
			Name:   t.Name,
			Status: TaskStatus(t.Status),
			Error:  t.Error,
		})
	}
	return st
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		return &mappedError{original: err, sentinel: ErrNotFound}
	case errors.Is(err, model.ErrAlreadyExists):
		return &mappedError{original: err, sentinel: ErrAlreadyExists}
	case errors.Is(err, model.ErrNotValid):
		return &mappedError{original: err, sentinel: ErrNotValid}
	default:
		return err
	}
}

// mappedError keeps the internal error message while matching the public sentinel.
type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool { return target == e.sentinel }

func (e *mappedError) Unwrap() error { return e.original }
