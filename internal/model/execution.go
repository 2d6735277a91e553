package model

import "time"

// ExecutionStatus represents the state of an execution.
type ExecutionStatus string

const (
	ExecutionStatusQueued    ExecutionStatus = "queued"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Valid returns true if the status is a known one.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionStatusQueued, ExecutionStatusRunning, ExecutionStatusSucceeded, ExecutionStatusFailed:
		return true
	}
	return false
}

// Finished returns true when the execution will not change anymore.
func (s ExecutionStatus) Finished() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed
}

// Execution is the record of one requested run.
type Execution struct {
	ID     string
	Status ExecutionStatus
	// Options are the run options requested for this execution, nil when the
	// execution used the options that were in effect.
	Options    *RunOptions
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

// ExecutionStatusInfo is an execution together with the progress of its tasks.
type ExecutionStatusInfo struct {
	Execution Execution
	Progress  TaskProgress
	Tasks     []Task
}
