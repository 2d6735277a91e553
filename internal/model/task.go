package model

import (
	"time"
)

// TaskStatus represents the state of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Task represents a single step of an execution.
type Task struct {
	ID          string
	ExecutionID string
	Sequence    int
	Name        string
	Status      TaskStatus
	Error       string
	CreatedAt   time.Time
}

// TaskProgress represents how many tasks of an execution are done.
type TaskProgress struct {
	Done  int
	Total int
}
