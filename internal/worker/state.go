package worker

import (
	"context"
	"io"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
)

// State is the run configuration and output redirection in effect for an execution.
// It's owned by the worker, executors receive a copy of it.
type State struct {
	// ExecutionID is the ID of the running execution, empty while idle.
	ExecutionID string
	// Options are the run options in effect.
	Options *model.RunOptions
	// Stdout is where the execution standard output goes.
	Stdout io.Writer
	// Stderr is where the execution standard error goes.
	Stderr io.Writer
	// Logger is the logger executions must log with.
	Logger log.Logger
}

// Executor runs one execution using the received state.
type Executor interface {
	Execute(ctx context.Context, st *State) error
}

//go:generate mockery --case underscore --output workermock --outpkg workermock --name Executor

// ExecutorFunc is a helper to use functions as Executors.
type ExecutorFunc func(ctx context.Context, st *State) error

func (f ExecutorFunc) Execute(ctx context.Context, st *State) error { return f(ctx, st) }
