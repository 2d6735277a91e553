package execute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
	"github.com/slok/runq/internal/worker"
)

// RecorderConfig is the configuration for the execution recorder.
type RecorderConfig struct {
	Executor   worker.Executor
	Repository storage.ExecutionRepository
	Logger     log.Logger
}

func (c *RecorderConfig) defaults() error {
	if c.Executor == nil {
		return fmt.Errorf("executor is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Recorder"})

	return nil
}

// Recorder is a worker.Executor that records the lifecycle of executions in the
// history: running when started, succeeded or failed when finished.
type Recorder struct {
	next   worker.Executor
	repo   storage.ExecutionRepository
	logger log.Logger
}

var _ worker.Executor = &Recorder{}

// NewRecorder returns a new execution recorder that wraps an executor.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Recorder{
		next:   cfg.Executor,
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Execute records and runs an execution. Recording failures never stop the execution.
func (r *Recorder) Execute(ctx context.Context, st *worker.State) (err error) {
	e, getErr := r.repo.GetExecution(ctx, st.ExecutionID)
	if getErr != nil {
		if !errors.Is(getErr, model.ErrNotFound) {
			r.logger.Errorf("could not get execution %s: %s", st.ExecutionID, getErr)
		}
		return r.next.Execute(ctx, st)
	}

	now := time.Now().UTC()
	e.Status = model.ExecutionStatusRunning
	e.StartedAt = &now
	r.update(ctx, *e)

	defer func() {
		if rec := recover(); rec != nil {
			r.finish(ctx, *e, fmt.Errorf("panic: %v", rec))
			panic(rec)
		}
		r.finish(ctx, *e, err)
	}()

	return r.next.Execute(ctx, st)
}

func (r *Recorder) finish(ctx context.Context, e model.Execution, err error) {
	now := time.Now().UTC()
	e.FinishedAt = &now
	e.Status = model.ExecutionStatusSucceeded
	e.Error = ""
	if err != nil {
		e.Status = model.ExecutionStatusFailed
		e.Error = err.Error()
	}

	r.update(ctx, e)
}

func (r *Recorder) update(ctx context.Context, e model.Execution) {
	if err := r.repo.UpdateExecution(ctx, e); err != nil {
		r.logger.Errorf("could not update execution %s: %s", e.ID, err)
	}
}
