package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
	"github.com/slok/runq/internal/storage"
	"github.com/slok/runq/internal/utils/env"
	"github.com/slok/runq/internal/worker"
)


// RunnerConfig is the configuration for the task runner.
type RunnerConfig struct {
	// Tasks are the task definitions, they run in this order.
	Tasks []model.TaskDefinition
	// TaskRepo tracks the progress of the tasks, optional.
	TaskRepo storage.TaskRepository
	// Environ returns the base environment of the task processes.
	Environ func() []string
	Logger  log.Logger
}

func (c *RunnerConfig) defaults() error {
	if len(c.Tasks) == 0 {
		return fmt.Errorf("at least one task is required")
	}

	names := map[string]struct{}{}
	for _, t := range c.Tasks {
		if t.Name == "" {
			return fmt.Errorf("task name is required")
		}
		if len(t.Command) == 0 {
			return fmt.Errorf("task %q command is required", t.Name)
		}
		if _, ok := names[t.Name]; ok {
			return fmt.Errorf("task %q is duplicated", t.Name)
		}
		names[t.Name] = struct{}{}
	}

	if c.Environ == nil {
		c.Environ = os.Environ
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "runner.Runner"})
	return nil
}

// Runner is a worker.Executor that runs the configured tasks sequentially as processes.
type Runner struct {
	tasks    []model.TaskDefinition
	taskRepo storage.TaskRepository
	environ  func() []string
	logger   log.Logger
}

var _ worker.Executor = &Runner{}

// NewRunner returns a new task runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Runner{
		tasks:    cfg.Tasks,
		taskRepo: cfg.TaskRepo,
		environ:  cfg.Environ,
		logger:   cfg.Logger,
	}, nil
}

// TaskNames returns the names of the configured tasks in run order.
func (r *Runner) TaskNames() []string {
	names := make([]string, 0, len(r.tasks))
	for _, t := range r.tasks {
		names = append(names, t.Name)
	}
	return names
}

// Execute runs the tasks selected by the state options, stopping on the first failure.
func (r *Runner) Execute(ctx context.Context, st *worker.State) error {
	opts := model.RunOptions{}
	if st.Options != nil {
		opts = *st.Options
	}

	tasks, err := r.selectTasks(opts.Only)
	if err != nil {
		return err
	}

	logger := st.Logger
	if logger == nil {
		logger = log.Noop
	}
	track := r.taskRepo != nil && st.ExecutionID != ""

	if track {
		names := make([]string, 0, len(tasks))
		for _, t := range tasks {
			names = append(names, t.Name)
		}
		if err := r.taskRepo.SetTasks(ctx, st.ExecutionID, names); err != nil {
			return fmt.Errorf("could not set tasks: %w", err)
		}
	}

	for i, t := range tasks {
		run := func() error {
			cmd := strings.Join(t.Command, " ")
			if opts.DryRun {
				logger.Infof("[%d/%d] Dry run, skipping task %s: %s", i+1, len(tasks), t.Name, cmd)
				return nil
			}

			logger.Infof("[%d/%d] Running task %s: %s", i+1, len(tasks), t.Name, cmd)
			return r.runTask(ctx, t, opts.Env, st.Stdout, st.Stderr)
		}

		if !track {
			if err := run(); err != nil {
				return err
			}
			continue
		}

		if err := r.executeTask(ctx, st.ExecutionID, t.Name, run); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runner) selectTasks(only []string) ([]model.TaskDefinition, error) {
	if len(only) == 0 {
		return r.tasks, nil
	}

	for _, name := range only {
		if !slices.ContainsFunc(r.tasks, func(t model.TaskDefinition) bool { return t.Name == name }) {
			return nil, fmt.Errorf("unknown task %q: %w", name, model.ErrNotValid)
		}
	}

	// Definition order is kept, not the requested one.
	tasks := []model.TaskDefinition{}
	for _, t := range r.tasks {
		if slices.Contains(only, t.Name) {
			tasks = append(tasks, t)
		}
	}

	return tasks, nil
}

func (r *Runner) runTask(ctx context.Context, t model.TaskDefinition, optsEnv map[string]string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	outw := output.NewLineWriter(stdout)
	errw := output.NewLineWriter(stderr)

	cmd := exec.CommandContext(ctx, t.Command[0], t.Command[1:]...)
	cmd.Dir = t.WorkingDir
	cmd.Env = env.Environ(r.environ(), env.Merge(t.Env, optsEnv))
	cmd.Stdout = outw
	cmd.Stderr = errw

	runErr := cmd.Run()

	// Flush incomplete last lines even when the process failed.
	if err := outw.Close(); err != nil {
		r.logger.Debugf("could not flush task stdout: %s", err)
	}
	if err := errw.Close(); err != nil {
		r.logger.Debugf("could not flush task stderr: %s", err)
	}

	if runErr != nil {
		return fmt.Errorf("task %q failed: %w", t.Name, runErr)
	}

	return nil
}

// executeTask executes a task function and tracks its completion.
func (r *Runner) executeTask(ctx context.Context, executionID, taskName string, fn func() error) error {
	tsk, err := r.taskRepo.NextTask(ctx, executionID)
	if err != nil {
		return fmt.Errorf("could not get next task: %w", err)
	}
	if tsk == nil {
		return fmt.Errorf("no pending task found for execution %s", executionID)
	}
	if tsk.Name != taskName {
		return fmt.Errorf("expected task %s, got %s", taskName, tsk.Name)
	}

	err = fn()
	if err != nil {
		if failErr := r.taskRepo.FailTask(ctx, tsk.ID, err); failErr != nil {
			r.logger.Errorf("could not mark task as failed: %s", failErr)
		}
		return err
	}

	if err := r.taskRepo.CompleteTask(ctx, tsk.ID); err != nil {
		return fmt.Errorf("could not mark task as completed: %w", err)
	}

	return nil
}
