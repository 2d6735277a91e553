package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/conventions"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/runner"
	storageio "github.com/slok/runq/internal/storage/io"
	"github.com/slok/runq/internal/storage/sqlite"
	"github.com/slok/runq/internal/utils/env"
	"github.com/slok/runq/internal/worker"
)

// runFlags are the flags of the commands that run tasks.
type runFlags struct {
	tasksFile string
	only      []string
	dryRun    bool
	envSpecs  []string
}

func registerRunFlags(cmd *kingpin.CmdClause) *runFlags {
	f := &runFlags{}

	cmd.Flag("tasks-file", "Path to the YAML tasks file.").Short('f').Default(conventions.TasksFile).StringVar(&f.tasksFile)
	cmd.Flag("only", "Run only these tasks. Can be repeated.").StringsVar(&f.only)
	cmd.Flag("dry-run", "Log what would be run without running anything.").BoolVar(&f.dryRun)
	cmd.Flag("env", "Environment variables for the tasks (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&f.envSpecs)

	return f
}

// options returns the run options set by the flags, nil if none was set.
func (f runFlags) options() (*model.RunOptions, error) {
	if len(f.only) == 0 && !f.dryRun && len(f.envSpecs) == 0 {
		return nil, nil
	}

	vars, err := env.ParseSpecs(f.envSpecs)
	if err != nil {
		return nil, fmt.Errorf("invalid --env value: %w", err)
	}

	opts := &model.RunOptions{Only: f.only, DryRun: f.dryRun}
	if len(vars) > 0 {
		opts.Env = vars
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

func (f runFlags) loadTasks(ctx context.Context) ([]model.TaskDefinition, error) {
	path, err := filepath.Abs(f.tasksFile)
	if err != nil {
		return nil, fmt.Errorf("invalid tasks file path: %w", err)
	}

	repo := storageio.NewTasksYAMLRepository(os.DirFS(filepath.Dir(path)))
	tasks, err := repo.ListTasks(ctx, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("could not load tasks from %s: %w", f.tasksFile, err)
	}

	return tasks, nil
}

// backend is the execution stack shared by the commands that run tasks.
type backend struct {
	repo     *sqlite.Repository
	taskRepo *sqlite.TaskRepository
	worker   *worker.Worker
	execute  *execute.Service
}

type backendConfig struct {
	Tasks []model.TaskDefinition
	// Options are the run options in effect.
	Options *model.RunOptions
	// ExecutionLogger is the logger in effect for executions, the root logger when nil.
	ExecutionLogger log.Logger
}

func newBackend(ctx context.Context, root *RootCommand, cfg backendConfig) (*backend, error) {
	logger := root.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: root.DBPath,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	// Task tracking shares the database connection.
	taskRepo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{
		DB:     repo.DB(),
		Logger: logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create task repository: %w", err)
	}

	r, err := runner.NewRunner(runner.RunnerConfig{
		Tasks:    cfg.Tasks,
		TaskRepo: taskRepo,
		Logger:   logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	recorder, err := execute.NewRecorder(execute.RecorderConfig{
		Executor:   r,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create recorder: %w", err)
	}

	w, err := worker.NewWorker(worker.WorkerConfig{
		Executor:        recorder,
		Options:         cfg.Options,
		Stdout:          root.Stdout,
		Stderr:          root.Stderr,
		Logger:          logger,
		ExecutionLogger: cfg.ExecutionLogger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create worker: %w", err)
	}

	svc, err := execute.NewService(execute.ServiceConfig{
		Repository: repo,
		Worker:     w,
		Logger:     logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("could not create execute service: %w", err)
	}

	return &backend{
		repo:     repo,
		taskRepo: taskRepo,
		worker:   w,
		execute:  svc,
	}, nil
}

func (b *backend) Close() error { return b.repo.Close() }
