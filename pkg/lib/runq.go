package lib

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"k8s.io/client-go/util/homedir"

	"github.com/slok/runq/internal/app/execute"
	"github.com/slok/runq/internal/app/history"
	"github.com/slok/runq/internal/app/status"
	"github.com/slok/runq/internal/conventions"
	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/runner"
	"github.com/slok/runq/internal/storage"
	storageio "github.com/slok/runq/internal/storage/io"
	"github.com/slok/runq/internal/storage/memory"
	"github.com/slok/runq/internal/storage/sqlite"
	"github.com/slok/runq/internal/worker"
)

// Config configures the SDK client.
//
// Tasks or TasksFile is required, the rest of the fields are optional.
type Config struct {
	// Tasks are the tasks every execution runs, in order.
	Tasks []Task

	// TasksFile is the path to a runq YAML tasks file, only used when Tasks
	// is empty.
	TasksFile string

	// Options are the run options in effect for executions that don't bring
	// their own. Default: nil (run every task).
	Options *RunOptions

	// DBPath is the SQLite database path.
	// Default: ~/.runq/runq.db.
	DBPath string

	// InMemory keeps the execution history in memory instead of SQLite.
	// DBPath is ignored when set.
	InMemory bool

	// Stdout and Stderr receive the output of detached executions.
	// Default: discarded.
	Stdout io.Writer
	Stderr io.Writer

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if len(c.Tasks) == 0 && c.TasksFile == "" {
		return fmt.Errorf("tasks or tasks file is required: %w", ErrNotValid)
	}

	if c.Options != nil {
		if err := toInternalRunOptions(c.Options).Validate(); err != nil {
			return mapError(err)
		}
	}

	if !c.InMemory && c.DBPath == "" {
		home := homedir.HomeDir()
		if home == "" {
			return fmt.Errorf("could not get home directory, set DBPath: %w", ErrNotValid)
		}
		c.DBPath = conventions.DBPath(home)
	}

	if c.Stdout == nil {
		c.Stdout = io.Discard
	}
	if c.Stderr == nil {
		c.Stderr = io.Discard
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "lib.Client"})

	return nil
}

// Client is the runq SDK client.
//
// It owns an execution worker that runs in the background until Close is
// called. All methods are safe for concurrent use.
type Client struct {
	worker  *worker.Worker
	execute *execute.Service
	history *history.Service
	status  *status.Service
	logger  log.Logger

	stopWorker context.CancelFunc
	workerDone chan struct{}
	closeFn    func() error
}

// New creates a new SDK client and starts its execution worker.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tasks, err := loadTasks(ctx, cfg)
	if err != nil {
		return nil, mapError(err)
	}

	var (
		repo     storage.ExecutionRepository
		taskRepo storage.TaskRepository
		closeFn  = func() error { return nil }
	)
	if cfg.InMemory {
		r, err := memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo, taskRepo = r, r
	} else {
		r, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}

		tr, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: r.DB(), Logger: cfg.Logger})
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("could not create task repository: %w", err)
		}
		repo, taskRepo, closeFn = r, tr, r.Close
	}

	c, err := newClient(cfg, tasks, repo, taskRepo)
	if err != nil {
		closeFn()
		return nil, mapError(err)
	}
	c.closeFn = closeFn

	wctx, cancel := context.WithCancel(context.Background())
	c.stopWorker = cancel
	go func() {
		defer close(c.workerDone)
		if err := c.worker.Run(wctx); err != nil {
			c.logger.Errorf("worker stopped: %s", err)
		}
	}()

	return c, nil
}

func newClient(cfg Config, tasks []model.TaskDefinition, repo storage.ExecutionRepository, taskRepo storage.TaskRepository) (*Client, error) {
	r, err := runner.NewRunner(runner.RunnerConfig{
		Tasks:    tasks,
		TaskRepo: taskRepo,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create runner: %w", err)
	}

	recorder, err := execute.NewRecorder(execute.RecorderConfig{
		Executor:   r,
		Repository: repo,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create recorder: %w", err)
	}

	w, err := worker.NewWorker(worker.WorkerConfig{
		Executor: recorder,
		Options:  toInternalRunOptions(cfg.Options),
		Stdout:   cfg.Stdout,
		Stderr:   cfg.Stderr,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker: %w", err)
	}

	executeSvc, err := execute.NewService(execute.ServiceConfig{Repository: repo, Worker: w, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create execute service: %w", err)
	}

	historySvc, err := history.NewService(history.ServiceConfig{Repository: repo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	statusSvc, err := status.NewService(status.ServiceConfig{Repository: repo, TaskRepository: taskRepo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create status service: %w", err)
	}

	return &Client{
		worker:     w,
		execute:    executeSvc,
		history:    historySvc,
		status:     statusSvc,
		logger:     cfg.Logger,
		workerDone: make(chan struct{}),
	}, nil
}

func loadTasks(ctx context.Context, cfg Config) ([]model.TaskDefinition, error) {
	if len(cfg.Tasks) > 0 {
		return toInternalTasks(cfg.Tasks), nil
	}

	path, err := filepath.Abs(cfg.TasksFile)
	if err != nil {
		return nil, fmt.Errorf("invalid tasks file path: %w", err)
	}

	repo := storageio.NewTasksYAMLRepository(os.DirFS(filepath.Dir(path)))
	tasks, err := repo.ListTasks(ctx, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("could not load tasks from %s: %w", cfg.TasksFile, err)
	}

	return tasks, nil
}

// Close stops the execution worker and releases the resources held by the
// client, including the database connection.
//
// It waits for the running execution to finish. The waiting ones are discarded
// without running: their output ends after a notice and their records stay
// queued in the history. After Close returns, the client must not be used.
func (c *Client) Close() error {
	c.stopWorker()
	<-c.workerDone

	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}
