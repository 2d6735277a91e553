package status

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
)

// LatestID is the execution ID alias for the newest execution.
const LatestID = "latest"

// ServiceConfig is the configuration for the status service.
type ServiceConfig struct {
	Repository storage.ExecutionRepository
	// TaskRepository is used to get the task progress, optional.
	TaskRepository storage.TaskRepository
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Status"})

	return nil
}

// Service retrieves detailed execution status.
type Service struct {
	repo     storage.ExecutionRepository
	taskRepo storage.TaskRepository
	logger   log.Logger
}

// NewService creates a new status service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:     cfg.Repository,
		taskRepo: cfg.TaskRepository,
		logger:   cfg.Logger,
	}, nil
}

// Request represents the status request parameters.
type Request struct {
	// ID is the execution ID to query, `latest` queries the newest execution.
	ID string
}

// Run retrieves the status of an execution together with its task progress.
func (s *Service) Run(ctx context.Context, req Request) (*model.ExecutionStatusInfo, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("execution id is required: %w", model.ErrNotValid)
	}

	s.logger.Debugf("getting status for execution: %s", req.ID)

	e, err := s.getExecution(ctx, req.ID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("execution not found: %s: %w", req.ID, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not get execution status: %w", err)
	}

	info := &model.ExecutionStatusInfo{Execution: *e, Tasks: []model.Task{}}
	if s.taskRepo == nil {
		return info, nil
	}

	progress, err := s.taskRepo.Progress(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get task progress: %w", err)
	}
	info.Progress = *progress

	tasks, err := s.taskRepo.ListTasks(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}
	info.Tasks = tasks

	return info, nil
}

func (s *Service) getExecution(ctx context.Context, id string) (*model.Execution, error) {
	if id != LatestID {
		return s.repo.GetExecution(ctx, id)
	}

	executions, err := s.repo.ListExecutions(ctx, storage.ListExecutionsOpts{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(executions) == 0 {
		return nil, model.ErrNotFound
	}

	return &executions[0], nil
}
