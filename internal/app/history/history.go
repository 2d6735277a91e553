package history

import (
	"context"
	"fmt"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.ExecutionRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})

	return nil
}

// Service lists executions with optional filtering.
type Service struct {
	repo   storage.ExecutionRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// StatusFilter is an optional filter to only show executions with this status.
	StatusFilter *model.ExecutionStatus
	// Limit is the max number of executions, 0 means all.
	Limit int
}

// Run lists the executions, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Execution, error) {
	if req.StatusFilter != nil && !req.StatusFilter.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", *req.StatusFilter, model.ErrNotValid)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	s.logger.Debugf("listing executions with filter: %v", req.StatusFilter)

	executions, err := s.repo.ListExecutions(ctx, storage.ListExecutionsOpts{
		Status: req.StatusFilter,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("could not list executions: %w", err)
	}

	s.logger.Debugf("found %d executions", len(executions))
	return executions, nil
}
