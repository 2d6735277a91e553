package execute

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/runq/internal/log"
	"github.com/slok/runq/internal/model"
	"github.com/slok/runq/internal/output"
	"github.com/slok/runq/internal/storage"
	"github.com/slok/runq/internal/worker"
)

// Enqueuer queues execution requests.
type Enqueuer interface {
	Enqueue(req worker.Request) string
}

// ServiceConfig is the configuration for the execute service.
type ServiceConfig struct {
	Repository storage.ExecutionRepository
	Worker     Enqueuer
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Worker == nil {
		return fmt.Errorf("worker is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Execute"})

	return nil
}

// Service requests executions.
type Service struct {
	repo   storage.ExecutionRepository
	worker Enqueuer
	logger log.Logger
}

// NewService creates a new execute service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.Repository,
		worker: cfg.Worker,
		logger: cfg.Logger,
	}, nil
}

// Request represents the execute request parameters.
type Request struct {
	// Options override the options in effect for this execution, nil keeps them.
	Options *model.RunOptions
	// Sink receives the execution output, nil discards it. It's closed when the
	// execution ends, also when the request fails.
	Sink *output.Channel
}

// Run records a new queued execution and enqueues it, it doesn't wait for the execution.
func (s *Service) Run(ctx context.Context, req Request) (*model.Execution, error) {
	e, err := s.run(ctx, req)
	if err != nil && req.Sink != nil {
		if err := req.Sink.Close(); err != nil {
			s.logger.Debugf("could not close sink: %s", err)
		}
	}

	return e, err
}

func (s *Service) run(ctx context.Context, req Request) (*model.Execution, error) {
	if req.Options != nil {
		if err := req.Options.Validate(); err != nil {
			return nil, fmt.Errorf("invalid options: %w", err)
		}
	}

	e := model.Execution{
		ID:        ulid.Make().String(),
		Status:    model.ExecutionStatusQueued,
		Options:   req.Options.Clone(),
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreateExecution(ctx, e); err != nil {
		return nil, fmt.Errorf("could not create execution: %w", err)
	}

	s.worker.Enqueue(worker.Request{
		ID:      e.ID,
		Options: req.Options.Clone(),
		Sink:    req.Sink,
	})

	s.logger.Debugf("execution %s enqueued", e.ID)
	return &e, nil
}
