package history

import (
	"context"
	"fmt"

	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Repository storage.RunRepository
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

// Service lists the recorded runs.
type Service struct {
	repo   storage.RunRepository
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
	// RunnableName is an optional filter to only show the runs of a runnable.
	RunnableName string
	// StatusFilter is an optional filter to only show runs with this status.
	StatusFilter *model.RunStatus
	// Limit is the max number of runs, 0 means all.
	Limit int
}

// List lists the recorded runs, newest first.
func (s *Service) List(ctx context.Context, req Request) ([]model.Run, error) {
	if req.Limit < 0 {
		return nil, fmt.Errorf("limit can't be negative: %w", model.ErrNotValid)
	}

	opts := storage.ListRunsOpts{
		RunnableName: req.RunnableName,
		Limit:        req.Limit,
	}
	if req.StatusFilter != nil {
		if !req.StatusFilter.Valid() {
			return nil, fmt.Errorf("unknown status %q: %w", *req.StatusFilter, model.ErrNotValid)
		}
		opts.Status = *req.StatusFilter
	}

	runs, err := s.repo.ListRuns(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}

	s.logger.Debugf("found %d runs", len(runs))
	return runs, nil
}
