package inspect

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
	"github.com/slok/runnables/internal/storage"
	"github.com/slok/runnables/internal/tracker"
)

// ServiceConfig is the configuration for the inspect service.
type ServiceConfig struct {
	// Tracker is optional, without it only the recorded state is returned.
	Tracker    *tracker.Tracker
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Inspect"})
	return nil
}

// Service gets the state of a single run.
type Service struct {
	tracker *tracker.Tracker
	repo    storage.RunRepository
	logger  log.Logger
}

// NewService creates a new inspect service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		tracker: cfg.Tracker,
		repo:    cfg.Repository,
		logger:  cfg.Logger,
	}, nil
}

// Result is the state of a run.
type Result struct {
	Run model.Run
	// Handle is set while the run is tracked.
	Handle *runnable.Handle
}

// Live returns true if the run state comes from its handle.
func (r Result) Live() bool { return r.Handle != nil }

// Get returns a run by ID, tracked runs are returned with their live state.
func (s *Service) Get(ctx context.Context, id string) (*Result, error) {
	if id == "" {
		return nil, fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}

	if s.tracker != nil {
		run, h, err := s.tracker.Get(id)
		if err == nil {
			return &Result{Run: *run, Handle: h}, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, fmt.Errorf("could not get tracked run: %w", err)
		}
	}

	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	return &Result{Run: *run}, nil
}
