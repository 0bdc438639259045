package schedule

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/runnables/internal/inventory"
	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
	"github.com/slok/runnables/internal/storage"
	"github.com/slok/runnables/internal/tracker"
)

// ServiceConfig is the configuration for the schedule service.
type ServiceConfig struct {
	Inventory  inventory.Repository
	Launcher   launcher.Launcher
	Tracker    *tracker.Tracker
	Repository storage.RunRepository
	// AllowConcurrent allows scheduling a runnable that is already underway.
	AllowConcurrent bool
	Logger          log.Logger
	TimeNow         func() time.Time
	IDGen           func() string
}

func (c *ServiceConfig) defaults() error {
	if c.Inventory == nil {
		return fmt.Errorf("inventory is required")
	}
	if c.Launcher == nil {
		return fmt.Errorf("launcher is required")
	}
	if c.Tracker == nil {
		return fmt.Errorf("tracker is required")
	}
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Schedule"})

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	if c.IDGen == nil {
		c.IDGen = func() string {
			return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String())
		}
	}
	return nil
}

// Service schedules runnables and keeps the history of their runs in sync with their
// handles.
type Service struct {
	inventory       inventory.Repository
	launcher        launcher.Launcher
	tracker         *tracker.Tracker
	repo            storage.RunRepository
	allowConcurrent bool
	logger          log.Logger
	timeNow         func() time.Time
	idGen           func() string
}

// NewService creates a new schedule service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		inventory:       cfg.Inventory,
		launcher:        cfg.Launcher,
		tracker:         cfg.Tracker,
		repo:            cfg.Repository,
		allowConcurrent: cfg.AllowConcurrent,
		logger:          cfg.Logger,
		timeNow:         cfg.TimeNow,
		idGen:           cfg.IDGen,
	}, nil
}

// Request represents the schedule request parameters.
type Request struct {
	// Name is the name of the runnable in the inventory.
	Name string
	// Cwd is the caller working directory, relative runnable directories are resolved from it.
	Cwd string
	// Env is merged on top of the runnable environment.
	Env map[string]string
	// Timeout terminates the run if it's still underway after it, 0 means no timeout.
	Timeout time.Duration
}

// Scheduled is a runnable that is underway.
type Scheduled struct {
	Run    model.Run
	Handle *runnable.Handle
}

// Schedule launches a runnable and starts tracking it.
func (s *Service) Schedule(ctx context.Context, req Request) (*Scheduled, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("runnable name is required: %w", model.ErrNotValid)
	}
	if req.Timeout < 0 {
		return nil, fmt.Errorf("timeout can't be negative: %w", model.ErrNotValid)
	}

	r, err := s.inventory.GetRunnable(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("could not get runnable: %w", err)
	}

	// The reservation holds the runnable until its run is tracked.
	if !s.allowConcurrent {
		release, err := s.tracker.Reserve(r.Name)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	h, err := s.launcher.Launch(ctx, launcher.Request{
		Runnable: *r,
		Cwd:      req.Cwd,
		Env:      req.Env,
	})
	if err != nil {
		return nil, fmt.Errorf("could not launch runnable: %w", err)
	}

	run := model.Run{
		ID:           s.idGen(),
		RunnableName: r.Name,
		Command:      r.CommandLine(),
		Engine:       engineOf(s.launcher, *r),
		Status:       model.RunStatusRunning,
		StartedAt:    s.timeNow().UTC(),
	}
	logger := s.logger.WithValues(log.Kv{"runnable": r.Name, "run": run.ID})

	if err := s.repo.CreateRun(ctx, run); err != nil {
		h.TerminationHandle().Terminate()
		return nil, fmt.Errorf("could not store run: %w", err)
	}

	if err := s.tracker.Push(run, h); err != nil {
		h.TerminationHandle().Terminate()
		return nil, fmt.Errorf("could not track run: %w", err)
	}

	if req.Timeout > 0 {
		terminateOnTimeout(h, req.Timeout, logger)
	}

	logger.Infof("Runnable scheduled")

	return &Scheduled{Run: run, Handle: h}, nil
}

// terminateOnTimeout terminates the handle if it didn't finish before the timeout.
func terminateOnTimeout(h *runnable.Handle, timeout time.Duration, logger log.Logger) {
	timer := time.AfterFunc(timeout, func() {
		if h.TerminationHandle().Terminate() {
			logger.Warningf("Runnable terminated after reaching the %s timeout", timeout)
		}
	})
	go func() {
		<-h.Done()
		timer.Stop()
	}()
}

// Sync stores the final state of the runs that finished since the last sync and returns them.
// Runs that could not be stored keep being tracked, so the next sync retries them.
func (s *Service) Sync(ctx context.Context) ([]model.Run, error) {
	finished := s.tracker.Poll(ctx)

	var errs []string
	for _, run := range finished {
		if err := s.repo.UpdateRun(ctx, run); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s", run.ID, err))
			continue
		}
		if err := s.tracker.Remove(run.ID); err != nil {
			// Another sync already stored it.
			s.logger.Debugf("Could not untrack run %s: %s", run.ID, err)
			continue
		}
		s.logger.Debugf("Run %s of %s stored with status %s", run.ID, run.RunnableName, run.Status)
	}

	if len(errs) > 0 {
		return finished, fmt.Errorf("could not store finished runs: %s", strings.Join(errs, "; "))
	}

	return finished, nil
}

// Track syncs the finished runs every interval until the context ends, a last sync is made
// before returning.
func (s *Service) Track(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive: %w", model.ErrNotValid)
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// Use a fresh context so the last results are not lost.
			if _, err := s.Sync(context.Background()); err != nil {
				s.logger.Errorf("Could not sync runs: %s", err)
			}
			return nil
		case <-t.C:
			if _, err := s.Sync(ctx); err != nil {
				s.logger.Errorf("Could not sync runs: %s", err)
			}
		}
	}
}

// Terminate terminates a run that is underway.
func (s *Service) Terminate(ctx context.Context, id string) error {
	if err := s.tracker.Terminate(id); err != nil {
		return fmt.Errorf("could not terminate run: %w", err)
	}

	return nil
}

// Wait waits for a scheduled run to finish and stores its final state.
func (s *Service) Wait(ctx context.Context, sc *Scheduled) (*model.Run, error) {
	select {
	case <-sc.Handle.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// The output is complete once the drains finish.
	if out := sc.Handle.Output(); out != nil {
		if outcome, _ := sc.Handle.Result(); outcome.Err == nil {
			if _, err := out.FullOutput(ctx); err != nil {
				return nil, err
			}
		}
	}

	if _, err := s.Sync(ctx); err != nil {
		return nil, err
	}

	run, err := s.repo.GetRun(ctx, sc.Run.ID)
	if err != nil {
		return nil, fmt.Errorf("could not get run: %w", err)
	}

	return run, nil
}

func engineOf(l launcher.Launcher, r model.Runnable) model.EngineType {
	if e, ok := l.(interface {
		Engine(model.Runnable) model.EngineType
	}); ok {
		return e.Engine(r)
	}
	return r.Engine()
}
