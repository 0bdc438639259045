package launcher

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
)

// Request contains the parameters to launch a runnable.
type Request struct {
	Runnable model.Runnable
	// Cwd is the base working directory, relative runnable working directories are
	// resolved against it.
	Cwd string
	// Env contains environment variables that override the runnable ones.
	Env map[string]string
}

// Launcher knows how to spawn runnables.
//
// Invalid requests return an error. Once the request is accepted, failures to start the
// process are reported through the returned handle.
type Launcher interface {
	Launch(ctx context.Context, req Request) (*runnable.Handle, error)
}

// WorkingDir returns the directory where the runnable of the request should run.
func WorkingDir(req Request) string {
	switch {
	case req.Runnable.Cwd == "":
		return req.Cwd
	case filepath.IsAbs(req.Runnable.Cwd) || req.Cwd == "":
		return req.Runnable.Cwd
	default:
		return filepath.Join(req.Cwd, req.Runnable.Cwd)
	}
}

// SelectorConfig is the configuration for the engine selector.
type SelectorConfig struct {
	Launchers map[model.EngineType]Launcher
	// Force makes every runnable use this engine instead of its own.
	Force model.EngineType
}

func (c *SelectorConfig) defaults() error {
	if len(c.Launchers) == 0 {
		return fmt.Errorf("at least one launcher is required")
	}
	if c.Force != "" && c.Launchers[c.Force] == nil {
		return fmt.Errorf("forced engine %q has no launcher", c.Force)
	}
	return nil
}

// Selector is a Launcher that delegates on the launcher of the runnable engine.
type Selector struct {
	launchers map[model.EngineType]Launcher
	force     model.EngineType
}

// NewSelector returns a new engine selector.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Selector{
		launchers: cfg.Launchers,
		force:     cfg.Force,
	}, nil
}

// Engine returns the engine that will be used for the runnable.
func (s *Selector) Engine(r model.Runnable) model.EngineType {
	if s.force != "" {
		return s.force
	}
	return r.Engine()
}

// Launch launches the runnable with the launcher of its engine.
func (s *Selector) Launch(ctx context.Context, req Request) (*runnable.Handle, error) {
	engine := s.Engine(req.Runnable)
	l, ok := s.launchers[engine]
	if !ok {
		return nil, fmt.Errorf("engine %q is not available: %w", engine, model.ErrNotValid)
	}

	return l.Launch(ctx, req)
}
