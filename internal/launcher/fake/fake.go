package fake

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/runnable"
)

// Script describes how a fake runnable behaves.
type Script struct {
	Stdout []string
	Stderr []string
	// ExitCode is the exit code reported when the runnable finishes.
	ExitCode int
	// Err makes the runnable fail to launch.
	Err error
	// Duration is how long the runnable runs.
	Duration time.Duration
	// Hang makes the runnable run until it's terminated.
	Hang bool
}

// LauncherConfig is the configuration for the fake launcher.
type LauncherConfig struct {
	// Scripts by runnable name, runnables without script exit with 0 and print nothing.
	Scripts map[string]Script
	Logger  log.Logger
}

func (c *LauncherConfig) defaults() error {
	if c.Scripts == nil {
		c.Scripts = map[string]Script{}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "launcher.Fake"})
	return nil
}

// Launcher is a fake launcher.Launcher that simulates runnables without running anything.
type Launcher struct {
	scripts  map[string]Script
	launches map[string]int
	mu       sync.Mutex
	logger   log.Logger
}

// NewLauncher creates a new fake launcher.
func NewLauncher(cfg LauncherConfig) (*Launcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Launcher{
		scripts:  cfg.Scripts,
		launches: map[string]int{},
		logger:   cfg.Logger,
	}, nil
}

// Launches returns how many times a runnable was launched.
func (l *Launcher) Launches(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches[name]
}

// Launch simulates the runnable of the request.
func (l *Launcher) Launch(ctx context.Context, req launcher.Request) (*runnable.Handle, error) {
	if err := req.Runnable.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.launches[req.Runnable.Name]++
	script := l.scripts[req.Runnable.Name]
	l.mu.Unlock()

	l.logger.Infof("Launching fake runnable %s", req.Runnable.Name)

	if script.Err != nil {
		err := script.Err
		return runnable.NewHandle(func(context.Context) (runnable.ExitStatus, error) {
			return runnable.ExitStatus{}, err
		}, nil, l.logger), nil
	}

	var output *runnable.PendingOutput
	if req.Runnable.CaptureOutput {
		output = runnable.NewPendingOutput(writeLines(script.Stdout), writeLines(script.Stderr), l.logger)
	}

	wait := func(ctx context.Context) (runnable.ExitStatus, error) {
		if script.Hang {
			<-ctx.Done()
			return runnable.ExitStatus{Code: -1}, nil
		}

		select {
		case <-time.After(script.Duration):
		case <-ctx.Done():
			return runnable.ExitStatus{Code: -1}, nil
		}
		return runnable.ExitStatus{Code: script.ExitCode}, nil
	}

	return runnable.NewHandle(wait, output, l.logger), nil
}

func writeLines(lines []string) io.Reader {
	r, w := io.Pipe()
	go func() {
		defer w.Close()
		for _, line := range lines {
			if _, err := io.WriteString(w, line+"\n"); err != nil {
				return
			}
		}
	}()

	return r
}
