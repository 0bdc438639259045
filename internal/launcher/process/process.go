package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/runnable"
	"github.com/slok/runnables/internal/utils/env"
)

// LauncherConfig is the configuration for the process launcher.
type LauncherConfig struct {
	// BaseEnv is the environment inherited by the runnables.
	// Default: the current process environment.
	BaseEnv map[string]string
	// KeepRunningOnTerminate leaves the process alive when its handle is terminated.
	KeepRunningOnTerminate bool
	Logger                 log.Logger
}

func (c *LauncherConfig) defaults() error {
	if c.BaseEnv == nil {
		c.BaseEnv = env.FromList(os.Environ())
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "launcher.Process"})
	return nil
}

// Launcher launches runnables as local child processes.
type Launcher struct {
	baseEnv    map[string]string
	killOnTerm bool
	logger     log.Logger
}

// NewLauncher creates a new process launcher.
func NewLauncher(cfg LauncherConfig) (*Launcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Launcher{
		baseEnv:    cfg.BaseEnv,
		killOnTerm: !cfg.KeepRunningOnTerminate,
		logger:     cfg.Logger,
	}, nil
}

// Launch starts the runnable process.
func (l *Launcher) Launch(ctx context.Context, req launcher.Request) (*runnable.Handle, error) {
	if err := req.Runnable.Validate(); err != nil {
		return nil, err
	}

	logger := l.logger.WithValues(log.Kv{"runnable": req.Runnable.Name})

	cmd := exec.Command(req.Runnable.Command, req.Runnable.Args...)
	cmd.Dir = launcher.WorkingDir(req)
	cmd.Env = env.ToList(env.MergeMaps(env.MergeMaps(l.baseEnv, req.Runnable.Env), req.Env))
	setProcessGroup(cmd)

	// Our own pipes instead of cmd.StdoutPipe, Wait must not close them before the
	// output is drained.
	var stdoutR, stderrR, stdoutW, stderrW *os.File
	closeAll := func(files ...*os.File) {
		for _, f := range files {
			if f != nil {
				_ = f.Close()
			}
		}
	}
	if req.Runnable.CaptureOutput {
		var err error
		stdoutR, stdoutW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("could not create stdout pipe: %w", err)
		}
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			closeAll(stdoutR, stdoutW)
			return nil, fmt.Errorf("could not create stderr pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		logger.Warningf("Could not start runnable: %s", err)

		startErr := fmt.Errorf("could not start %q: %w", req.Runnable.Command, err)
		return runnable.NewHandle(func(context.Context) (runnable.ExitStatus, error) {
			return runnable.ExitStatus{}, startErr
		}, nil, logger), nil
	}

	// The child has its own copy of the write ends.
	closeAll(stdoutW, stderrW)

	logger.Debugf("Started runnable process %d in %q", cmd.Process.Pid, cmd.Dir)

	var output *runnable.PendingOutput
	if req.Runnable.CaptureOutput {
		output = runnable.NewPendingOutput(stdoutR, stderrR, logger)
	}

	wait := func(ctx context.Context) (runnable.ExitStatus, error) {
		if l.killOnTerm {
			stop := context.AfterFunc(ctx, func() {
				// The children hold the output pipes too.
				logger.Infof("Killing terminated runnable process group %d", cmd.Process.Pid)
				if err := killProcessGroup(cmd); err != nil {
					logger.Warningf("Could not kill process group %d: %s", cmd.Process.Pid, err)
				}
			})
			defer stop()
		}

		return exitStatus(cmd.Wait())
	}

	return runnable.NewHandle(wait, output, logger), nil
}

func exitStatus(err error) (runnable.ExitStatus, error) {
	if err == nil {
		return runnable.ExitStatus{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return runnable.ExitStatus{Code: exitErr.ExitCode()}, nil
	}

	return runnable.ExitStatus{}, fmt.Errorf("could not wait for process: %w", err)
}
