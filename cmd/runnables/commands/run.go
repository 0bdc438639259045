package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/runnables/internal/app/schedule"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
	"github.com/slok/runnables/internal/tracker"
	"github.com/slok/runnables/internal/utils/env"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	name     string
	envSpecs []string
	timeout  time.Duration
	engine   string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a runnable streaming its output, exits with the runnable exit code.")
	c.Cmd.Arg("name", "Runnable name.").Required().StringVar(&c.name)
	c.Cmd.Flag("env", "Environment variables (KEY=VALUE or KEY from current environment). Can be repeated.").Short('e').StringsVar(&c.envSpecs)
	c.Cmd.Flag("timeout", "Terminate the run if it's still running after this duration, 0 disables it.").Default("0s").DurationVar(&c.timeout)
	c.Cmd.Flag("engine", "Engine used to run the runnable.").Default(engineAuto).EnumVar(&c.engine, engineValues...)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	runEnv, err := env.ParseSpecs(c.envSpecs)
	if err != nil {
		return fmt.Errorf("invalid --env value: %w", err)
	}

	inv, baseDir, err := c.rootCmd.newInventory()
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.newRunRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	l, err := newLauncher(c.engine, logger)
	if err != nil {
		return err
	}

	tr, err := tracker.NewTracker(tracker.TrackerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create tracker: %w", err)
	}

	svc, err := schedule.NewService(schedule.ServiceConfig{
		Inventory:  inv,
		Launcher:   l,
		Tracker:    tr,
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	sc, err := svc.Schedule(ctx, schedule.Request{
		Name:    c.name,
		Cwd:     baseDir,
		Env:     runEnv,
		Timeout: c.timeout,
	})
	if err != nil {
		return fmt.Errorf("could not run %q: %w", c.name, err)
	}

	streamed := make(chan struct{})
	go func() {
		defer close(streamed)
		c.stream(sc.Handle.Output())
	}()
	if sc.Handle.Output() == nil {
		logger.Infof("Output of %q is not captured", c.name)
	}

	stop := context.AfterFunc(ctx, func() {
		if sc.Handle.TerminationHandle().Terminate() {
			logger.Warningf("Run %s terminated", sc.Run.ID)
		}
	})
	defer stop()

	// The final state is stored even when the command is cancelled.
	run, err := svc.Wait(context.WithoutCancel(ctx), sc)
	if err != nil {
		return fmt.Errorf("could not wait for run %s: %w", sc.Run.ID, err)
	}
	<-streamed

	logger.WithValues(log.Kv{"run": run.ID}).Infof("Run finished: %s", run.Status)

	switch run.Status {
	case model.RunStatusSucceeded:
		return nil
	case model.RunStatusFailed:
		return ExitError{Code: run.ExitCode}
	case model.RunStatusErrored:
		return fmt.Errorf("run %s could not run: %s", run.ID, run.Error)
	default:
		return fmt.Errorf("run %s was %s", run.ID, run.Status)
	}
}

// stream writes the output lines as they are produced.
func (c RunCommand) stream(out *runnable.PendingOutput) {
	if out == nil {
		return
	}

	lines := out.Subscribe()
	for {
		line, ok, err := lines.Next(context.Background())
		if err != nil || !ok {
			return
		}
		fmt.Fprint(c.rootCmd.Stdout, line)
	}
}
