package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/storage"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	query      string
	hideActive bool
	format     string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List the runnables of the runnables file.")
	c.Cmd.Arg("query", "Only list the runnables whose name or label contain this text.").StringVar(&c.query)
	c.Cmd.Flag("hide-running", "Hide the runnables with a run underway.").BoolVar(&c.hideActive)
	c.Cmd.Flag("format", "Output format (table, json).").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	inv, _, err := c.rootCmd.newInventory()
	if err != nil {
		return err
	}

	repo, err := c.rootCmd.newRunRepository(ctx)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Runs of other processes are only known through the history.
	running, err := repo.ListRuns(ctx, storage.ListRunsOpts{Status: model.RunStatusRunning})
	if err != nil {
		return fmt.Errorf("could not list running runs: %w", err)
	}

	svc, err := catalog.NewService(catalog.ServiceConfig{
		Inventory: inv,
		Scheduled: newRecordedRunning(running),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	entries, err := svc.List(ctx, catalog.Request{
		Query:         c.query,
		HideScheduled: c.hideActive,
	})
	if err != nil {
		return fmt.Errorf("could not list runnables: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintRunnables(entries); err != nil {
		return fmt.Errorf("could not print runnables: %w", err)
	}

	return nil
}

// recordedRunning knows the runnables that have a run recorded as running.
type recordedRunning map[string]bool

func newRecordedRunning(runs []model.Run) recordedRunning {
	r := recordedRunning{}
	for _, run := range runs {
		r[run.RunnableName] = true
	}
	return r
}

func (r recordedRunning) WasScheduled(runnableName string) bool { return r[runnableName] }
