package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/oklog/run"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/app/history"
	"github.com/slok/runnables/internal/app/inspect"
	"github.com/slok/runnables/internal/app/schedule"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/mcp"
	"github.com/slok/runnables/internal/tracker"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	// Version is the version reported to the MCP clients.
	Version string

	listenAddr      string
	syncInterval    time.Duration
	maxWait         time.Duration
	engine          string
	allowConcurrent bool
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve the runnables as MCP tools, over stdio unless a listen address is set.")
	c.Cmd.Flag("listen-address", "Serve MCP over streamable HTTP on this address instead of stdio (e.g. :8080).").StringVar(&c.listenAddr)
	c.Cmd.Flag("sync-interval", "Interval used to store the state of the finished runs.").Default("1s").DurationVar(&c.syncInterval)
	c.Cmd.Flag("max-wait", "Max time a tool call waits for a run to finish.").Default("10m").DurationVar(&c.maxWait)
	c.Cmd.Flag("engine", "Engine used to run the runnables.").Default(engineAuto).EnumVar(&c.engine, engineValues...)
	c.Cmd.Flag("allow-concurrent", "Allow spawning a runnable that is already running.").BoolVar(&c.allowConcurrent)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
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

	l, err := newLauncher(c.engine, logger)
	if err != nil {
		return err
	}

	tr, err := tracker.NewTracker(tracker.TrackerConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create tracker: %w", err)
	}

	sched, err := schedule.NewService(schedule.ServiceConfig{
		Inventory:       inv,
		Launcher:        l,
		Tracker:         tr,
		Repository:      repo,
		AllowConcurrent: c.allowConcurrent,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("could not create schedule service: %w", err)
	}

	cat, err := catalog.NewService(catalog.ServiceConfig{Inventory: inv, Scheduled: tr, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create catalog service: %w", err)
	}

	insp, err := inspect.NewService(inspect.ServiceConfig{Tracker: tr, Repository: repo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create inspect service: %w", err)
	}

	hist, err := history.NewService(history.ServiceConfig{Repository: repo, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create history service: %w", err)
	}

	server, err := mcp.NewServer(mcp.ServerConfig{
		Catalog:   cat,
		Scheduler: sched,
		Inspector: insp,
		History:   hist,
		Version:   c.Version,
		MaxWait:   c.maxWait,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create MCP server: %w", err)
	}

	var g run.Group

	// Context cancellation.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Finished runs sync.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return sched.Track(ctx, c.syncInterval)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// MCP server.
	if c.listenAddr == "" {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				logger.Infof("Serving MCP over stdio")
				return server.Run(ctx, &mcpsdk.StdioTransport{})
			},
			func(_ error) {
				cancel()
			},
		)
	} else {
		httpServer := &http.Server{
			Addr: c.listenAddr,
			Handler: mcpsdk.NewStreamableHTTPHandler(
				func(_ *http.Request) *mcpsdk.Server { return server },
				nil,
			),
		}
		g.Add(
			func() error {
				logger.Infof("Serving MCP on %s", c.listenAddr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %w", err)
				}
				return nil
			},
			func(_ error) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(ctx)
			},
		)
	}

	err = g.Run()

	terminateRuns(tr, sched, logger)

	return err
}

// terminateRuns terminates the runs that are still underway and stores their final state.
func terminateRuns(tr *tracker.Tracker, sched *schedule.Service, logger log.Logger) {
	for _, r := range tr.List() {
		// Finished runs fail with ErrNotValid and are only stored.
		if err := tr.Terminate(r.ID); err == nil {
			logger.Warningf("Run %s of %s terminated on shutdown", r.ID, r.RunnableName)
		}
	}

	if _, err := sched.Sync(context.Background()); err != nil {
		logger.Errorf("Could not store the terminated runs: %s", err)
	}
}
