package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/app/history"
	"github.com/slok/runnables/internal/app/inspect"
	"github.com/slok/runnables/internal/app/schedule"
	"github.com/slok/runnables/internal/conventions"
	"github.com/slok/runnables/internal/inventory"
	invmemory "github.com/slok/runnables/internal/inventory/memory"
	invyaml "github.com/slok/runnables/internal/inventory/yaml"
	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/launcher/docker"
	"github.com/slok/runnables/internal/launcher/fake"
	"github.com/slok/runnables/internal/launcher/process"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/storage"
	"github.com/slok/runnables/internal/storage/memory"
	"github.com/slok/runnables/internal/storage/sqlite"
	"github.com/slok/runnables/internal/tracker"
)

// Config configures the SDK client.
//
// The runnables come from Runnables when set, otherwise from RunnablesFile.
type Config struct {
	// Runnables is a static list of runnables.
	Runnables []Runnable

	// RunnablesFile is the YAML file with the runnables definitions.
	// Default: runnables.yaml in the current directory.
	RunnablesFile string

	// DBPath is the SQLite database path where the runs are recorded.
	// Default: ~/.runnables/runnables.db.
	DBPath string

	// InMemory records the runs in memory instead of SQLite, they are lost on Close.
	InMemory bool

	// Engine forces all the runnables to use this engine type.
	// When empty (default), runnables with a Docker config use [EngineDocker]
	// and the rest [EngineProcess].
	//
	// Set this to [EngineFake] for testing without running anything.
	Engine EngineType

	// FakeScripts describe the behavior of the runnables by name when using [EngineFake].
	FakeScripts map[string]FakeScript

	// AllowConcurrent allows spawning a runnable that is already running.
	AllowConcurrent bool

	// SyncInterval is how often the state of the finished runs is recorded.
	// Default: 1s.
	SyncInterval time.Duration

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.DBPath == "" && !c.InMemory {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.DBPath(home)
	}

	if c.RunnablesFile == "" {
		c.RunnablesFile = conventions.RunnablesFile
	}

	switch c.Engine {
	case "", EngineProcess, EngineDocker, EngineFake:
	default:
		return fmt.Errorf("unsupported engine type %q: %w", c.Engine, ErrNotValid)
	}

	if c.SyncInterval <= 0 {
		c.SyncInterval = time.Second
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Client is the main SDK entry point for spawning runnables and reading their runs.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	baseDir   string
	tracker   *tracker.Tracker
	catalog   *catalog.Service
	scheduler *schedule.Service
	inspector *inspect.Service
	history   *history.Service
	logger    log.Logger

	stopTrack context.CancelFunc
	trackDone chan struct{}
	closeOnce sync.Once
	closeFn   func() error
}

// New creates a new SDK client.
//
// The caller must call [Client.Close] when done, runs still underway are terminated.
// Typically used with defer:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, mapError(fmt.Errorf("invalid config: %w", err))
	}

	inv, baseDir, err := newInventory(cfg)
	if err != nil {
		return nil, mapError(err)
	}

	l, err := newLauncher(cfg)
	if err != nil {
		return nil, mapError(err)
	}

	var (
		repo    storage.RunRepository
		closeFn = func() error { return nil }
	)
	if cfg.InMemory {
		repo, err = memory.NewRepository(memory.RepositoryConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
	} else {
		sqliteRepo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
			DBPath: cfg.DBPath,
			Logger: cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create repository: %w", err)
		}
		repo = sqliteRepo
		closeFn = sqliteRepo.Close
	}

	tr, err := tracker.NewTracker(tracker.TrackerConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create tracker: %w", err)
	}

	scheduler, err := schedule.NewService(schedule.ServiceConfig{
		Inventory:       inv,
		Launcher:        l,
		Tracker:         tr,
		Repository:      repo,
		AllowConcurrent: cfg.AllowConcurrent,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	cat, err := catalog.NewService(catalog.ServiceConfig{Inventory: inv, Scheduled: tr, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	insp, err := inspect.NewService(inspect.ServiceConfig{Tracker: tr, Repository: repo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	hist, err := history.NewService(history.ServiceConfig{Repository: repo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	c := &Client{
		baseDir:   baseDir,
		tracker:   tr,
		catalog:   cat,
		scheduler: scheduler,
		inspector: insp,
		history:   hist,
		logger:    cfg.Logger,
		trackDone: make(chan struct{}),
		closeFn:   closeFn,
	}

	// The client outlives the creation context.
	trackCtx, stopTrack := context.WithCancel(context.WithoutCancel(ctx))
	c.stopTrack = stopTrack
	go func() {
		defer close(c.trackDone)
		if err := scheduler.Track(trackCtx, cfg.SyncInterval); err != nil {
			c.logger.Errorf("Could not track runs: %s", err)
		}
	}()

	return c, nil
}

// Close terminates the runs still underway, records their final state and releases the
// resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for _, r := range c.tracker.List() {
			// Finished runs only need to be recorded.
			_ = c.tracker.Terminate(r.ID)
		}

		// Track makes a last sync before returning.
		c.stopTrack()
		<-c.trackDone

		err = c.closeFn()
	})
	return err
}

func newInventory(cfg Config) (inventory.Repository, string, error) {
	if cfg.Runnables != nil {
		repo, err := invmemory.NewRepository(toInternalRunnables(cfg.Runnables))
		if err != nil {
			return nil, "", fmt.Errorf("invalid runnables: %w", err)
		}
		return repo, "", nil
	}

	path, err := filepath.Abs(cfg.RunnablesFile)
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve runnables file path: %w", err)
	}
	dir := filepath.Dir(path)

	return invyaml.NewRepository(os.DirFS(dir), filepath.Base(path)), dir, nil
}

// newLauncher creates the launcher for the configured engine.
func newLauncher(cfg Config) (launcher.Launcher, error) {
	launchers := map[model.EngineType]launcher.Launcher{}

	if cfg.Engine == EngineFake {
		fl, err := fake.NewLauncher(fake.LauncherConfig{
			Scripts: toInternalScripts(cfg.FakeScripts),
			Logger:  cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create fake launcher: %w", err)
		}
		launchers[model.EngineFake] = fl
	} else {
		pl, err := process.NewLauncher(process.LauncherConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create process launcher: %w", err)
		}
		launchers[model.EngineProcess] = pl

		dl, err := docker.NewLauncher(docker.LauncherConfig{PullImage: true, Logger: cfg.Logger})
		if err != nil {
			return nil, fmt.Errorf("could not create docker launcher: %w", err)
		}
		launchers[model.EngineDocker] = dl
	}

	return launcher.NewSelector(launcher.SelectorConfig{
		Launchers: launchers,
		Force:     model.EngineType(cfg.Engine),
	})
}
