package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/runnables/internal/conventions"
	invyaml "github.com/slok/runnables/internal/inventory/yaml"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/printer"
	"github.com/slok/runnables/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug         bool
	NoLog         bool
	NoColor       bool
	LoggerType    string
	DBPath        string
	RunnablesFile string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := conventions.DBPath(homedir.HomeDir())
	app.Flag("db-path", "Path to the SQLite database file with the run history.").Envar(conventions.EnvDBPath).Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("file", "Path to the runnables definition file.").Short('f').Default(conventions.RunnablesFile).StringVar(&c.RunnablesFile)

	return c
}

// newInventory returns the inventory of the runnables file and the directory that contains
// it, relative runnable working directories are resolved from there.
func (r RootCommand) newInventory() (*invyaml.Repository, string, error) {
	path, err := filepath.Abs(r.RunnablesFile)
	if err != nil {
		return nil, "", fmt.Errorf("could not resolve runnables file path: %w", err)
	}

	dir := filepath.Dir(path)
	return invyaml.NewRepository(os.DirFS(dir), filepath.Base(path)), dir, nil
}

func (r RootCommand) newRunRepository(ctx context.Context) (*sqlite.Repository, error) {
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: r.DBPath,
		Logger: r.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, nil
}

func newPrinter(format string, w io.Writer) printer.Printer {
	switch format {
	case formatJSON:
		return printer.NewJSONPrinter(w)
	default:
		return printer.NewTablePrinter(w)
	}
}

// ExitError is returned when a command must end the application with a specific exit code.
type ExitError struct {
	Code int
}

func (e ExitError) Error() string { return fmt.Sprintf("exit code %d", e.Code) }
