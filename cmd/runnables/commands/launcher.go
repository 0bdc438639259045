package commands

import (
	"fmt"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/launcher/docker"
	"github.com/slok/runnables/internal/launcher/process"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
)

const engineAuto = "auto"

var engineValues = []string{engineAuto, string(model.EngineProcess), string(model.EngineDocker)}

// newLauncher creates a launcher that selects the engine of each runnable, unless the
// engine is forced.
func newLauncher(engine string, logger log.Logger) (*launcher.Selector, error) {
	pl, err := process.NewLauncher(process.LauncherConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create process launcher: %w", err)
	}

	// The Docker client is lazy, it doesn't connect until a runnable needs it.
	dl, err := docker.NewLauncher(docker.LauncherConfig{PullImage: true, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create docker launcher: %w", err)
	}

	force := model.EngineType("")
	if engine != engineAuto {
		force = model.EngineType(engine)
	}

	return launcher.NewSelector(launcher.SelectorConfig{
		Launchers: map[model.EngineType]launcher.Launcher{
			model.EngineProcess: pl,
			model.EngineDocker:  dl,
		},
		Force: force,
	})
}
