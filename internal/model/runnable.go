package model

import (
	"fmt"
	"strings"
)

// EngineType is the kind of engine used to launch a runnable.
type EngineType string

const (
	// EngineProcess runs the runnable as a local child process.
	EngineProcess EngineType = "process"
	// EngineDocker runs the runnable inside a Docker container.
	EngineDocker EngineType = "docker"
	// EngineFake simulates the runnable, only for testing.
	EngineFake EngineType = "fake"
)

// Runnable is the definition of a task that can be spawned.
type Runnable struct {
	// Name is the unique identifier of the runnable in the inventory.
	Name string
	// Label is an optional human friendly name.
	Label string
	// Command is the binary to execute.
	Command string
	// Args are the arguments passed to the command as is.
	Args []string
	// Cwd is the working directory, empty means the caller's one.
	Cwd string
	// Env contains additional environment variables.
	Env map[string]string
	// CaptureOutput enables the stdout/stderr capture of the runnable.
	CaptureOutput bool
	// Docker runs the runnable inside a container when set.
	Docker *DockerConfig
}

// DockerConfig contains Docker specific runnable configuration.
type DockerConfig struct {
	Image string
}

// DisplayName returns the name used to present the runnable.
func (r Runnable) DisplayName() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// CommandLine returns the command and its arguments.
func (r Runnable) CommandLine() []string {
	return append([]string{r.Command}, r.Args...)
}

// Engine returns the engine the runnable needs.
func (r Runnable) Engine() EngineType {
	if r.Docker != nil {
		return EngineDocker
	}
	return EngineProcess
}

// Validate validates the runnable definition.
func (r Runnable) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(r.Command) == "" {
		return fmt.Errorf("runnable %q command is required: %w", r.Name, ErrNotValid)
	}
	if r.Docker != nil && r.Docker.Image == "" {
		return fmt.Errorf("runnable %q docker image is required: %w", r.Name, ErrNotValid)
	}
	return nil
}
