package lib

import (
	"errors"
	"time"

	"github.com/slok/runnables/internal/launcher/fake"
	"github.com/slok/runnables/internal/model"
)

// EngineType identifies the engine used to launch runnables.
type EngineType string

const (
	// EngineProcess runs the runnables as local child processes.
	EngineProcess EngineType = EngineType(model.EngineProcess)

	// EngineDocker runs the runnables inside Docker containers.
	// Requires access to a Docker daemon.
	EngineDocker EngineType = EngineType(model.EngineDocker)

	// EngineFake simulates the runnables without running anything.
	// Use this for unit testing, see [FakeScript].
	EngineFake EngineType = EngineType(model.EngineFake)
)

// RunStatus represents the state of a run.
//
// A run starts as running and ends in one of the other statuses.
type RunStatus string

const (
	// RunStatusRunning indicates the run is underway.
	RunStatusRunning RunStatus = RunStatus(model.RunStatusRunning)
	// RunStatusSucceeded indicates the runnable exited with a zero exit code.
	RunStatusSucceeded RunStatus = RunStatus(model.RunStatusSucceeded)
	// RunStatusFailed indicates the runnable exited with a non zero exit code.
	RunStatusFailed RunStatus = RunStatus(model.RunStatusFailed)
	// RunStatusErrored indicates the runnable could not be launched.
	RunStatusErrored RunStatus = RunStatus(model.RunStatusErrored)
	// RunStatusTerminated indicates the run was terminated before it finished.
	RunStatusTerminated RunStatus = RunStatus(model.RunStatusTerminated)
)

// Runnable is the definition of a command that can be spawned.
type Runnable struct {
	// Name is the unique identifier of the runnable (required).
	Name string
	// Label is an optional human friendly name.
	Label string
	// Command is the binary to execute (required).
	Command string
	// Args are passed to the command as is.
	Args []string
	// Cwd is the working directory, relative ones are resolved from the runnables file
	// directory or the spawn Cwd.
	Cwd string
	// Env contains additional environment variables.
	Env map[string]string
	// CaptureOutput enables capturing the stdout and stderr of the runs.
	CaptureOutput bool
	// DockerImage runs the runnable inside a container of this image when set.
	DockerImage string
}

// RunnableEntry is a runnable listed by [Client.Runnables].
type RunnableEntry struct {
	Runnable Runnable
	// Running is true if the runnable has a run underway in this client.
	Running bool
}

// ListRunnablesOpts filters the listed runnables.
type ListRunnablesOpts struct {
	// Query only lists the runnables whose name or label contains it, case insensitive.
	Query string
	// HideRunning hides the runnables with a run underway.
	HideRunning bool
}

// Run is a single execution of a runnable.
//
// This is a read-only snapshot of the run at the time of the API call.
type Run struct {
	// ID is the unique identifier (ULID) of the run.
	ID string
	// RunnableName is the name of the spawned runnable.
	RunnableName string
	// Command is the executed command with its arguments.
	Command []string
	// Engine is the engine used to launch the runnable.
	Engine EngineType
	// Status is the current state of the run.
	Status RunStatus
	// ExitCode is only meaningful for succeeded and failed runs.
	ExitCode int
	// Error is the launch error of errored runs.
	Error string
	// Output is the captured output so far.
	Output string
	// StartedAt is when the run was spawned.
	StartedAt time.Time
	// FinishedAt is when the run finished. Nil while running.
	FinishedAt *time.Time
}

// SpawnOpts configures how a runnable is spawned.
//
// Pass nil to [Client.Spawn] to use defaults.
type SpawnOpts struct {
	// Cwd is the directory used to resolve relative runnable working directories.
	Cwd string
	// Env is merged on top of the runnable environment.
	Env map[string]string
	// Timeout terminates the run if it's still running after it. 0 means no timeout.
	Timeout time.Duration
}

// ListRunsOpts filters the runs listed by [Client.Runs].
//
// Pass nil to list all the runs.
type ListRunsOpts struct {
	// RunnableName only lists the runs of this runnable.
	RunnableName string
	// Status only lists the runs with this status.
	Status *RunStatus
	// Limit is the max number of runs, 0 means all.
	Limit int
}

// FakeScript describes how a runnable behaves with [EngineFake].
type FakeScript struct {
	// Stdout are the lines written to the standard output.
	Stdout []string
	// Stderr are the lines written to the standard error.
	Stderr []string
	// ExitCode is the exit code of the run.
	ExitCode int
	// LaunchErr makes the run fail to launch.
	LaunchErr error
	// Duration is how long the run lasts.
	Duration time.Duration
	// Hang keeps the run underway until it's terminated.
	Hang bool
}

// Errors returned by the SDK, check them with [errors.Is].
var (
	// ErrNotFound is returned when a runnable or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when spawning a runnable that is already running.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned on invalid options or operations on finished runs.
	ErrNotValid = errors.New("not valid")
	// ErrTerminated is returned when waiting on a run that was terminated.
	ErrTerminated = errors.New("terminated")
)

func toInternalRunnables(rs []Runnable) []model.Runnable {
	result := make([]model.Runnable, 0, len(rs))
	for _, r := range rs {
		mr := model.Runnable{
			Name:          r.Name,
			Label:         r.Label,
			Command:       r.Command,
			Args:          r.Args,
			Cwd:           r.Cwd,
			Env:           r.Env,
			CaptureOutput: r.CaptureOutput,
		}
		if r.DockerImage != "" {
			mr.Docker = &model.DockerConfig{Image: r.DockerImage}
		}
		result = append(result, mr)
	}
	return result
}

func fromInternalRunnable(r model.Runnable) Runnable {
	res := Runnable{
		Name:          r.Name,
		Label:         r.Label,
		Command:       r.Command,
		Args:          r.Args,
		Cwd:           r.Cwd,
		Env:           r.Env,
		CaptureOutput: r.CaptureOutput,
	}
	if r.Docker != nil {
		res.DockerImage = r.Docker.Image
	}
	return res
}

func fromInternalRun(r model.Run) Run {
	return Run{
		ID:           r.ID,
		RunnableName: r.RunnableName,
		Command:      r.Command,
		Engine:       EngineType(r.Engine),
		Status:       RunStatus(r.Status),
		ExitCode:     r.ExitCode,
		Error:        r.Error,
		Output:       r.Output,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

func fromInternalRunList(rs []model.Run) []Run {
	result := make([]Run, len(rs))
	for i, r := range rs {
		result[i] = fromInternalRun(r)
	}
	return result
}

func toInternalScripts(scripts map[string]FakeScript) map[string]fake.Script {
	result := make(map[string]fake.Script, len(scripts))
	for name, s := range scripts {
		result[name] = fake.Script{
			Stdout:   s.Stdout,
			Stderr:   s.Stderr,
			ExitCode: s.ExitCode,
			Err:      s.LaunchErr,
			Duration: s.Duration,
			Hang:     s.Hang,
		}
	}
	return result
}
