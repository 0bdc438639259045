package model

import (
	"fmt"
	"time"
)

// RunStatus represents the status of a runnable execution.
type RunStatus string

const (
	// RunStatusRunning indicates the runnable is underway.
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded indicates the process exited with a zero exit code.
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed indicates the process exited with a non zero exit code.
	RunStatusFailed RunStatus = "failed"
	// RunStatusErrored indicates the process could not be launched or waited on.
	RunStatusErrored RunStatus = "errored"
	// RunStatusTerminated indicates the run was terminated before completion.
	RunStatusTerminated RunStatus = "terminated"
)

// IsTerminal returns true if the status can't change anymore.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusErrored, RunStatusTerminated:
		return true
	}
	return false
}

// Valid returns true if the status is a known one.
func (s RunStatus) Valid() bool {
	return s == RunStatusRunning || s.IsTerminal()
}

// Run is a single execution of a runnable.
type Run struct {
	ID           string
	RunnableName string
	Command      []string
	Engine       EngineType
	Status       RunStatus
	// ExitCode is only meaningful for succeeded and failed runs.
	ExitCode int
	// Error is the launch error of errored runs.
	Error string
	// Output is the captured output, empty if capture was not requested.
	Output     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Duration returns how long the run took, or has been running until now.
func (r Run) Duration(now time.Time) time.Duration {
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Validate validates the run.
func (r Run) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("run id is required: %w", ErrNotValid)
	}
	if r.RunnableName == "" {
		return fmt.Errorf("run %s runnable name is required: %w", r.ID, ErrNotValid)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("run %s status %q is not valid: %w", r.ID, r.Status, ErrNotValid)
	}
	if r.StartedAt.IsZero() {
		return fmt.Errorf("run %s start time is required: %w", r.ID, ErrNotValid)
	}
	return nil
}
