package runnable

import (
	"errors"
	"fmt"
)

// ErrTerminated is returned by a handle that was terminated before the underlying
// process reported its exit status.
var ErrTerminated = errors.New("runnable terminated")

// ExitStatus is the exit status reported by a finished process.
type ExitStatus struct {
	// Code is the process exit code, -1 when the process was killed by a signal.
	Code int
}

// Success returns true if the process exited with a zero exit code.
func (s ExitStatus) Success() bool { return s.Code == 0 }

func (s ExitStatus) String() string {
	if s.Code < 0 {
		return "exit status: signal"
	}
	return fmt.Sprintf("exit status: %d", s.Code)
}

// ExecutionResult is the terminal value of a runnable that ran to completion. A non-zero
// exit code is still a completed execution. Every caller gets its own copy, the output
// capture is the only shared part.
type ExecutionResult struct {
	Status ExitStatus
	// Output is the output capture of the process, nil when capture was not requested.
	Output *PendingOutput
}

// Outcome is the terminal state of a handle. Exactly one of Result or Err is set.
type Outcome struct {
	Result *ExecutionResult
	// Err is ErrTerminated when the handle was terminated, otherwise the error that
	// prevented the process from being launched or waited on.
	Err error
}

// Terminated returns true if the handle was terminated before completion.
func (o Outcome) Terminated() bool { return errors.Is(o.Err, ErrTerminated) }

// Failed returns true if the process could not be launched or waited on.
func (o Outcome) Failed() bool { return o.Err != nil && !o.Terminated() }

// clone returns the outcome with its own copy of the result.
func (o Outcome) clone() Outcome {
	if o.Result != nil {
		r := *o.Result
		o.Result = &r
	}
	return o
}
