package runnable

import (
	"context"
	"fmt"
	"sync"

	"github.com/slok/runnables/internal/log"
)

// WaitFunc waits for a launched process and returns its exit status, or the error that
// prevented it from running. The context is cancelled when the handle is terminated, it's
// up to the implementation to kill the process or let it be.
type WaitFunc func(ctx context.Context) (ExitStatus, error)

// Handle represents a runnable that's already underway. It can be awaited and terminated
// from any number of goroutines, all of them observe the same outcome.
type Handle struct {
	output *PendingOutput
	state  *state
}

// NewHandle wraps the wait function of a launched process. The wait function is called
// exactly once, in the background.
func NewHandle(wait WaitFunc, output *PendingOutput, logger log.Logger) *Handle {
	if logger == nil {
		logger = log.Noop
	}

	ctx, cancel := context.WithCancel(context.Background())
	st := &state{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()

		status, err := runWait(ctx, wait)

		var res Outcome
		if err != nil {
			res.Err = err
		} else {
			res.Result = &ExecutionResult{Status: status, Output: output}
		}

		if !st.resolve(res) {
			logger.Debugf("Runnable finished after being terminated, ignoring result (%v, %v)", status, err)
		}
	}()

	return &Handle{
		output: output,
		state:  st,
	}
}

func runWait(ctx context.Context, wait WaitFunc) (status ExitStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runnable wait panicked: %v", r)
		}
	}()

	return wait(ctx)
}

// TerminationHandle returns a Terminator that can be used to terminate this runnable.
func (h *Handle) TerminationHandle() Terminator { return Terminator{state: h.state} }

// Output returns the output capture of the runnable, nil if capture was not requested.
func (h *Handle) Output() *PendingOutput { return h.output }

// Done is closed once the handle reached its outcome.
func (h *Handle) Done() <-chan struct{} { return h.state.done }

// Result returns the outcome of the runnable without blocking. ok is false while the
// runnable is still underway. Once set, the outcome never changes.
func (h *Handle) Result() (res Outcome, ok bool) {
	res, ok = h.state.get()
	return res.clone(), ok
}

// Wait blocks until the runnable reaches its outcome. It returns ErrTerminated if the
// handle was terminated, the launch error if the process could not run, or the context
// error if ctx ends first (the handle is not affected by it).
func (h *Handle) Wait(ctx context.Context) (*ExecutionResult, error) {
	select {
	case <-h.state.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	res, _ := h.state.get()
	if res.Err != nil {
		return nil, res.Err
	}
	return res.clone().Result, nil
}

// Terminator terminates the handle it was obtained from.
type Terminator struct {
	state *state
}

// Terminate makes the handle resolve to ErrTerminated if it didn't reach an outcome yet.
// It returns true if this call terminated the handle.
func (t Terminator) Terminate() bool {
	if t.state == nil {
		return false
	}

	terminated := t.state.resolve(Outcome{Err: ErrTerminated})
	if terminated {
		t.state.cancel()
	}
	return terminated
}

// state is the shared, write once, outcome of a handle.
type state struct {
	mu       sync.Mutex
	resolved bool
	outcome  Outcome
	done     chan struct{}
	cancel   context.CancelFunc
}

func (s *state) resolve(res Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return false
	}
	s.resolved = true
	s.outcome = res
	close(s.done)
	return true
}

func (s *state) get() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.resolved
}
