package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
)

// TrackerConfig is the configuration for the tracker.
type TrackerConfig struct {
	Logger log.Logger
	// TimeNow is used to set the finish time of the runs, mainly for testing.
	TimeNow func() time.Time
}

func (c *TrackerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tracker.Tracker"})

	if c.TimeNow == nil {
		c.TimeNow = time.Now
	}
	return nil
}

type entry struct {
	run    model.Run
	handle *runnable.Handle
}

// Tracker keeps the runnables that are underway, so callers can check their state
// without blocking on them.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]entry

	// reserved counts the runnables being scheduled that are not pushed yet.
	reserved map[string]int
	logger   log.Logger
	timeNow  func() time.Time
}

// NewTracker returns a new tracker.
func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Tracker{
		entries:  map[string]entry{},
		reserved: map[string]int{},
		logger:   cfg.Logger,
		timeNow:  cfg.TimeNow,
	}, nil
}

// Push starts tracking a run and the handle executing it.
func (t *Tracker) Push(run model.Run, h *runnable.Handle) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required: %w", model.ErrNotValid)
	}
	if h == nil {
		return fmt.Errorf("run handle is required: %w", model.ErrNotValid)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[run.ID]; ok {
		return fmt.Errorf("run %s: %w", run.ID, model.ErrAlreadyExists)
	}
	t.entries[run.ID] = entry{run: run, handle: h}
	t.logger.Debugf("Tracking run %s of %s", run.ID, run.RunnableName)

	return nil
}

// Get returns a tracked run with its current output and its handle.
func (t *Tracker) Get(id string) (*model.Run, *runnable.Handle, error) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	run := t.snapshot(e)
	return &run, e.handle, nil
}

// List returns the tracked runs, oldest first.
func (t *Tracker) List() []model.Run {
	t.mu.RLock()
	entries := make([]entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	runs := make([]model.Run, 0, len(entries))
	for _, e := range entries {
		runs = append(runs, t.snapshot(e))
	}
	sortRuns(runs)

	return runs
}

// WasScheduled returns true if a run of the runnable is still underway or being scheduled.
func (t *Tracker) WasScheduled(runnableName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.underway(runnableName)
}

// Reserve marks a runnable as underway while its run is being launched, it fails with
// ErrAlreadyExists if the runnable is already underway or reserved. The reservation must be
// released once the run is pushed or its scheduling failed, releasing it more than once is safe.
func (t *Tracker) Reserve(runnableName string) (release func(), err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.underway(runnableName) {
		return nil, fmt.Errorf("runnable %q is already underway: %w", runnableName, model.ErrAlreadyExists)
	}
	t.reserved[runnableName]++

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()

			t.reserved[runnableName]--
			if t.reserved[runnableName] <= 0 {
				delete(t.reserved, runnableName)
			}
		})
	}, nil
}

// underway must be called with the lock held.
func (t *Tracker) underway(runnableName string) bool {
	if t.reserved[runnableName] > 0 {
		return true
	}

	for _, e := range t.entries {
		if e.run.RunnableName != runnableName {
			continue
		}
		if _, done := e.handle.Result(); !done {
			return true
		}
	}
	return false
}

// Terminate terminates a tracked run. The run keeps being tracked until it's polled.
func (t *Tracker) Terminate(id string) error {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}

	if !e.handle.TerminationHandle().Terminate() {
		return fmt.Errorf("run %s already finished: %w", id, model.ErrNotValid)
	}
	t.logger.Infof("Run %s terminated", id)

	return nil
}

// Poll checks every tracked run without blocking and returns the finished ones with their
// terminal state. Finished runs keep being tracked until they are removed.
func (t *Tracker) Poll(ctx context.Context) []model.Run {
	t.mu.RLock()
	entries := make([]entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	finished := []model.Run{}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}

		outcome, ok := e.handle.Result()
		if !ok || !outputSettled(e.handle, outcome) {
			continue
		}

		run := finish(e.run, outcome, t.timeNow())
		run.Output = outputOf(e.handle)
		finished = append(finished, run)
	}
	sortRuns(finished)

	return finished
}

// Remove stops tracking a run.
func (t *Tracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[id]; !ok {
		return fmt.Errorf("run %s: %w", id, model.ErrNotFound)
	}
	delete(t.entries, id)
	t.logger.Debugf("Run %s not tracked anymore", id)

	return nil
}

func (t *Tracker) snapshot(e entry) model.Run {
	run := e.run
	if outcome, ok := e.handle.Result(); ok {
		run = finish(run, outcome, t.timeNow())
	}
	run.Output = outputOf(e.handle)
	return run
}

func finish(run model.Run, outcome runnable.Outcome, now time.Time) model.Run {
	switch {
	case outcome.Terminated():
		run.Status = model.RunStatusTerminated
	case outcome.Failed():
		run.Status = model.RunStatusErrored
		run.Error = outcome.Err.Error()
	case outcome.Result.Status.Success():
		run.Status = model.RunStatusSucceeded
		run.ExitCode = outcome.Result.Status.Code
	default:
		run.Status = model.RunStatusFailed
		run.ExitCode = outcome.Result.Status.Code
	}

	if run.FinishedAt == nil {
		run.FinishedAt = &now
	}
	return run
}

// outputSettled returns true when the captured output of a finished run is complete. A
// completed process still needs its output drained, the rest are taken as they are.
func outputSettled(h *runnable.Handle, outcome runnable.Outcome) bool {
	if h.Output() == nil || outcome.Err != nil {
		return true
	}
	select {
	case <-h.Output().Done():
		return true
	default:
		return false
	}
}

func outputOf(h *runnable.Handle) string {
	if h.Output() == nil {
		return ""
	}
	return h.Output().Snapshot()
}

func sortRuns(runs []model.Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].StartedAt.Before(runs[j].StartedAt)
	})
}
