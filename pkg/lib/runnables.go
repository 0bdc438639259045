package lib

import (
	"context"
	"fmt"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/app/schedule"
)

// Runnables lists the runnables that can be spawned, in definition order.
// Pass nil opts to list all of them.
func (c *Client) Runnables(ctx context.Context, opts *ListRunnablesOpts) ([]RunnableEntry, error) {
	req := catalog.Request{}
	if opts != nil {
		req.Query = opts.Query
		req.HideScheduled = opts.HideRunning
	}

	entries, err := c.catalog.List(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]RunnableEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, RunnableEntry{
			Runnable: fromInternalRunnable(e.Runnable),
			Running:  e.Scheduled,
		})
	}
	return result, nil
}

// Spawn launches a runnable and returns the handle of its run, the run keeps going in the
// background. Pass nil opts for defaults.
//
// Returns [ErrNotFound] if the runnable does not exist, or [ErrAlreadyExists] if it's
// already running and the client doesn't allow concurrent runs.
func (c *Client) Spawn(ctx context.Context, name string, opts *SpawnOpts) (*Handle, error) {
	req := schedule.Request{Name: name, Cwd: c.baseDir}
	if opts != nil {
		if opts.Cwd != "" {
			req.Cwd = opts.Cwd
		}
		req.Env = opts.Env
		req.Timeout = opts.Timeout
	}

	sc, err := c.scheduler.Schedule(ctx, req)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not spawn %q: %w", name, err))
	}

	return &Handle{sc: sc, client: c}, nil
}

// Handle controls a spawned run.
type Handle struct {
	sc     *schedule.Scheduled
	client *Client
}

// ID returns the run ID.
func (h *Handle) ID() string { return h.sc.Run.ID }

// Done is closed once the run finishes.
func (h *Handle) Done() <-chan struct{} { return h.sc.Handle.Done() }

// Terminate terminates the run, false means it had already finished.
func (h *Handle) Terminate() bool { return h.sc.Handle.TerminationHandle().Terminate() }

// Output returns the output captured so far.
func (h *Handle) Output() string {
	out := h.sc.Handle.Output()
	if out == nil {
		return ""
	}
	return out.Snapshot()
}

// Follow calls fn with every output line as it's produced, until the output ends or the
// context is cancelled. Lines keep their trailing newline.
//
// The lines are delivered once: concurrent followers of the same run split them.
func (h *Handle) Follow(ctx context.Context, fn func(line string)) error {
	out := h.sc.Handle.Output()
	if out == nil {
		return fmt.Errorf("output of run %s is not captured: %w", h.ID(), ErrNotValid)
	}

	lines := out.Subscribe()
	for {
		line, ok, err := lines.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		fn(line)
	}
}

// Wait blocks until the run finishes and returns its recorded final state.
func (h *Handle) Wait(ctx context.Context) (*Run, error) {
	run, err := h.client.scheduler.Wait(ctx, h.sc)
	if err != nil {
		return nil, mapError(err)
	}

	res := fromInternalRun(*run)
	return &res, nil
}
