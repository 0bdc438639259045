package lib

import (
	"context"

	"github.com/slok/runnables/internal/app/history"
	"github.com/slok/runnables/internal/model"
)

// Runs lists the recorded runs, newest first. Pass nil opts to list all of them.
func (c *Client) Runs(ctx context.Context, opts *ListRunsOpts) ([]Run, error) {
	req := history.Request{}
	if opts != nil {
		req.RunnableName = opts.RunnableName
		req.Limit = opts.Limit
		if opts.Status != nil {
			s := model.RunStatus(*opts.Status)
			req.StatusFilter = &s
		}
	}

	runs, err := c.history.List(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	return fromInternalRunList(runs), nil
}

// Run returns a run by ID, with the live state of the runs spawned by this client.
func (c *Client) Run(ctx context.Context, id string) (*Run, error) {
	res, err := c.inspector.Get(ctx, id)
	if err != nil {
		return nil, mapError(err)
	}

	run := fromInternalRun(res.Run)
	return &run, nil
}

// Terminate terminates a run spawned by this client.
//
// Returns [ErrNotFound] if the run is not underway in this client, or [ErrNotValid] if it
// already finished.
func (c *Client) Terminate(ctx context.Context, id string) error {
	return mapError(c.scheduler.Terminate(ctx, id))
}
