// Package mcp exposes the runnables over the Model Context Protocol, so agents can spawn
// them and follow their runs.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/app/history"
	"github.com/slok/runnables/internal/app/inspect"
	"github.com/slok/runnables/internal/app/schedule"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/printer"
)

const instructions = `Runnables are named commands defined by the user (builds, tests, dev servers...).
List them with runnables_list, spawn one with runnable_spawn and follow the returned run
with runnable_status and runnable_output. Long running ones can be stopped with
runnable_terminate. Past runs are available with runs_history.`

// ServerConfig is the configuration for the MCP server.
type ServerConfig struct {
	Catalog   *catalog.Service
	Scheduler *schedule.Service
	Inspector *inspect.Service
	History   *history.Service
	Version   string
	// MaxWait caps how long a tool waits for a run to finish.
	MaxWait time.Duration
	Logger  log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Catalog == nil {
		return fmt.Errorf("catalog is required")
	}
	if c.Scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}
	if c.Inspector == nil {
		return fmt.Errorf("inspector is required")
	}
	if c.History == nil {
		return fmt.Errorf("history is required")
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.MaxWait <= 0 {
		c.MaxWait = 10 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mcp.Server"})
	return nil
}

// handler holds shared dependencies for all tool handlers.
type handler struct {
	catalog   *catalog.Service
	scheduler *schedule.Service
	inspector *inspect.Service
	history   *history.Service
	maxWait   time.Duration
	logger    log.Logger
}

// NewServer creates an MCP server with all the runnable tools registered.
func NewServer(cfg ServerConfig) (*mcp.Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	h := &handler{
		catalog:   cfg.Catalog,
		scheduler: cfg.Scheduler,
		inspector: cfg.Inspector,
		history:   cfg.History,
		maxWait:   cfg.MaxWait,
		logger:    cfg.Logger,
	}

	s := mcp.NewServer(&mcp.Implementation{Name: "runnables", Version: cfg.Version}, &mcp.ServerOptions{
		Instructions: instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runnables_list",
		Description: "List the runnables that can be spawned, optionally filtered by name.",
	}, h.listHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "runnable_spawn",
		Description: `Spawn a runnable and return its run ID.

The runnable keeps running in the background. Use runnable_status or runnable_output with the
returned run ID to follow it. A runnable that is already running can't be spawned again.`,
	}, h.spawnHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runnable_status",
		Description: "Get the status of a run: running, succeeded, failed, errored or terminated.",
	}, h.statusHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "runnable_output",
		Description: `Get the output captured from a run.

By default returns the output captured so far. With wait=true blocks until the run finishes
(bounded by timeout_seconds) and returns the complete output.`,
	}, h.outputHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runnable_terminate",
		Description: "Terminate a run that is still underway.",
	}, h.terminateHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "runs_history",
		Description: "List the recorded runs, newest first.",
	}, h.historyHandler)

	return s, nil
}

type listParams struct {
	Query         string `json:"query,omitempty" jsonschema:"case insensitive text the runnable name or label must contain"`
	HideScheduled bool   `json:"hide_scheduled,omitempty" jsonschema:"hide the runnables that are already running"`
}

func (h *handler) listHandler(ctx context.Context, req *mcp.CallToolRequest, params listParams) (*mcp.CallToolResult, any, error) {
	entries, err := h.catalog.List(ctx, catalog.Request{Query: params.Query, HideScheduled: params.HideScheduled})
	if err != nil {
		return h.errorResult("Could not list runnables", err)
	}
	if len(entries) == 0 {
		return textResult("No runnables found.")
	}

	return printed(func(p printer.Printer) error { return p.PrintRunnables(entries) })
}

type spawnParams struct {
	Name           string            `json:"name" jsonschema:"name of the runnable to spawn"`
	Cwd            string            `json:"cwd,omitempty" jsonschema:"directory used to resolve the runnable relative working directory"`
	Env            map[string]string `json:"env,omitempty" jsonschema:"extra environment variables for this run"`
	TimeoutSeconds int               `json:"timeout_seconds,omitempty" jsonschema:"terminate the run if it's still running after this many seconds"`
}

func (h *handler) spawnHandler(ctx context.Context, req *mcp.CallToolRequest, params spawnParams) (*mcp.CallToolResult, any, error) {
	if params.Name == "" {
		return errorResult("name is required")
	}
	if params.TimeoutSeconds < 0 {
		return errorResult("timeout_seconds can't be negative")
	}

	sc, err := h.scheduler.Schedule(ctx, schedule.Request{
		Name:    params.Name,
		Cwd:     params.Cwd,
		Env:     params.Env,
		Timeout: time.Duration(params.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return h.errorResult(fmt.Sprintf("Could not spawn %s", params.Name), err)
	}

	return textResult(fmt.Sprintf("Spawned %s, run ID: %s", sc.Run.RunnableName, sc.Run.ID))
}

type runParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID returned by runnable_spawn"`
}

func (h *handler) statusHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	res, err := h.inspector.Get(ctx, params.RunID)
	if err != nil {
		return h.errorResult(fmt.Sprintf("Could not get run %s", params.RunID), err)
	}

	return textResult(formatStatus(res.Run))
}

type outputParams struct {
	RunID          string `json:"run_id" jsonschema:"the run ID returned by runnable_spawn"`
	Wait           bool   `json:"wait,omitempty" jsonschema:"wait for the run to finish before returning the output"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"max seconds to wait when wait is set"`
}

func (h *handler) outputHandler(ctx context.Context, req *mcp.CallToolRequest, params outputParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	res, err := h.inspector.Get(ctx, params.RunID)
	if err != nil {
		return h.errorResult(fmt.Sprintf("Could not get run %s", params.RunID), err)
	}

	if params.Wait && res.Live() {
		timeout := h.maxWait
		if params.TimeoutSeconds > 0 && time.Duration(params.TimeoutSeconds)*time.Second < timeout {
			timeout = time.Duration(params.TimeoutSeconds) * time.Second
		}

		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		_, err := res.Handle.Wait(waitCtx)
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			// The caller gets what we have so far.
		case err != nil && ctx.Err() != nil:
			return nil, nil, ctx.Err()
		case err == nil && res.Handle.Output() != nil:
			if _, err := res.Handle.Output().FullOutput(waitCtx); err != nil && ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
		}

		res, err = h.inspector.Get(ctx, params.RunID)
		if err != nil {
			return h.errorResult(fmt.Sprintf("Could not get run %s", params.RunID), err)
		}
	}

	var b strings.Builder
	b.WriteString(formatStatus(res.Run))
	b.WriteString("\n\n")
	if res.Run.Output == "" {
		b.WriteString("(no output)")
	} else {
		b.WriteString(res.Run.Output)
	}

	return textResult(b.String())
}

func (h *handler) terminateHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}

	if err := h.scheduler.Terminate(ctx, params.RunID); err != nil {
		return h.errorResult(fmt.Sprintf("Could not terminate run %s", params.RunID), err)
	}

	return textResult(fmt.Sprintf("Run %s terminated.", params.RunID))
}

type historyParams struct {
	Runnable string `json:"runnable,omitempty" jsonschema:"only return the runs of this runnable"`
	Status   string `json:"status,omitempty" jsonschema:"only return the runs with this status"`
	Limit    int    `json:"limit,omitempty" jsonschema:"max number of runs returned"`
}

func (h *handler) historyHandler(ctx context.Context, req *mcp.CallToolRequest, params historyParams) (*mcp.CallToolResult, any, error) {
	hreq := history.Request{RunnableName: params.Runnable, Limit: params.Limit}
	if params.Status != "" {
		status := model.RunStatus(params.Status)
		hreq.StatusFilter = &status
	}

	runs, err := h.history.List(ctx, hreq)
	if err != nil {
		return h.errorResult("Could not list runs", err)
	}
	if len(runs) == 0 {
		return textResult("No runs found.")
	}

	return printed(func(p printer.Printer) error { return p.PrintRuns(runs) })
}

func formatStatus(run model.Run) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s (%s): %s", run.ID, run.RunnableName, run.Status)
	switch run.Status {
	case model.RunStatusSucceeded, model.RunStatusFailed:
		fmt.Fprintf(&b, ", exit code %d", run.ExitCode)
	case model.RunStatusErrored:
		fmt.Fprintf(&b, ": %s", run.Error)
	}
	return b.String()
}

// printed returns the JSON rendering of a printer call as the tool result.
func printed(f func(p printer.Printer) error) (*mcp.CallToolResult, any, error) {
	var b strings.Builder
	if err := f(printer.NewJSONPrinter(&b)); err != nil {
		return errorResult(fmt.Sprintf("Could not format result: %v", err))
	}
	return textResult(strings.TrimSpace(b.String()))
}

func (h *handler) errorResult(msg string, err error) (*mcp.CallToolResult, any, error) {
	h.logger.Warningf("%s: %s", msg, err)
	return errorResult(fmt.Sprintf("%s: %v", msg, err))
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
