package mcp_test

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/app/catalog"
	"github.com/slok/runnables/internal/app/history"
	"github.com/slok/runnables/internal/app/inspect"
	"github.com/slok/runnables/internal/app/schedule"
	invmemory "github.com/slok/runnables/internal/inventory/memory"
	"github.com/slok/runnables/internal/launcher/fake"
	"github.com/slok/runnables/internal/log"
	runnablesmcp "github.com/slok/runnables/internal/mcp"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/storage/memory"
	"github.com/slok/runnables/internal/tracker"
)

// setup creates a runnables MCP server + client over in-memory transports.
func setup(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	inv, err := invmemory.NewRepository([]model.Runnable{
		{Name: "build", Label: "Build binaries", Command: "make", Args: []string{"build"}, CaptureOutput: true},
		{Name: "serve", Label: "Dev server", Command: "make", Args: []string{"serve"}, CaptureOutput: true},
	})
	require.NoError(t, err)

	l, err := fake.NewLauncher(fake.LauncherConfig{Scripts: map[string]fake.Script{
		"build": {Stdout: []string{"compiling", "done"}, Stderr: []string{}},
		"serve": {Stdout: []string{"listening"}, Hang: true},
	}})
	require.NoError(t, err)

	tr, err := tracker.NewTracker(tracker.TrackerConfig{})
	require.NoError(t, err)
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	cat, err := catalog.NewService(catalog.ServiceConfig{Inventory: inv, Scheduled: tr})
	require.NoError(t, err)
	sched, err := schedule.NewService(schedule.ServiceConfig{Inventory: inv, Launcher: l, Tracker: tr, Repository: repo})
	require.NoError(t, err)
	insp, err := inspect.NewService(inspect.ServiceConfig{Tracker: tr, Repository: repo})
	require.NoError(t, err)
	hist, err := history.NewService(history.ServiceConfig{Repository: repo})
	require.NoError(t, err)

	trackCtx, stopTrack := context.WithCancel(ctx)
	trackDone := make(chan struct{})
	go func() {
		defer close(trackDone)
		_ = sched.Track(trackCtx, 5*time.Millisecond)
	}()

	server, err := runnablesmcp.NewServer(runnablesmcp.ServerConfig{
		Catalog:   cat,
		Scheduler: sched,
		Inspector: insp,
		History:   hist,
		Version:   "test",
		Logger:    log.Noop,
	})
	require.NoError(t, err)

	ct, st := mcp.NewInMemoryTransports()
	ss, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = cs.Close()
		_ = ss.Wait()
		stopTrack()
		<-trackDone
	})

	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	require.NoError(t, err)
	return res
}

func resultText(r *mcp.CallToolResult) string {
	var parts []string
	for _, c := range r.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var runIDRe = regexp.MustCompile(`run ID: (\S+)`)

func spawn(t *testing.T, cs *mcp.ClientSession, name string) string {
	t.Helper()
	res := callTool(t, cs, "runnable_spawn", map[string]any{"name": name})
	require.False(t, res.IsError, resultText(res))

	m := runIDRe.FindStringSubmatch(resultText(res))
	require.Len(t, m, 2)
	return m[1]
}

func TestToolsRegistered(t *testing.T) {
	cs := setup(t)

	res, err := cs.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := []string{}
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"runnables_list",
		"runnable_spawn",
		"runnable_status",
		"runnable_output",
		"runnable_terminate",
		"runs_history",
	}, names)
}

func TestRunnablesList(t *testing.T) {
	tests := map[string]struct {
		args       map[string]any
		expContain []string
		expMissing []string
	}{
		"Without query all the runnables should be listed.": {
			args:       map[string]any{},
			expContain: []string{`"name": "build"`, `"name": "serve"`},
		},

		"A query should filter the runnables.": {
			args:       map[string]any{"query": "dev"},
			expContain: []string{`"name": "serve"`},
			expMissing: []string{`"name": "build"`},
		},

		"A query without matches should say so.": {
			args:       map[string]any{"query": "deploy"},
			expContain: []string{"No runnables found."},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cs := setup(t)

			res := callTool(t, cs, "runnables_list", test.args)
			require.False(t, res.IsError)

			text := resultText(res)
			for _, exp := range test.expContain {
				assert.Contains(t, text, exp)
			}
			for _, exp := range test.expMissing {
				assert.NotContains(t, text, exp)
			}
		})
	}
}

func TestSpawnAndWaitOutput(t *testing.T) {
	cs := setup(t)
	id := spawn(t, cs, "build")

	res := callTool(t, cs, "runnable_output", map[string]any{"run_id": id, "wait": true, "timeout_seconds": 5})
	require.False(t, res.IsError, resultText(res))
	text := resultText(res)
	assert.Contains(t, text, "succeeded, exit code 0")
	assert.Contains(t, text, "compiling\ndone\n")

	// Once synced the run is in the history.
	assert.Eventually(t, func() bool {
		res := callTool(t, cs, "runs_history", map[string]any{"runnable": "build", "status": "succeeded"})
		return strings.Contains(resultText(res), id)
	}, 5*time.Second, 10*time.Millisecond)

	res = callTool(t, cs, "runnable_status", map[string]any{"run_id": id})
	require.False(t, res.IsError)
	assert.Contains(t, resultText(res), "succeeded")
}

func TestSpawnTerminate(t *testing.T) {
	cs := setup(t)
	id := spawn(t, cs, "serve")

	// Already running.
	res := callTool(t, cs, "runnable_spawn", map[string]any{"name": "serve"})
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(res), "already underway")

	res = callTool(t, cs, "runnable_status", map[string]any{"run_id": id})
	assert.Contains(t, resultText(res), "running")

	res = callTool(t, cs, "runnables_list", map[string]any{"hide_scheduled": true})
	assert.NotContains(t, resultText(res), `"name": "serve"`)

	res = callTool(t, cs, "runnable_terminate", map[string]any{"run_id": id})
	require.False(t, res.IsError, resultText(res))

	res = callTool(t, cs, "runnable_output", map[string]any{"run_id": id, "wait": true})
	require.False(t, res.IsError, resultText(res))
	assert.Contains(t, resultText(res), "terminated")
}

func TestToolErrors(t *testing.T) {
	tests := map[string]struct {
		tool       string
		args       map[string]any
		expContain string
	}{
		"Spawning a missing runnable should fail.": {
			tool:       "runnable_spawn",
			args:       map[string]any{"name": "missing"},
			expContain: "not found",
		},

		"Spawning without name should fail.": {
			tool:       "runnable_spawn",
			args:       map[string]any{},
			expContain: "name is required",
		},

		"The status of a missing run should fail.": {
			tool:       "runnable_status",
			args:       map[string]any{"run_id": "missing"},
			expContain: "not found",
		},

		"The output without run ID should fail.": {
			tool:       "runnable_output",
			args:       map[string]any{},
			expContain: "run_id is required",
		},

		"Terminating a missing run should fail.": {
			tool:       "runnable_terminate",
			args:       map[string]any{"run_id": "missing"},
			expContain: "not found",
		},

		"The history with an unknown status should fail.": {
			tool:       "runs_history",
			args:       map[string]any{"status": "wat"},
			expContain: "not valid",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cs := setup(t)

			res := callTool(t, cs, test.tool, test.args)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(res), test.expContain)
		})
	}
}

func TestNewServerRequiresServices(t *testing.T) {
	_, err := runnablesmcp.NewServer(runnablesmcp.ServerConfig{})
	assert.Error(t, err)
}
