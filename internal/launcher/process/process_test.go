package process_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/launcher/process"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/runnable"
)

func newLauncher(t *testing.T) *process.Launcher {
	t.Helper()
	l, err := process.NewLauncher(process.LauncherConfig{
		BaseEnv: map[string]string{"PATH": os.Getenv("PATH")},
		Logger:  log.Noop,
	})
	require.NoError(t, err)
	return l
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLauncherLaunch(t *testing.T) {
	tests := map[string]struct {
		runnable  model.Runnable
		reqEnv    map[string]string
		expCode   int
		expOutput string
		expNoOut  bool
		expErr    bool
	}{
		"A process writing a line should be captured.": {
			runnable:  model.Runnable{Name: "echo", Command: "sh", Args: []string{"-c", "printf 'a\\n'"}, CaptureOutput: true},
			expCode:   0,
			expOutput: "a\n",
		},

		"A trailing partial line should be captured.": {
			runnable:  model.Runnable{Name: "partial", Command: "sh", Args: []string{"-c", "printf partial"}, CaptureOutput: true},
			expOutput: "partial",
		},

		"Stderr should be captured too.": {
			runnable:  model.Runnable{Name: "stderr", Command: "sh", Args: []string{"-c", "echo oops >&2"}, CaptureOutput: true},
			expOutput: "oops\n",
		},

		"A non zero exit code should be a completed execution.": {
			runnable: model.Runnable{Name: "false", Command: "sh", Args: []string{"-c", "exit 3"}},
			expCode:  3,
			expNoOut: true,
		},

		"Runnable and request env should be passed to the process.": {
			runnable: model.Runnable{
				Name:          "env",
				Command:       "sh",
				Args:          []string{"-c", "echo $FOO-$BAR"},
				Env:           map[string]string{"FOO": "foo", "BAR": "runnable"},
				CaptureOutput: true,
			},
			reqEnv:    map[string]string{"BAR": "request"},
			expOutput: "foo-request\n",
		},

		"A missing binary should resolve the handle with a launch error.": {
			runnable: model.Runnable{Name: "missing", Command: "nonexistent-binary-xyz-123", CaptureOutput: true},
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			ctx := testCtx(t)
			h, err := newLauncher(t).Launch(ctx, launcher.Request{Runnable: test.runnable, Env: test.reqEnv})
			require.NoError(err)

			res, err := h.Wait(ctx)
			if test.expErr {
				require.Error(err)
				assert.False(errors.Is(err, runnable.ErrTerminated))
				assert.Contains(err.Error(), test.runnable.Command)
				return
			}
			require.NoError(err)
			assert.Equal(test.expCode, res.Status.Code)

			if test.expNoOut {
				assert.Nil(res.Output)
				return
			}

			out, err := res.Output.FullOutput(ctx)
			require.NoError(err)
			assert.Equal(test.expOutput, out)
		})
	}
}

func TestLauncherWorkingDir(t *testing.T) {
	require := require.New(t)

	base := t.TempDir()
	require.NoError(os.Mkdir(filepath.Join(base, "sub"), 0o755))

	ctx := testCtx(t)
	h, err := newLauncher(t).Launch(ctx, launcher.Request{
		Runnable: model.Runnable{Name: "pwd", Command: "pwd", Cwd: "sub", CaptureOutput: true},
		Cwd:      base,
	})
	require.NoError(err)

	res, err := h.Wait(ctx)
	require.NoError(err)
	out, err := res.Output.FullOutput(ctx)
	require.NoError(err)
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "sub"), out)
}

func TestLauncherTerminate(t *testing.T) {
	tests := map[string]struct {
		script string
	}{
		"Terminating a process should kill it.": {
			script: "echo started; exec sleep 60",
		},

		"Terminating a process should kill its children too.": {
			script: "echo started; sleep 60 & wait; echo after",
		},

		"Terminating a process should kill its nested children.": {
			script: "echo started; sh -c 'sleep 60 & wait' & wait; echo after",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			ctx := testCtx(t)
			h, err := newLauncher(t).Launch(ctx, launcher.Request{
				Runnable: model.Runnable{Name: "sleep", Command: "sh", Args: []string{"-c", test.script}, CaptureOutput: true},
			})
			require.NoError(err)

			// Wait until the process is really running.
			line, ok, err := h.Output().Subscribe().Next(ctx)
			require.NoError(err)
			require.True(ok)
			assert.Equal("started\n", line)

			h.TerminationHandle().Terminate()
			_, err = h.Wait(ctx)
			assert.ErrorIs(err, runnable.ErrTerminated)

			// Output streams only end once every process holding them is gone.
			outCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			out, err := h.Output().FullOutput(outCtx)
			require.NoError(err)
			assert.Equal("started\n", out)
		})
	}
}

func TestLauncherInvalidRunnable(t *testing.T) {
	_, err := newLauncher(t).Launch(context.Background(), launcher.Request{Runnable: model.Runnable{Name: "x"}})
	assert.True(t, errors.Is(err, model.ErrNotValid))
}
