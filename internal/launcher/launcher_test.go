package launcher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/launcher/fake"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
)

func TestWorkingDir(t *testing.T) {
	tests := map[string]struct {
		req    launcher.Request
		expDir string
	}{
		"Without runnable cwd the request cwd should be used.": {
			req:    launcher.Request{Cwd: "/base"},
			expDir: "/base",
		},

		"A relative runnable cwd should be resolved against the request cwd.": {
			req:    launcher.Request{Cwd: "/base", Runnable: model.Runnable{Cwd: "sub/dir"}},
			expDir: "/base/sub/dir",
		},

		"An absolute runnable cwd should be used as is.": {
			req:    launcher.Request{Cwd: "/base", Runnable: model.Runnable{Cwd: "/abs"}},
			expDir: "/abs",
		},

		"A relative runnable cwd without request cwd should be used as is.": {
			req:    launcher.Request{Runnable: model.Runnable{Cwd: "sub"}},
			expDir: "sub",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expDir, launcher.WorkingDir(test.req))
		})
	}
}

func TestSelector(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	processLauncher, err := fake.NewLauncher(fake.LauncherConfig{Logger: log.Noop})
	require.NoError(err)

	_, err = launcher.NewSelector(launcher.SelectorConfig{})
	assert.Error(err)

	_, err = launcher.NewSelector(launcher.SelectorConfig{
		Launchers: map[model.EngineType]launcher.Launcher{model.EngineProcess: processLauncher},
		Force:     model.EngineFake,
	})
	assert.Error(err)

	sel, err := launcher.NewSelector(launcher.SelectorConfig{
		Launchers: map[model.EngineType]launcher.Launcher{model.EngineProcess: processLauncher},
	})
	require.NoError(err)

	ctx := context.Background()
	h, err := sel.Launch(ctx, launcher.Request{Runnable: model.Runnable{Name: "a", Command: "echo"}})
	require.NoError(err)
	_, err = h.Wait(ctx)
	assert.NoError(err)
	assert.Equal(1, processLauncher.Launches("a"))

	_, err = sel.Launch(ctx, launcher.Request{Runnable: model.Runnable{Name: "b", Command: "echo", Docker: &model.DockerConfig{Image: "x"}}})
	assert.True(errors.Is(err, model.ErrNotValid))
}
