package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/runnables/internal/model"
)

func TestRunnableValidate(t *testing.T) {
	tests := map[string]struct {
		runnable model.Runnable
		expErr   bool
	}{
		"A valid runnable should not fail": {
			runnable: model.Runnable{Name: "build", Command: "go", Args: []string{"build"}},
		},

		"Missing name should fail": {
			runnable: model.Runnable{Command: "go"},
			expErr:   true,
		},

		"Missing command should fail": {
			runnable: model.Runnable{Name: "build", Command: "  "},
			expErr:   true,
		},

		"Docker config without image should fail": {
			runnable: model.Runnable{Name: "build", Command: "go", Docker: &model.DockerConfig{}},
			expErr:   true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			err := test.runnable.Validate()

			if test.expErr {
				assert.Error(err)
				assert.True(errors.Is(err, model.ErrNotValid))
			} else {
				assert.NoError(err)
			}
		})
	}
}

func TestRunnableHelpers(t *testing.T) {
	assert := assert.New(t)

	r := model.Runnable{Name: "build", Command: "go", Args: []string{"build", "./..."}}
	assert.Equal("build", r.DisplayName())
	assert.Equal([]string{"go", "build", "./..."}, r.CommandLine())
	assert.Equal(model.EngineProcess, r.Engine())

	r.Label = "Build all"
	r.Docker = &model.DockerConfig{Image: "golang"}
	assert.Equal("Build all", r.DisplayName())
	assert.Equal(model.EngineDocker, r.Engine())
}

func TestRunStatus(t *testing.T) {
	assert := assert.New(t)

	assert.False(model.RunStatusRunning.IsTerminal())
	assert.True(model.RunStatusRunning.Valid())
	for _, s := range []model.RunStatus{model.RunStatusSucceeded, model.RunStatusFailed, model.RunStatusErrored, model.RunStatusTerminated} {
		assert.True(s.IsTerminal())
		assert.True(s.Valid())
	}
	assert.False(model.RunStatus("wat").Valid())
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	finish := start.Add(3 * time.Second)

	assert.Equal(t, 5*time.Second, model.Run{StartedAt: start}.Duration(start.Add(5*time.Second)))
	assert.Equal(t, 3*time.Second, model.Run{StartedAt: start, FinishedAt: &finish}.Duration(start.Add(time.Hour)))
}

func TestRunValidate(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		run    model.Run
		expErr bool
	}{
		"A complete run should be valid.": {
			run: model.Run{ID: "1", RunnableName: "a", Status: model.RunStatusRunning, StartedAt: start},
		},

		"A run without ID should fail.": {
			run:    model.Run{RunnableName: "a", Status: model.RunStatusRunning, StartedAt: start},
			expErr: true,
		},

		"A run without runnable should fail.": {
			run:    model.Run{ID: "1", Status: model.RunStatusRunning, StartedAt: start},
			expErr: true,
		},

		"A run with an unknown status should fail.": {
			run:    model.Run{ID: "1", RunnableName: "a", Status: "wat", StartedAt: start},
			expErr: true,
		},

		"A run without start time should fail.": {
			run:    model.Run{ID: "1", RunnableName: "a", Status: model.RunStatusRunning},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := test.run.Validate()
			if test.expErr {
				assert.ErrorIs(t, err, model.ErrNotValid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
