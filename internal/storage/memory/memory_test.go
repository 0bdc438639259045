package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/model"
	"github.com/slok/runnables/internal/storage"
	"github.com/slok/runnables/internal/storage/memory"
)

var t0 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func runFixture(id, runnableName string, startOffset time.Duration) model.Run {
	return model.Run{
		ID:           id,
		RunnableName: runnableName,
		Command:      []string{"make", "build"},
		Engine:       model.EngineProcess,
		Status:       model.RunStatusRunning,
		StartedAt:    t0.Add(startOffset),
	}
}

func TestRepositoryCRUD(t *testing.T) {
	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository) error
		expErr  bool
	}{
		"Creating a run should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := runFixture("test-id", "build", 0)
				err := repo.CreateRun(ctx, run)
				require.NoError(t, err)

				retrieved, err := repo.GetRun(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, run, *retrieved)

				return nil
			},
		},

		"Creating duplicate ID should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				err := repo.CreateRun(ctx, runFixture("test-id", "build", 0))
				require.NoError(t, err)

				err = repo.CreateRun(ctx, runFixture("test-id", "other", 0))
				assert.True(t, errors.Is(err, model.ErrAlreadyExists))
				return err
			},
			expErr: true,
		},

		"Creating an invalid run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := runFixture("test-id", "build", 0)
				run.Status = "unknown"
				err := repo.CreateRun(ctx, run)
				assert.True(t, errors.Is(err, model.ErrNotValid))
				return err
			},
			expErr: true,
		},

		"Getting non-existent run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				_, err := repo.GetRun(ctx, "non-existent")
				assert.True(t, errors.Is(err, model.ErrNotFound))
				return err
			},
			expErr: true,
		},

		"Updating a run should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := runFixture("test-id", "build", 0)
				require.NoError(t, repo.CreateRun(ctx, run))

				finished := t0.Add(time.Second)
				run.Status = model.RunStatusSucceeded
				run.Output = "ok\n"
				run.FinishedAt = &finished
				require.NoError(t, repo.UpdateRun(ctx, run))

				retrieved, err := repo.GetRun(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, run, *retrieved)

				return nil
			},
		},

		"Updating non-existent run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.UpdateRun(ctx, runFixture("test-id", "build", 0))
			},
			expErr: true,
		},

		"Stored runs should not be modified from the outside": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				run := runFixture("test-id", "build", 0)
				require.NoError(t, repo.CreateRun(ctx, run))
				run.Command[0] = "rm"

				retrieved, err := repo.GetRun(ctx, "test-id")
				require.NoError(t, err)
				retrieved.Command[1] = "-rf"

				retrieved, err = repo.GetRun(ctx, "test-id")
				require.NoError(t, err)
				assert.Equal(t, []string{"make", "build"}, retrieved.Command)

				return nil
			},
		},

		"Deleting a run should work": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				require.NoError(t, repo.CreateRun(ctx, runFixture("test-id", "build", 0)))
				require.NoError(t, repo.DeleteRun(ctx, "test-id"))

				_, err := repo.GetRun(ctx, "test-id")
				assert.True(t, errors.Is(err, model.ErrNotFound))

				return nil
			},
		},

		"Deleting non-existent run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) error {
				return repo.DeleteRun(ctx, "non-existent")
			},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			repo, err := memory.NewRepository(memory.RepositoryConfig{
				Logger: log.Noop,
			})
			require.NoError(t, err)

			err = test.actions(context.Background(), t, repo)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
		})
	}
}

func TestRepositoryListRuns(t *testing.T) {
	ctx := context.Background()
	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	r1 := runFixture("id-1", "build", 0)
	r2 := runFixture("id-2", "test", time.Second)
	r2.Status = model.RunStatusFailed
	r3 := runFixture("id-3", "build", 2*time.Second)
	for _, r := range []model.Run{r2, r1, r3} {
		require.NoError(t, repo.CreateRun(ctx, r))
	}

	tests := map[string]struct {
		opts   storage.ListRunsOpts
		expIDs []string
	}{
		"Without filters all the runs should be returned newest first.": {
			expIDs: []string{"id-3", "id-2", "id-1"},
		},

		"Filtering by runnable should return only its runs.": {
			opts:   storage.ListRunsOpts{RunnableName: "build"},
			expIDs: []string{"id-3", "id-1"},
		},

		"Filtering by status should return only the runs with that status.": {
			opts:   storage.ListRunsOpts{Status: model.RunStatusFailed},
			expIDs: []string{"id-2"},
		},

		"A limit should cap the number of runs.": {
			opts:   storage.ListRunsOpts{Limit: 1},
			expIDs: []string{"id-3"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			runs, err := repo.ListRuns(ctx, test.opts)
			require.NoError(t, err)

			ids := []string{}
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, test.expIDs, ids)
		})
	}
}
