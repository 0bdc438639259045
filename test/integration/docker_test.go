package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/runnables/pkg/lib"
)

const testImage = "busybox:1.36"

func TestDockerEngine(t *testing.T) {
	tests := map[string]struct {
		args      []string
		terminate bool
		expStatus lib.RunStatus
		expExit   int
		expOutput string
	}{
		"A container that exits with zero should succeed with its output.": {
			args:      []string{"sh", "-c", "echo out; echo err >&2"},
			expStatus: lib.RunStatusSucceeded,
			expOutput: "out\nerr\n",
		},

		"A container that exits with non zero should fail with its exit code.": {
			args:      []string{"sh", "-c", "exit 4"},
			expStatus: lib.RunStatusFailed,
			expExit:   4,
		},

		"A terminated container should be killed.": {
			args:      []string{"sleep", "60"},
			terminate: true,
			expStatus: lib.RunStatusTerminated,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			docker := newDockerHelper(t)
			runnableName := fmt.Sprintf("it-%d", time.Now().UnixNano())
			t.Cleanup(func() { docker.cleanupContainers(t, runnableName) })

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			client, err := lib.New(ctx, lib.Config{
				Runnables: []lib.Runnable{{
					Name:          runnableName,
					Command:       test.args[0],
					Args:          test.args[1:],
					CaptureOutput: true,
					DockerImage:   testImage,
				}},
				InMemory: true,
			})
			require.NoError(err)
			defer client.Close()

			h, err := client.Spawn(ctx, runnableName, nil)
			require.NoError(err)

			if test.terminate {
				require.Eventually(func() bool {
					return docker.countContainers(t, runnableName) > 0
				}, time.Minute, 100*time.Millisecond)
				assert.True(h.Terminate())
			}

			run, err := h.Wait(ctx)
			require.NoError(err)
			assert.Equal(lib.EngineDocker, run.Engine)
			assert.Equal(test.expStatus, run.Status)
			assert.Equal(test.expExit, run.ExitCode)
			if test.expOutput != "" {
				// Stdout and stderr lines may interleave in any order.
				assert.ElementsMatch(strings.SplitAfter(test.expOutput, "\n"), strings.SplitAfter(run.Output, "\n"))
			}

			// The containers are removed once finished.
			assert.Eventually(func() bool {
				return docker.countContainers(t, runnableName) == 0
			}, 30*time.Second, 200*time.Millisecond)
		})
	}
}
