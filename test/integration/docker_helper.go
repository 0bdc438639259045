package integration

import (
	"context"
	"os"
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/stretchr/testify/require"
)

// runnableLabel is the label set on the containers of the docker engine.
const runnableLabel = "runnables.runnable"

// dockerHelper provides utilities for interacting with Docker in tests.
type dockerHelper struct {
	client *client.Client
}

// newDockerHelper creates a new Docker helper for tests, the test is skipped unless Docker
// integration tests are enabled.
func newDockerHelper(t *testing.T) *dockerHelper {
	t.Helper()

	if os.Getenv("RUNNABLES_INTEGRATION_DOCKER") != "true" {
		t.Skip("Skipping Docker integration test: RUNNABLES_INTEGRATION_DOCKER is not set to 'true'")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	require.NoError(t, err, "Failed to create Docker client")
	t.Cleanup(func() { _ = cli.Close() })

	return &dockerHelper{client: cli}
}

// countContainers returns the number of containers, running or not, of a runnable.
func (d *dockerHelper) countContainers(t *testing.T, runnableName string) int {
	t.Helper()

	containers, err := d.client.ContainerList(context.Background(), container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", runnableLabel+"="+runnableName)),
	})
	require.NoError(t, err, "Failed to list containers")

	return len(containers)
}

// cleanupContainers removes the containers of a runnable (for test cleanup).
func (d *dockerHelper) cleanupContainers(t *testing.T, runnableName string) {
	containers, err := d.client.ContainerList(context.Background(), container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", runnableLabel+"="+runnableName)),
	})
	if err != nil {
		t.Logf("Warning: Failed to list containers during cleanup: %v", err)
		return
	}

	for _, c := range containers {
		if err := d.client.ContainerRemove(context.Background(), c.ID, container.RemoveOptions{Force: true}); err != nil {
			t.Logf("Warning: Failed to remove container %s during cleanup: %v", c.ID, err)
		}
	}
}
