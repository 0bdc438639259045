package docker

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/oklog/ulid/v2"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/runnables/internal/launcher"
	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/runnable"
	"github.com/slok/runnables/internal/utils/env"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// LauncherConfig is the configuration for the Docker launcher.
type LauncherConfig struct {
	Client DockerClient
	// PullImage pulls the runnable image before creating the container.
	PullImage bool
	// KeepContainers doesn't remove the containers once finished.
	KeepContainers bool
	// CleanupTimeout bounds the container kill and removal calls.
	CleanupTimeout time.Duration
	Logger         log.Logger
}

func (c *LauncherConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.CleanupTimeout <= 0 {
		c.CleanupTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "launcher.Docker"})
	return nil
}

// Launcher launches runnables inside Docker containers.
type Launcher struct {
	client         DockerClient
	pullImage      bool
	keepContainers bool
	cleanupTimeout time.Duration
	logger         log.Logger
}

// NewLauncher creates a new Docker launcher.
func NewLauncher(cfg LauncherConfig) (*Launcher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Launcher{
		client:         cfg.Client,
		pullImage:      cfg.PullImage,
		keepContainers: cfg.KeepContainers,
		cleanupTimeout: cfg.CleanupTimeout,
		logger:         cfg.Logger,
	}, nil
}

// Launch creates and starts a container running the runnable command.
func (l *Launcher) Launch(ctx context.Context, req launcher.Request) (*runnable.Handle, error) {
	if err := req.Runnable.Validate(); err != nil {
		return nil, err
	}
	if req.Runnable.Docker == nil {
		return nil, fmt.Errorf("runnable %q has no docker configuration", req.Runnable.Name)
	}

	logger := l.logger.WithValues(log.Kv{"runnable": req.Runnable.Name})
	img := req.Runnable.Docker.Image
	capture := req.Runnable.CaptureOutput

	failed := func(err error) (*runnable.Handle, error) {
		logger.Warningf("Could not launch runnable: %s", err)
		return runnable.NewHandle(func(context.Context) (runnable.ExitStatus, error) {
			return runnable.ExitStatus{}, err
		}, nil, logger), nil
	}

	if l.pullImage {
		logger.Infof("Pulling image %s", img)
		rc, err := l.client.ImagePull(ctx, img, image.PullOptions{})
		if err != nil {
			return failed(fmt.Errorf("could not pull image %q: %w", img, err))
		}
		// The pull only finishes once the progress stream is consumed.
		_, err = io.Copy(io.Discard, rc)
		rc.Close()
		if err != nil {
			return failed(fmt.Errorf("could not pull image %q: %w", img, err))
		}
	}

	containerName := containerName(req.Runnable.Name)
	resp, err := l.client.ContainerCreate(ctx,
		&container.Config{
			Image:        img,
			Cmd:          req.Runnable.CommandLine(),
			Env:          env.ToList(env.MergeMaps(req.Runnable.Env, req.Env)),
			WorkingDir:   req.Runnable.Cwd,
			AttachStdout: capture,
			AttachStderr: capture,
			Labels:       map[string]string{"runnables.runnable": req.Runnable.Name},
		},
		&container.HostConfig{},
		nil, nil, containerName)
	if err != nil {
		return failed(fmt.Errorf("could not create container: %w", err))
	}
	containerID := resp.ID
	logger = logger.WithValues(log.Kv{"container": containerName})

	// Attach before start so no output is lost.
	var output *runnable.PendingOutput
	var hijacked types.HijackedResponse
	if capture {
		hijacked, err = l.client.ContainerAttach(ctx, containerID, container.AttachOptions{
			Stream: true,
			Stdout: true,
			Stderr: true,
		})
		if err != nil {
			l.remove(containerID, logger)
			return failed(fmt.Errorf("could not attach to container: %w", err))
		}
	}

	// Wait registration before start so a fast exit is not missed.
	waitCtx, waitCancel := context.WithCancel(context.Background())
	statusC, errC := l.client.ContainerWait(waitCtx, containerID, container.WaitConditionNextExit)

	if err := l.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		waitCancel()
		if capture {
			hijacked.Close()
		}
		l.remove(containerID, logger)
		return failed(fmt.Errorf("could not start container: %w", err))
	}

	logger.Debugf("Started container %s", containerID)

	if capture {
		stdoutR, stdoutW := io.Pipe()
		stderrR, stderrW := io.Pipe()
		go func() {
			defer hijacked.Close()
			_, err := stdcopy.StdCopy(stdoutW, stderrW, hijacked.Reader)
			stdoutW.CloseWithError(err)
			stderrW.CloseWithError(err)
		}()
		output = runnable.NewPendingOutput(stdoutR, stderrR, logger)
	}

	wait := func(ctx context.Context) (runnable.ExitStatus, error) {
		defer waitCancel()
		defer l.remove(containerID, logger)

		select {
		case resp := <-statusC:
			if resp.Error != nil {
				return runnable.ExitStatus{}, fmt.Errorf("container wait failed: %s", resp.Error.Message)
			}
			return runnable.ExitStatus{Code: int(resp.StatusCode)}, nil
		case err := <-errC:
			return runnable.ExitStatus{}, fmt.Errorf("could not wait for container: %w", err)
		case <-ctx.Done():
			l.kill(containerID, logger)
			return runnable.ExitStatus{Code: -1}, nil
		}
	}

	return runnable.NewHandle(wait, output, logger), nil
}

func (l *Launcher) kill(containerID string, logger log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), l.cleanupTimeout)
	defer cancel()

	logger.Infof("Killing terminated runnable container")
	if err := l.client.ContainerKill(ctx, containerID, "SIGKILL"); err != nil {
		logger.Warningf("Could not kill container: %s", err)
	}
}

func (l *Launcher) remove(containerID string, logger log.Logger) {
	if l.keepContainers {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.cleanupTimeout)
	defer cancel()

	if err := l.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		logger.Warningf("Could not remove container: %s", err)
	}
}

func containerName(runnableName string) string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '-'
	}, runnableName)

	return fmt.Sprintf("runnables-%s-%s", name, strings.ToLower(id))
}
