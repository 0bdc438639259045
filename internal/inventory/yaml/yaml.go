package yaml

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/runnables/internal/inventory/memory"
	"github.com/slok/runnables/internal/model"
)

// Repository loads runnable definitions from a YAML file.
//
// The file is read on every call so edits are picked up without restarting.
type Repository struct {
	fs   fs.FS
	path string
}

// NewRepository creates a new YAML inventory repository.
func NewRepository(filesystem fs.FS, path string) *Repository {
	return &Repository{fs: filesystem, path: path}
}

// ListRunnables returns all the runnables of the file.
func (r *Repository) ListRunnables(ctx context.Context) ([]model.Runnable, error) {
	repo, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return repo.ListRunnables(ctx)
}

// GetRunnable returns a runnable by name.
func (r *Repository) GetRunnable(ctx context.Context, name string) (*model.Runnable, error) {
	repo, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return repo.GetRunnable(ctx, name)
}

func (r *Repository) load(ctx context.Context) (*memory.Repository, error) {
	data, err := fs.ReadFile(r.fs, r.path)
	if err != nil {
		return nil, fmt.Errorf("reading runnables file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	runnables := make([]model.Runnable, 0, len(file.Runnables))
	for _, rn := range file.Runnables {
		runnables = append(runnables, rn.toModel())
	}

	repo, err := memory.NewRepository(runnables)
	if err != nil {
		return nil, fmt.Errorf("invalid runnables file: %w", err)
	}

	return repo, nil
}

// File represents the YAML structure of a runnables file.
type File struct {
	Runnables []Runnable `yaml:"runnables"`
}

// Runnable represents the YAML structure of a runnable.
type Runnable struct {
	Name          string            `yaml:"name"`
	Label         string            `yaml:"label"`
	Command       string            `yaml:"command"`
	Args          []string          `yaml:"args"`
	Cwd           string            `yaml:"cwd"`
	Env           map[string]string `yaml:"env"`
	CaptureOutput *bool             `yaml:"capture_output"`
	Docker        *DockerConfig     `yaml:"docker,omitempty"`
}

// DockerConfig represents the YAML structure of the Docker configuration.
type DockerConfig struct {
	Image string `yaml:"image"`
}

func (r Runnable) toModel() model.Runnable {
	capture := true
	if r.CaptureOutput != nil {
		capture = *r.CaptureOutput
	}

	m := model.Runnable{
		Name:          r.Name,
		Label:         r.Label,
		Command:       r.Command,
		Args:          r.Args,
		Cwd:           r.Cwd,
		Env:           r.Env,
		CaptureOutput: capture,
	}
	if r.Docker != nil {
		m.Docker = &model.DockerConfig{Image: r.Docker.Image}
	}

	return m
}
