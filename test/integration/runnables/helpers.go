package runnables

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/runnables/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "runnables"
	}

	// go test changes the CWD to the test package directory, so relative paths are not
	// reliable.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("RUNNABLES_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("runnables binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "RUNNABLES_INTEGRATION"
		envBinary     = "RUNNABLES_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{
		Binary: os.Getenv(envBinary),
	}

	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// Env is the isolated environment of a test: its runnables file and database.
type Env struct {
	Config Config
	DBPath string
	File   string
}

// NewEnv writes the runnables file in a temp directory with a fresh database path.
func NewEnv(t *testing.T, config Config, runnablesYAML string) Env {
	t.Helper()

	dir := t.TempDir()
	file := filepath.Join(dir, "runnables.yaml")
	if err := os.WriteFile(file, []byte(runnablesYAML), 0644); err != nil {
		t.Fatalf("could not write runnables file: %s", err)
	}

	return Env{
		Config: config,
		DBPath: filepath.Join(dir, "runnables.db"),
		File:   file,
	}
}

// Run executes a runnables command in the environment.
func (e Env) Run(ctx context.Context, args ...string) (stdout, stderr []byte, err error) {
	allArgs := append([]string{"--db-path", e.DBPath, "--file", e.File}, args...)
	return testutils.RunRunnablesArgs(ctx, nil, e.Config.Binary, allArgs, true)
}
