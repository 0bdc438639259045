package conventions

import "path/filepath"

const (
	// DefaultDataDir is the default runnables data directory name (relative to home).
	DefaultDataDir = ".runnables"
	// DBFile is the SQLite database filename with the run history.
	DBFile = "runnables.db"
	// RunnablesFile is the default runnables definition filename.
	RunnablesFile = "runnables.yaml"

	// EnvDBPath is the env var that overrides the database path.
	EnvDBPath = "RUNNABLES_DB_PATH"
)

// DataDir returns the runnables data directory of a home directory.
func DataDir(homeDir string) string {
	return filepath.Join(homeDir, DefaultDataDir)
}

// DBPath returns the default database path of a home directory.
func DBPath(homeDir string) string {
	return filepath.Join(DataDir(homeDir), DBFile)
}
