package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/slok/runnables/internal/log"
	"github.com/slok/runnables/internal/storage/sqlite/migrations"
)

func TestMigrator(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(err)
	defer db.Close()

	m, err := migrations.NewMigrator(migrations.MigratorConfig{DB: db, Logger: log.Noop})
	require.NoError(err)

	_, ok, err := m.Version(ctx)
	require.NoError(err)
	assert.False(ok)

	require.NoError(m.Up(ctx))
	require.NoError(m.Up(ctx), "applying twice should be a noop")

	v, ok, err := m.Version(ctx)
	require.NoError(err)
	assert.True(ok)
	assert.Equal(uint(1), v)

	_, err = db.ExecContext(ctx, `SELECT id FROM runs`)
	assert.NoError(err)

	require.NoError(m.Down(ctx))
	_, err = db.ExecContext(ctx, `SELECT id FROM runs`)
	assert.Error(err)
}

func TestMigratorRequiresDB(t *testing.T) {
	_, err := migrations.NewMigrator(migrations.MigratorConfig{})
	assert.Error(t, err)
}
