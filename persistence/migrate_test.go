package persistence

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/dialect"

	auth "github.com/goliatone/go-session-auth"
)

func migrationsFS(t *testing.T) fs.FS {
	t.Helper()
	fsys, err := fs.Sub(auth.GetMigrationsFS(), "data/sql/migrations")
	require.NoError(t, err)
	return fsys
}

func TestMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, testConfig{driver: DriverSQLite, dsn: "file::memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, migrationsFS(t)))
	require.NoError(t, Migrate(ctx, db, migrationsFS(t)), "applied migrations are skipped")

	repo := auth.NewRepositoryManager(db)
	require.NoError(t, repo.EnsureSchema(ctx), "model schema matches the migrated table")

	_, err = repo.Accounts().Create(ctx, &auth.Account{LoginName: "alice", PasswordDigest: "x", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = repo.Accounts().Create(ctx, &auth.Account{LoginName: "alice", PasswordDigest: "y"})
	assert.ErrorIs(t, err, auth.ErrConflict)

	found, err := repo.Accounts().FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.LoginName)
}

func TestMigrationsShippedForEveryDialect(t *testing.T) {
	fsys := migrationsFS(t)
	for _, name := range []dialect.Name{dialect.PG, dialect.SQLite, dialect.MySQL} {
		dir, _, err := migrationTarget(name)
		require.NoError(t, err)

		entries, err := fs.ReadDir(fsys, dir)
		require.NoError(t, err, dir)
		assert.NotEmpty(t, entries, dir)
	}

	_, _, err := migrationTarget(dialect.MSSQL)
	assert.Error(t, err)
}
