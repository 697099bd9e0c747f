package persistence

import (
	"context"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// goose keeps its base filesystem and dialect in package state
var gooseMu sync.Mutex

// Migrate applies the goose migrations found under the directory named
// after db's dialect (postgres, sqlite or mysql) in fsys.
func Migrate(ctx context.Context, db *bun.DB, fsys fs.FS) error {
	dir, gooseDialect, err := migrationTarget(db.Dialect().Name())
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("persistence: goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, dir); err != nil {
		return fmt.Errorf("persistence: migrate %s: %w", dir, err)
	}
	return nil
}

func migrationTarget(name dialect.Name) (dir, gooseDialect string, err error) {
	switch name {
	case dialect.PG:
		return DriverPostgres, "postgres", nil
	case dialect.SQLite:
		return DriverSQLite, "sqlite3", nil
	case dialect.MySQL:
		return DriverMySQL, "mysql", nil
	default:
		return "", "", fmt.Errorf("persistence: no migrations for dialect %s", name)
	}
}
