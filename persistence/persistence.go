// Package persistence opens the bun handle the account store runs on.
// sqlite, postgres and mysql are supported.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DefaultPingTimeout bounds the connectivity check done by Open
const DefaultPingTimeout = 5 * time.Second

// Config describes the database connection
type Config interface {
	GetDriver() string
	GetDSN() string
	GetDebug() bool
	GetPingTimeout() time.Duration
}

// Open connects to the configured database, checks it is reachable and
// returns a bun handle with the matching dialect.
func Open(ctx context.Context, cfg Config) (*bun.DB, error) {
	driver, dialect, err := resolve(cfg.GetDriver())
	if err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("persistence: open %s: %w", cfg.GetDriver(), err)
	}

	// in memory sqlite databases live as long as their connection
	if driver == sqliteshim.ShimName && strings.Contains(cfg.GetDSN(), ":memory:") {
		sqldb.SetMaxOpenConns(1)
	}

	timeout := cfg.GetPingTimeout()
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sqldb.PingContext(pingCtx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("persistence: ping %s: %w", cfg.GetDriver(), err)
	}

	db := bun.NewDB(sqldb, dialect)
	if cfg.GetDebug() {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	return db, nil
}

func resolve(name string) (string, schema.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case DriverSQLite, "sqlite3", "":
		return sqliteshim.ShimName, sqlitedialect.New(), nil
	case DriverPostgres, "postgresql", "pgx":
		return "pgx", pgdialect.New(), nil
	case DriverMySQL:
		return "mysql", mysqldialect.New(), nil
	default:
		return "", nil, fmt.Errorf("persistence: unsupported driver %q", name)
	}
}
