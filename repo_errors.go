package auth

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation    = "23505"
	mysqlDuplicateEntry  = 1062
	mysqlDuplicateKey    = 1061
	sqliteUniqueFragment = "unique constraint failed"
)

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	if goerrors.IsCategory(err, goerrors.CategoryConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}

	return strings.Contains(strings.ToLower(err.Error()), sqliteUniqueFragment)
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKey
}
