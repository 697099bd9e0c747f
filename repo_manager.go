package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	EnsureSchema(ctx context.Context) error
	Accounts() Accounts
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
}

// NewRepositoryManager wires the repositories over db
func NewRepositoryManager(db *bun.DB, opts ...AccountsOption) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// EnsureSchema creates the accounts table and its lookup index when missing.
// Unique constraints on login_name and external_identity come from the model.
func (m mngr) EnsureSchema(ctx context.Context) error {
	return m.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewCreateTable().
			Model((*Account)(nil)).
			IfNotExists().
			Exec(ctx); err != nil {
			return Wrap(err, ErrStore)
		}

		q := tx.NewCreateIndex().
			Model((*Account)(nil)).
			Index("idx_accounts_email").
			Column("email")
		// mysql has no IF NOT EXISTS for indexes
		if m.db.Dialect().Name() != dialect.MySQL {
			q = q.IfNotExists()
		}
		if _, err := q.Exec(ctx); err != nil && !isDuplicateIndex(err) {
			return Wrap(err, ErrStore)
		}

		return nil
	})
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}
