package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the bun backed AccountStore
type Accounts interface {
	AccountStore

	FindByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, account *Account, criteria ...repository.InsertCriteria) (*Account, error)
	SetSessionTx(ctx context.Context, tx bun.IDB, id, sessionID string, expiry, lastSeen time.Time) error
}

type accounts struct {
	repo  repository.Repository[*Account]
	db    *bun.DB
	clock Clock
}

var _ Accounts = (*accounts)(nil)

// AccountsOption configures the accounts repository
type AccountsOption func(*accounts)

// WithAccountsClock sets the clock used for created_at defaults
func WithAccountsClock(c Clock) AccountsOption {
	return func(a *accounts) {
		a.clock = c
	}
}

// NewAccountsRepository returns an Accounts backed by db
func NewAccountsRepository(db *bun.DB, opts ...AccountsOption) Accounts {
	repo := &accounts{
		db: db,
		repo: repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
			NewRecord: func() *Account { return &Account{} },
			GetID: func(a *Account) uuid.UUID {
				if a == nil {
					return uuid.Nil
				}
				return a.ID
			},
			SetID: func(a *Account, id uuid.UUID) {
				if a != nil {
					a.ID = id
				}
			},
		}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *accounts) FindByID(ctx context.Context, id string) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *accounts) FindByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (*Account, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, Decorate(ErrAccountNotFound, map[string]any{"account_id": id})
	}
	return a.findOne(ctx, tx, "account_id", parsed.String(), criteria...)
}

func (a *accounts) FindByLoginName(ctx context.Context, loginName string) (*Account, error) {
	loginName = strings.TrimSpace(loginName)
	if loginName == "" {
		return nil, ErrAccountNotFound
	}
	return a.findOne(ctx, a.db, "login_name", loginName)
}

func (a *accounts) FindByExternalIdentity(ctx context.Context, externalIdentity string) (*Account, error) {
	externalIdentity = strings.TrimSpace(externalIdentity)
	if externalIdentity == "" {
		return nil, ErrAccountNotFound
	}
	return a.findOne(ctx, a.db, "external_identity", externalIdentity)
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrAccountNotFound
	}
	return a.findOne(ctx, a.db, "email", email)
}

// SelectByColumn matches the oldest account whose column equals value
func SelectByColumn(column string, value any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
			OrderExpr("?TableAlias.created_at ASC").
			Limit(1)
	}
}

func (a *accounts) findOne(ctx context.Context, tx bun.IDB, column string, value any, criteria ...repository.SelectCriteria) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.Apply(SelectByColumn(column, value)).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, Decorate(ErrAccountNotFound, map[string]any{column: value})
		}
		return nil, Wrap(err, ErrStore)
	}

	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account, criteria ...repository.InsertCriteria) (*Account, error) {
	prepareAccountDefaults(record, a.clock.now())

	created, err := a.repo.CreateTx(ctx, tx, record, criteria...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, Wrap(err, ErrConflict)
		}
		return nil, Wrap(err, ErrStore)
	}

	return created, nil
}

// CreateIfAbsent inserts record unless a unique column collides, in which
// case nothing is written and false is returned.
func (a *accounts) CreateIfAbsent(ctx context.Context, record *Account) (bool, error) {
	prepareAccountDefaults(record, a.clock.now())

	res, err := a.db.NewInsert().Model(record).Ignore().Exec(ctx)
	if err != nil {
		return false, Wrap(err, ErrStore)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, Wrap(err, ErrStore)
	}

	return n > 0, nil
}

// AttachExternalIdentity binds externalIdentity to an account that has none.
// It reports false when the account already carries an identity.
func (a *accounts) AttachExternalIdentity(ctx context.Context, id, externalIdentity string) (bool, error) {
	res, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("external_identity = ?", externalIdentity).
		Where("account_id = ?", id).
		Where("external_identity IS NULL").
		Exec(ctx)

	if err != nil {
		if isUniqueViolation(err) {
			return false, Wrap(err, ErrConflict)
		}
		return false, Wrap(err, ErrStore)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, Wrap(err, ErrStore)
	}

	return n > 0, nil
}

func (a *accounts) SetSession(ctx context.Context, id, sessionID string, expiry, lastSeen time.Time) error {
	return a.SetSessionTx(ctx, a.db, id, sessionID, expiry, lastSeen)
}

// UpdateSessionColumns restricts an update to the session state of the
// account with id
func UpdateSessionColumns(id uuid.UUID) repository.UpdateCriteria {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Column("session_id", "session_expiry", "last_seen").
			Where("?TableAlias.account_id = ?", id.String())
	}
}

// SetSessionTx overwrites the session state unconditionally; the last
// writer wins.
func (a *accounts) SetSessionTx(ctx context.Context, tx bun.IDB, id, sessionID string, expiry, lastSeen time.Time) error {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return Decorate(ErrAccountNotFound, map[string]any{"account_id": id})
	}

	seen := lastSeen.UTC()
	record := &Account{
		ID:            parsed,
		SessionID:     sessionID,
		SessionExpiry: expiry.UTC(),
		LastSeen:      &seen,
	}

	if _, err := a.repo.UpdateTx(ctx, tx, record, UpdateSessionColumns(parsed)); err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return Decorate(ErrAccountNotFound, map[string]any{"account_id": id})
		}
		return Wrap(err, ErrStore)
	}
	return nil
}

func (a *accounts) InvalidateSession(ctx context.Context, id string) error {
	return a.SetSession(ctx, id, "", SessionEpoch, a.clock.now())
}
