package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionEpoch is the sentinel expiry written on logout.
var SessionEpoch = time.Unix(0, 0).UTC()

// Account is the sole persisted entity of the session core
type Account struct {
	bun.BaseModel    `bun:"table:accounts,alias:acc"`
	ID               uuid.UUID  `bun:"account_id,pk,type:varchar(36)" json:"account_id"`
	LoginName        string     `bun:"login_name,nullzero,unique,type:varchar(255)" json:"login_name,omitempty"`
	PasswordDigest   string     `bun:"password_digest,nullzero" json:"-"`
	ExternalIdentity string     `bun:"external_identity,nullzero,unique,type:varchar(255)" json:"external_identity,omitempty"`
	DisplayName      string     `bun:"display_name" json:"name"`
	Email            string     `bun:"email,type:varchar(320)" json:"email"`
	SessionID        string     `bun:"session_id,type:varchar(64)" json:"-"`
	SessionExpiry    time.Time  `bun:"session_expiry,notnull" json:"-"`
	LastSeen         *time.Time `bun:"last_seen" json:"last_seen,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// HasLocalLogin reports whether the account can sign in with a password
func (a *Account) HasLocalLogin() bool {
	return a != nil && a.LoginName != "" && a.PasswordDigest != ""
}

// SessionLive reports whether the persisted session is still usable at now
func (a *Account) SessionLive(now time.Time) bool {
	return a != nil && a.SessionExpiry.After(now)
}

func prepareAccountDefaults(record *Account, now time.Time) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.SessionExpiry.IsZero() {
		record.SessionExpiry = SessionEpoch
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
}
