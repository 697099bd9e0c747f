package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	auth "github.com/goliatone/go-session-auth"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string      { return m.Called().String(0) }
func (m *MockConfig) GetSigningMethod() string   { return m.Called().String(0) }
func (m *MockConfig) GetTokenTTL() time.Duration { return m.Called().Get(0).(time.Duration) }
func (m *MockConfig) GetIssuer() string          { return m.Called().String(0) }
func (m *MockConfig) GetAudience() []string      { return m.Called().Get(0).([]string) }
func (m *MockConfig) GetCookieName() string      { return m.Called().String(0) }
func (m *MockConfig) GetCookieSecure() bool      { return m.Called().Bool(0) }
func (m *MockConfig) GetCookieSameSite() string  { return m.Called().String(0) }
func (m *MockConfig) GetContextKey() string      { return m.Called().String(0) }
func (m *MockConfig) GetPasswordCost() int       { return m.Called().Int(0) }

func newMockConfig() *MockConfig {
	return newMockConfigWithCookie("token")
}

func newMockConfigWithCookie(name string) *MockConfig {
	cfg := new(MockConfig)
	cfg.On("GetSigningKey").Return(testSigningKey)
	cfg.On("GetSigningMethod").Return("HS256")
	cfg.On("GetTokenTTL").Return(24 * time.Hour)
	cfg.On("GetIssuer").Return("test-issuer")
	cfg.On("GetAudience").Return([]string{"test:audience"})
	cfg.On("GetCookieName").Return(name)
	cfg.On("GetCookieSecure").Return(true)
	cfg.On("GetCookieSameSite").Return("strict")
	cfg.On("GetContextKey").Return("")
	cfg.On("GetPasswordCost").Return(4)
	return cfg
}

// MockAccountStore implements auth.AccountStore for failure paths a real
// database cannot easily produce
type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) account(args mock.Arguments) (*auth.Account, error) {
	a, _ := args.Get(0).(*auth.Account)
	return a, args.Error(1)
}

func (m *MockAccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	return m.account(m.Called(ctx, id))
}

func (m *MockAccountStore) FindByLoginName(ctx context.Context, loginName string) (*auth.Account, error) {
	return m.account(m.Called(ctx, loginName))
}

func (m *MockAccountStore) FindByExternalIdentity(ctx context.Context, externalIdentity string) (*auth.Account, error) {
	return m.account(m.Called(ctx, externalIdentity))
}

func (m *MockAccountStore) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	return m.account(m.Called(ctx, email))
}

func (m *MockAccountStore) Create(ctx context.Context, account *auth.Account) (*auth.Account, error) {
	return m.account(m.Called(ctx, account))
}

func (m *MockAccountStore) CreateIfAbsent(ctx context.Context, account *auth.Account) (bool, error) {
	args := m.Called(ctx, account)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) AttachExternalIdentity(ctx context.Context, id, externalIdentity string) (bool, error) {
	args := m.Called(ctx, id, externalIdentity)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountStore) SetSession(ctx context.Context, id, sessionID string, expiry, lastSeen time.Time) error {
	return m.Called(ctx, id, sessionID, expiry, lastSeen).Error(0)
}

func (m *MockAccountStore) InvalidateSession(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// testClock is a settable time source shared by the token service and the
// session components
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *testClock) Clock() auth.Clock {
	return c.Now
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, e auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) types() []auth.ActivityEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func (r *recordingSink) last() auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auth.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestRepo(t *testing.T, opts ...auth.AccountsOption) auth.RepositoryManager {
	t.Helper()

	repo := auth.NewRepositoryManager(newTestDB(t), opts...)
	require.NoError(t, repo.Validate())
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

type harness struct {
	clock  *testClock
	repo   auth.RepositoryManager
	tokens *auth.TokenServiceImpl
	auther *auth.Auther
	sink   *recordingSink
}

// newHarness wires the session core over an in memory database with every
// component reading the same clock
func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := newTestClock()
	repo := newTestRepo(t, auth.WithAccountsClock(clock.Clock()))
	cfg := newMockConfig()

	tokens := auth.NewTokenServiceFromConfig(cfg, auth.WithTokenClock(clock.Clock()))
	sink := &recordingSink{}

	auther := auth.NewAuthenticator(repo.Accounts(), cfg).
		WithTokenService(tokens).
		WithClock(clock.Clock()).
		WithActivitySink(sink)

	return &harness{
		clock:  clock,
		repo:   repo,
		tokens: tokens,
		auther: auther,
		sink:   sink,
	}
}

// logEntry is one call recorded by captureLogger
type logEntry struct {
	level string
	msg   string
	args  []any
}

// captureLogger implements auth.Logger and records every call
type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args) }

// find returns the first entry logged with msg
func (l *captureLogger) find(msg string) (logEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

// attr returns the value logged after key
func (e logEntry) attr(key string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if k, ok := e.args[i].(string); ok && k == key {
			return e.args[i+1]
		}
	}
	return nil
}
