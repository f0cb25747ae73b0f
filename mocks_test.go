package gate_test

import (
	"context"
	"database/sql"
	"io"
	"mime/multipart"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/otakulist/gate"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

// MockTokenService implements gate.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Issue(accountID string, roles []gate.Role) (string, error) {
	args := m.Called(accountID, roles)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) IssuePending(pendingID string) (string, error) {
	args := m.Called(pendingID)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Reissue(accountID string, roles []gate.Role) (string, error) {
	args := m.Called(accountID, roles)
	return args.String(0), args.Error(1)
}

func (m *MockTokenService) Decode(token string) (*gate.SessionClaims, error) {
	args := m.Called(token)
	claims, _ := args.Get(0).(*gate.SessionClaims)
	return claims, args.Error(1)
}

// MockAccounts implements gate.Accounts. The embedded repository interface
// satisfies the methods the tests never touch.
type MockAccounts struct {
	mock.Mock
	repository.Repository[*gate.Account]
}

func (m *MockAccounts) Register(ctx context.Context, account *gate.Account) (*gate.Account, error) {
	args := m.Called(ctx, account)
	rec, _ := args.Get(0).(*gate.Account)
	return rec, args.Error(1)
}

func (m *MockAccounts) RegisterTx(ctx context.Context, tx bun.IDB, account *gate.Account) (*gate.Account, error) {
	args := m.Called(ctx, tx, account)
	rec, _ := args.Get(0).(*gate.Account)
	return rec, args.Error(1)
}

func (m *MockAccounts) GetByEmail(ctx context.Context, email string) (*gate.Account, error) {
	args := m.Called(ctx, email)
	rec, _ := args.Get(0).(*gate.Account)
	return rec, args.Error(1)
}

func (m *MockAccounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*gate.Account, error) {
	args := m.Called(ctx, tx, email)
	rec, _ := args.Get(0).(*gate.Account)
	return rec, args.Error(1)
}

func (m *MockAccounts) GetByUsername(ctx context.Context, username string) (*gate.Account, error) {
	args := m.Called(ctx, username)
	rec, _ := args.Get(0).(*gate.Account)
	return rec, args.Error(1)
}

func (m *MockAccounts) UsernameTaken(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

// MockPendingIdentities implements gate.PendingIdentities
type MockPendingIdentities struct {
	mock.Mock
}

func (m *MockPendingIdentities) Replace(ctx context.Context, record *gate.PendingIdentity) (*gate.PendingIdentity, error) {
	args := m.Called(ctx, record)
	rec, _ := args.Get(0).(*gate.PendingIdentity)
	return rec, args.Error(1)
}

func (m *MockPendingIdentities) ReplaceTx(ctx context.Context, tx bun.IDB, record *gate.PendingIdentity) (*gate.PendingIdentity, error) {
	args := m.Called(ctx, tx, record)
	rec, _ := args.Get(0).(*gate.PendingIdentity)
	return rec, args.Error(1)
}

func (m *MockPendingIdentities) GetByToken(ctx context.Context, token string) (*gate.PendingIdentity, error) {
	args := m.Called(ctx, token)
	rec, _ := args.Get(0).(*gate.PendingIdentity)
	return rec, args.Error(1)
}

func (m *MockPendingIdentities) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*gate.PendingIdentity, error) {
	args := m.Called(ctx, tx, token)
	rec, _ := args.Get(0).(*gate.PendingIdentity)
	return rec, args.Error(1)
}

func (m *MockPendingIdentities) ConsumeTx(ctx context.Context, tx bun.IDB, token string) (*gate.PendingIdentity, error) {
	args := m.Called(ctx, tx, token)
	rec, _ := args.Get(0).(*gate.PendingIdentity)
	return rec, args.Error(1)
}

func (m *MockPendingIdentities) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockRepositoryManager implements gate.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Accounts() gate.Accounts {
	args := m.Called()
	return args.Get(0).(gate.Accounts)
}

func (m *MockRepositoryManager) PendingIdentities() gate.PendingIdentities {
	args := m.Called()
	return args.Get(0).(gate.PendingIdentities)
}

// fakeRepoManager runs transaction callbacks inline with a zero bun.Tx and
// propagates their error, so store expectations see the same flow
// production code drives.
type fakeRepoManager struct {
	accounts gate.Accounts
	pending  gate.PendingIdentities
}

func (f *fakeRepoManager) Validate() error { return nil }
func (f *fakeRepoManager) MustValidate()   {}

func (f *fakeRepoManager) RunInTx(ctx context.Context, _ *sql.TxOptions, fn func(ctx context.Context, tx bun.Tx) error) error {
	var tx bun.Tx
	return fn(ctx, tx)
}

func (f *fakeRepoManager) Accounts() gate.Accounts                   { return f.accounts }
func (f *fakeRepoManager) PendingIdentities() gate.PendingIdentities { return f.pending }

// MockVerifier implements gate.ProfileVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) VerifyCallback(ctx context.Context, provider, code string) (*gate.ExternalProfile, error) {
	args := m.Called(ctx, provider, code)
	profile, _ := args.Get(0).(*gate.ExternalProfile)
	return profile, args.Error(1)
}

// MockContext mocks the router.Context
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	vals, _ := args.Get(0).([]string)
	return vals
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	fh, _ := args.Get(0).(*multipart.FileHeader)
	return fh, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	merged, _ := args.Get(0).(map[string]any)
	return merged
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	params, _ := args.Get(0).(map[string]string)
	return params
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}
