package gate_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/otakulist/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateAccounts = `CREATE TABLE accounts (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    roles TEXT NOT NULL DEFAULT '["user"]',
    display_name TEXT,
    avatar_url TEXT,
    password_hash TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    deleted_at TIMESTAMP
);`

	sqliteCreatePendingIdentities = `CREATE TABLE pending_identities (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    provider TEXT NOT NULL,
    provider_id TEXT NOT NULL,
    display_name TEXT,
    avatar_url TEXT,
    token TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupTestDB(t *testing.T) (*bun.DB, func()) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateAccounts)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreatePendingIdentities)
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		_ = sqldb.Close()
	}

	return db, cleanup
}

func TestAccountsRepository_Register(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := gate.NewAccountsRepository(db)
	ctx := context.Background()

	account, err := repo.Register(ctx, &gate.Account{
		Username: "rei_ayanami",
		Email:    "Rei@Example.com",
	})
	require.NoError(t, err)

	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", account.ID.String())
	assert.Equal(t, "rei@example.com", account.Email, "emails are normalized on write")
	assert.Equal(t, []gate.Role{gate.RoleUser}, account.Roles, "role set defaults to the base role")
}

func TestAccountsRepository_Register_UsernameConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := gate.NewAccountsRepository(db)
	ctx := context.Background()

	_, err := repo.Register(ctx, &gate.Account{Username: "rei", Email: "rei@example.com"})
	require.NoError(t, err)

	_, err = repo.Register(ctx, &gate.Account{Username: "rei", Email: "other@example.com"})
	require.Error(t, err)
	assert.True(t, gate.IsConflictError(err))
}

func TestAccountsRepository_Register_EmailConflict(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := gate.NewAccountsRepository(db)
	ctx := context.Background()

	_, err := repo.Register(ctx, &gate.Account{Username: "rei", Email: "rei@example.com"})
	require.NoError(t, err)

	_, err = repo.Register(ctx, &gate.Account{Username: "asuka", Email: "rei@example.com"})
	require.Error(t, err)
	assert.True(t, gate.IsConflictError(err))
}

func TestAccountsRepository_GetByEmail(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := gate.NewAccountsRepository(db)
	ctx := context.Background()

	created, err := repo.Register(ctx, &gate.Account{Username: "rei", Email: "rei@example.com"})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "rei@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("lookup is case insensitive", func(t *testing.T) {
		found, err := repo.GetByEmail(ctx, "REI@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByEmail(ctx, "nobody@example.com")
		require.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestAccountsRepository_UsernameTaken(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := gate.NewAccountsRepository(db)
	ctx := context.Background()

	_, err := repo.Register(ctx, &gate.Account{Username: "rei", Email: "rei@example.com"})
	require.NoError(t, err)

	taken, err := repo.UsernameTaken(ctx, "rei")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.UsernameTaken(ctx, "asuka")
	require.NoError(t, err)
	assert.False(t, taken)
}
