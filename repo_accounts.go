package gate

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts is the source of truth for username and email uniqueness. The
// storage constraint, not any advisory read, arbitrates conflicting claims.
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)

	UsernameTaken(ctx context.Context, username string) (bool, error)
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
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
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

// Register inserts a new account, relying on the unique constraints as the
// authoritative arbiter. Losing the uniqueness race surfaces a typed
// conflict, never a duplicate row.
func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	created, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		return nil, translateUniqueViolation(err)
	}

	return created, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	record := &Account{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", username).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"username": username,
				})
		}
		return nil, err
	}

	return record, nil
}

// UsernameTaken is the advisory availability read. It is intentionally
// racy: a false answer here is UI feedback, not a reservation.
func (a *accounts) UsernameTaken(ctx context.Context, username string) (bool, error) {
	exists, err := a.db.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.username = ?", username).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.EnsureRoles()
	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translateUniqueViolation maps driver unique-constraint failures onto the
// package conflict errors so callers never parse driver strings.
func translateUniqueViolation(err error) error {
	if err == nil {
		return nil
	}

	msg := uniqueViolationMessage(err)
	if msg == "" {
		return err
	}

	switch {
	case strings.Contains(msg, "username"):
		return goerrors.Wrap(err, goerrors.CategoryConflict, ErrUsernameTaken.Message).
			WithTextCode(ErrUsernameTaken.TextCode).
			WithCode(goerrors.CodeConflict)
	case strings.Contains(msg, "email"):
		return goerrors.Wrap(err, goerrors.CategoryConflict, ErrEmailTaken.Message).
			WithTextCode(ErrEmailTaken.TextCode).
			WithCode(goerrors.CodeConflict)
	default:
		return goerrors.Wrap(err, goerrors.CategoryConflict, "unique constraint violated").
			WithCode(goerrors.CodeConflict)
	}
}

// uniqueViolationMessage walks the wrap chain for the driver's constraint
// text. Repository wrappers replace the outer message with a generic
// database error, so only the chain is reliable.
func uniqueViolationMessage(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key") {
			return msg
		}
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Source != nil {
		msg := richErr.Source.Error()
		if strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key") {
			return msg
		}
	}

	return ""
}
