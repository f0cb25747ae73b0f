package gate

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PendingIdentities holds at most one unexpired, single-use bootstrap record
// per email. Replace and Consume carry the whole invariant so call sites
// never need delete-then-create discipline.
type PendingIdentities interface {
	Replace(ctx context.Context, record *PendingIdentity) (*PendingIdentity, error)
	ReplaceTx(ctx context.Context, tx bun.IDB, record *PendingIdentity) (*PendingIdentity, error)

	GetByToken(ctx context.Context, token string) (*PendingIdentity, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PendingIdentity, error)

	ConsumeTx(ctx context.Context, tx bun.IDB, token string) (*PendingIdentity, error)

	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type pendingIdentities struct {
	db *bun.DB
}

var _ PendingIdentities = (*pendingIdentities)(nil)

func NewPendingIdentitiesRepository(db *bun.DB) PendingIdentities {
	return &pendingIdentities{db: db}
}

// Replace installs the record as the only pending identity for its email.
// Any prior record for that email dies in the same transaction, so the old
// bootstrap token is invalid the instant the new one exists.
func (p *pendingIdentities) Replace(ctx context.Context, record *PendingIdentity) (*PendingIdentity, error) {
	var out *PendingIdentity
	err := p.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		replaced, err := p.ReplaceTx(ctx, tx, record)
		if err != nil {
			return err
		}
		out = replaced
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pendingIdentities) ReplaceTx(ctx context.Context, tx bun.IDB, record *PendingIdentity) (*PendingIdentity, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = normalizeEmail(record.Email)

	if _, err := tx.NewDelete().
		Model((*PendingIdentity)(nil)).
		Where("email = ?", record.Email).
		Exec(ctx); err != nil {
		return nil, err
	}

	if _, err := tx.NewInsert().
		Model(record).
		Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (p *pendingIdentities) GetByToken(ctx context.Context, token string) (*PendingIdentity, error) {
	return p.GetByTokenTx(ctx, p.db, token)
}

// GetByTokenTx returns the record even when it is past expiry; callers
// distinguish "expired" from "gone" for the error taxonomy.
func (p *pendingIdentities) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PendingIdentity, error) {
	record := &PendingIdentity{}
	err := tx.NewSelect().
		Model(record).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBootstrapNotFound
		}
		return nil, err
	}

	return record, nil
}

// ConsumeTx deletes the record for the token and returns it. A token that
// no longer matches a row (already consumed or replaced) yields
// ErrBootstrapNotFound; under concurrent claims exactly one caller gets the
// record because the delete is keyed on the token.
func (p *pendingIdentities) ConsumeTx(ctx context.Context, tx bun.IDB, token string) (*PendingIdentity, error) {
	record, err := p.GetByTokenTx(ctx, tx, token)
	if err != nil {
		return nil, err
	}

	res, err := tx.NewDelete().
		Model((*PendingIdentity)(nil)).
		Where("token = ?", token).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrBootstrapNotFound
	}

	return record, nil
}

// PurgeExpired physically removes rows past expiry. Expiry already makes
// them unusable; this is operational cleanup, not correctness.
func (p *pendingIdentities) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := p.db.NewDelete().
		Model((*PendingIdentity)(nil)).
		Where("expires_at <= ?", now).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}
