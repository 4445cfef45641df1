package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmaprep/platform-api/internal/domain"
)

// ResetToken represents stored password reset tokens.
type ResetToken struct {
	ID        string
	AccountID string
	Token     string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// Active reports whether the token is still redeemable at the given instant.
// Expiry is computed, never swept by a background job.
func (t *ResetToken) Active(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}

// ResetTokenRepository manages reset token persistence and redemption.
type ResetTokenRepository interface {
	Create(ctx context.Context, token *ResetToken) error
	GetByToken(ctx context.Context, token string) (*ResetToken, error)
	// Redeem consumes the token and overwrites the owning account's
	// credential in one transaction. Returns the account id, or
	// domain.ErrInvalidResetToken when the token is absent, already used,
	// expired, or lost a concurrent redemption race.
	Redeem(ctx context.Context, token, newPasswordHash string) (string, error)
	// InvalidateActiveForAccount marks every outstanding token for the
	// account as used.
	InvalidateActiveForAccount(ctx context.Context, accountID string) error
}

type resetTokenRepository struct {
	pool *pgxpool.Pool
}

// NewResetTokenRepository constructs repository.
func NewResetTokenRepository(pool *pgxpool.Pool) ResetTokenRepository {
	return &resetTokenRepository{pool: pool}
}

func (r *resetTokenRepository) Create(ctx context.Context, token *ResetToken) error {
	const query = `
        INSERT INTO password_reset_tokens (account_id, token, expires_at)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		token.AccountID,
		token.Token,
		token.ExpiresAt,
	).Scan(&token.ID, &token.CreatedAt)
}

func (r *resetTokenRepository) GetByToken(ctx context.Context, tokenStr string) (*ResetToken, error) {
	const query = `
        SELECT id, account_id, token, expires_at, used_at, created_at
        FROM password_reset_tokens WHERE token=$1`
	var token ResetToken
	if err := r.pool.QueryRow(ctx, query, tokenStr).Scan(
		&token.ID,
		&token.AccountID,
		&token.Token,
		&token.ExpiresAt,
		&token.UsedAt,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *resetTokenRepository) Redeem(ctx context.Context, tokenStr, newPasswordHash string) (string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The conditional update is the at-most-once guarantee: of two
	// concurrent redemptions, only one matches the unused row.
	const consume = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
        RETURNING account_id`
	var accountID string
	if err := tx.QueryRow(ctx, consume, tokenStr).Scan(&accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrInvalidResetToken
		}
		return "", err
	}

	const overwrite = `
        UPDATE accounts SET password_hash=$1, updated_at=NOW()
        WHERE id=$2`
	cmd, err := tx.Exec(ctx, overwrite, newPasswordHash, accountID)
	if err != nil {
		return "", err
	}
	if cmd.RowsAffected() == 0 {
		return "", pgx.ErrNoRows
	}

	// Outstanding tokens for the account die with the redeemed one.
	const invalidate = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE account_id=$1 AND used_at IS NULL`
	if _, err := tx.Exec(ctx, invalidate, accountID); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return accountID, nil
}

func (r *resetTokenRepository) InvalidateActiveForAccount(ctx context.Context, accountID string) error {
	const query = `
        UPDATE password_reset_tokens SET used_at=NOW()
        WHERE account_id=$1 AND used_at IS NULL`
	_, err := r.pool.Exec(ctx, query, accountID)
	return err
}
