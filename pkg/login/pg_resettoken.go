package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface assertion
var _ ResetTokenRepository = (*PostgresResetTokenRepository)(nil)

// PostgresResetTokenRepository implements ResetTokenRepository on pgx.
type PostgresResetTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresResetTokenRepository(pool *pgxpool.Pool) *PostgresResetTokenRepository {
	return &PostgresResetTokenRepository{pool: pool}
}

func (r *PostgresResetTokenRepository) Create(ctx context.Context, token ResetToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reset_tokens (id, account_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		token.ID, token.AccountID, token.TokenHash, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert reset token: %w", err)
	}
	return nil
}

func (r *PostgresResetTokenRepository) FindLiveByHash(ctx context.Context, tokenHash string, now time.Time) (ResetToken, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, account_id, token_hash, expires_at, consumed_at, created_at
		FROM reset_tokens
		WHERE token_hash = $1 AND consumed_at IS NULL AND expires_at > $2
		ORDER BY created_at DESC
		LIMIT 1`,
		tokenHash, now)

	var t ResetToken
	err := row.Scan(&t.ID, &t.AccountID, &t.TokenHash, &t.ExpiresAt, &t.ConsumedAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResetToken{}, ErrResetTokenNotFound
		}
		return ResetToken{}, fmt.Errorf("scan reset token: %w", err)
	}
	return t, nil
}

func (r *PostgresResetTokenRepository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE reset_tokens SET consumed_at = $2
		WHERE id = $1 AND consumed_at IS NULL`,
		id, at)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResetTokenNotFound
	}
	return nil
}
