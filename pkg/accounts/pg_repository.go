package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averly/authcore/pkg/utils"
)

// Compile-time interface assertion
var _ AccountRepository = (*PostgresAccountRepository)(nil)

// PostgresAccountRepository implements AccountRepository on pgx.
//
// The failed-attempt increment is a single UPDATE ... RETURNING so that
// concurrent failures for the same account never corrupt the counter,
// even though callers tolerate losing the race between read and write.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

const accountColumns = `id, email, password_hash, active, tenant_id,
	failed_login_attempts, locked_until, last_login_at, password_updated_at,
	created_at, updated_at`

func (r *PostgresAccountRepository) scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var lockedUntil, lastLoginAt, passwordUpdatedAt *time.Time

	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Active, &a.TenantID,
		&a.FailedLoginAttempts, &lockedUntil, &lastLoginAt, &passwordUpdatedAt,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("scan account: %w", err)
	}

	if lockedUntil != nil {
		a.LockedUntil = *lockedUntil
	}
	if lastLoginAt != nil {
		a.LastLoginAt = *lastLoginAt
	}
	if passwordUpdatedAt != nil {
		a.PasswordUpdatedAt = *passwordUpdatedAt
	}
	return a, nil
}

func (r *PostgresAccountRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, utils.NormalizeEmail(email)))
}

func (r *PostgresAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresAccountRepository) Create(ctx context.Context, account Account) (Account, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Email = utils.NormalizeEmail(account.Email)

	query := `INSERT INTO accounts (id, email, password_hash, active, tenant_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + accountColumns
	row := r.pool.QueryRow(ctx, query,
		account.ID, account.Email, account.PasswordHash, account.Active, account.TenantID)

	created, err := r.scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, err
	}
	return created, nil
}

func (r *PostgresAccountRepository) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int32, error) {
	query := `UPDATE accounts
		SET failed_login_attempts = failed_login_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts`

	var attempts int32
	err := r.pool.QueryRow(ctx, query, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return attempts, nil
}

func (r *PostgresAccountRepository) LockAccount(ctx context.Context, id uuid.UUID, until time.Time) error {
	query := `UPDATE accounts SET locked_until = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, until)
	if err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) ResetLockout(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE accounts
		SET failed_login_attempts = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE accounts SET last_login_at = $2, updated_at = now() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *PostgresAccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash []byte, updatedAt time.Time) error {
	query := `UPDATE accounts
		SET password_hash = $2, password_updated_at = $3, updated_at = now()
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, hash, updatedAt)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}
