package twofa

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
var _ MethodRepository = (*PostgresMethodRepository)(nil)

// PostgresMethodRepository implements MethodRepository on pgx.
type PostgresMethodRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMethodRepository(pool *pgxpool.Pool) *PostgresMethodRepository {
	return &PostgresMethodRepository{pool: pool}
}

const methodColumns = `id, account_id, kind, enabled, secret, phone_number, created_at, updated_at`

func scanMethod(row pgx.Row) (Method, error) {
	var m Method
	err := row.Scan(&m.ID, &m.AccountID, &m.Kind, &m.Enabled, &m.Secret, &m.PhoneNumber, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Method{}, ErrMethodNotFound
		}
		return Method{}, fmt.Errorf("scan method: %w", err)
	}
	return m, nil
}

func (r *PostgresMethodRepository) UpsertMethod(ctx context.Context, method Method) (Method, error) {
	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	now := time.Now()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO twofa_methods (id, account_id, kind, enabled, secret, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (account_id, kind) DO UPDATE
		SET secret = EXCLUDED.secret,
		    phone_number = EXCLUDED.phone_number,
		    enabled = EXCLUDED.enabled,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+methodColumns,
		method.ID, method.AccountID, method.Kind, method.Enabled, method.Secret, method.PhoneNumber, now)
	return scanMethod(row)
}

func (r *PostgresMethodRepository) FindMethod(ctx context.Context, accountID uuid.UUID, kind string) (Method, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+methodColumns+` FROM twofa_methods
		WHERE account_id = $1 AND kind = $2`,
		accountID, kind)
	return scanMethod(row)
}

func (r *PostgresMethodRepository) findMethodsWhere(ctx context.Context, query string, args ...interface{}) ([]Method, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query methods: %w", err)
	}
	defer rows.Close()

	var out []Method
	for rows.Next() {
		m, err := scanMethod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *PostgresMethodRepository) FindMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	return r.findMethodsWhere(ctx, `
		SELECT `+methodColumns+` FROM twofa_methods
		WHERE account_id = $1
		ORDER BY created_at`, accountID)
}

func (r *PostgresMethodRepository) FindEnabledMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	return r.findMethodsWhere(ctx, `
		SELECT `+methodColumns+` FROM twofa_methods
		WHERE account_id = $1 AND enabled
		ORDER BY created_at`, accountID)
}

func (r *PostgresMethodRepository) SetMethodEnabled(ctx context.Context, accountID uuid.UUID, kind string, enabled bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE twofa_methods SET enabled = $3, updated_at = now()
		WHERE account_id = $1 AND kind = $2`,
		accountID, kind, enabled)
	if err != nil {
		return fmt.Errorf("update method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMethodNotFound
	}
	return nil
}

func (r *PostgresMethodRepository) ReplaceBackupCodes(ctx context.Context, accountID uuid.UUID, codeHashes []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin replace backup codes: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE backup_codes SET consumed = true
		WHERE account_id = $1 AND NOT consumed`,
		accountID)
	if err != nil {
		return fmt.Errorf("invalidate backup codes: %w", err)
	}

	now := time.Now()
	for _, hash := range codeHashes {
		_, err = tx.Exec(ctx, `
			INSERT INTO backup_codes (id, account_id, code_hash, consumed, created_at)
			VALUES ($1, $2, $3, false, $4)`,
			uuid.New(), accountID, hash, now)
		if err != nil {
			return fmt.Errorf("insert backup code: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresMethodRepository) FindActiveBackupCodes(ctx context.Context, accountID uuid.UUID) ([]BackupCode, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_id, code_hash, consumed, created_at
		FROM backup_codes
		WHERE account_id = $1 AND NOT consumed`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("query backup codes: %w", err)
	}
	defer rows.Close()

	var out []BackupCode
	for rows.Next() {
		var c BackupCode
		if err := rows.Scan(&c.ID, &c.AccountID, &c.CodeHash, &c.Consumed, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backup code: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresMethodRepository) ConsumeBackupCode(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE backup_codes SET consumed = true
		WHERE id = $1 AND NOT consumed`,
		id)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
