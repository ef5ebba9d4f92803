package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common repository errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("email already registered")
)

// Account represents an identity record. The authentication core mutates
// its lockout fields, last-login timestamp, and password hash; it never
// deletes accounts.
type Account struct {
	ID                  uuid.UUID
	Email               string
	PasswordHash        []byte
	Active              bool
	TenantID            uuid.UUID
	FailedLoginAttempts int32
	LockedUntil         time.Time // zero value means not locked
	LastLoginAt         time.Time
	PasswordUpdatedAt   time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// AccountRepository defines the storage operations the authentication core
// needs. Implementations must make IncrementFailedAttempts atomic; the
// read-modify-write callers tolerate lost updates but the increment itself
// must not corrupt the counter.
type AccountRepository interface {
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (Account, error)
	Create(ctx context.Context, account Account) (Account, error)

	// Lockout state
	IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int32, error)
	LockAccount(ctx context.Context, id uuid.UUID, until time.Time) error
	ResetLockout(ctx context.Context, id uuid.UUID) error

	// Login bookkeeping
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// Password
	UpdatePassword(ctx context.Context, id uuid.UUID, hash []byte, updatedAt time.Time) error
}
