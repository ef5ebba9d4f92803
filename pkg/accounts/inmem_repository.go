package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/utils"
)

// InMemoryAccountRepository implements AccountRepository using in-memory
// storage. Used by tests and by deployments that have not wired Postgres.
type InMemoryAccountRepository struct {
	mu              sync.RWMutex
	accounts        map[uuid.UUID]Account
	accountsByEmail map[string]uuid.UUID
}

// NewInMemoryAccountRepository creates a new in-memory account repository
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts:        make(map[uuid.UUID]Account),
		accountsByEmail: make(map[string]uuid.UUID),
	}
}

// FindByEmail finds an account by its case-normalized email
func (r *InMemoryAccountRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.accountsByEmail[utils.NormalizeEmail(email)]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

// FindByID finds an account by ID
func (r *InMemoryAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

// Create stores a new account
func (r *InMemoryAccountRepository) Create(ctx context.Context, account Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := utils.NormalizeEmail(account.Email)
	if _, exists := r.accountsByEmail[email]; exists {
		return Account{}, ErrDuplicateEmail
	}

	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.Email = email
	account.CreatedAt = now
	account.UpdatedAt = now

	r.accounts[account.ID] = account
	r.accountsByEmail[email] = account.ID
	return account, nil
}

// IncrementFailedAttempts increments the failed login counter and returns
// the new count
func (r *InMemoryAccountRepository) IncrementFailedAttempts(ctx context.Context, id uuid.UUID) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return 0, ErrAccountNotFound
	}

	account.FailedLoginAttempts++
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return account.FailedLoginAttempts, nil
}

// LockAccount sets the lockout expiry
func (r *InMemoryAccountRepository) LockAccount(ctx context.Context, id uuid.UUID, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	account.LockedUntil = until
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// ResetLockout clears the failure counter and lockout expiry
func (r *InMemoryAccountRepository) ResetLockout(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	account.FailedLoginAttempts = 0
	account.LockedUntil = time.Time{}
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// RecordLogin stamps the last successful login
func (r *InMemoryAccountRepository) RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	account.LastLoginAt = at
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// UpdatePassword replaces the stored password hash
func (r *InMemoryAccountRepository) UpdatePassword(ctx context.Context, id uuid.UUID, hash []byte, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}

	account.PasswordHash = hash
	account.PasswordUpdatedAt = updatedAt
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// SetActive flips the active flag (helper for tests and admin tooling)
func (r *InMemoryAccountRepository) SetActive(id uuid.UUID, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if account, ok := r.accounts[id]; ok {
		account.Active = active
		r.accounts[id] = account
	}
}
