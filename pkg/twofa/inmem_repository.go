package twofa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryMethodRepository is a thread-safe in-memory implementation of
// MethodRepository, suitable for tests and development.
type InMemoryMethodRepository struct {
	mu          sync.RWMutex
	methods     map[uuid.UUID]Method     // by method id
	backupCodes map[uuid.UUID]BackupCode // by code id
}

func NewInMemoryMethodRepository() *InMemoryMethodRepository {
	return &InMemoryMethodRepository{
		methods:     make(map[uuid.UUID]Method),
		backupCodes: make(map[uuid.UUID]BackupCode),
	}
}

func (r *InMemoryMethodRepository) UpsertMethod(ctx context.Context, method Method) (Method, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for id, existing := range r.methods {
		if existing.AccountID == method.AccountID && existing.Kind == method.Kind {
			existing.Secret = method.Secret
			existing.PhoneNumber = method.PhoneNumber
			existing.Enabled = method.Enabled
			existing.UpdatedAt = now
			r.methods[id] = existing
			return existing, nil
		}
	}

	if method.ID == uuid.Nil {
		method.ID = uuid.New()
	}
	method.CreatedAt = now
	method.UpdatedAt = now
	r.methods[method.ID] = method
	return method, nil
}

func (r *InMemoryMethodRepository) FindMethod(ctx context.Context, accountID uuid.UUID, kind string) (Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.methods {
		if m.AccountID == accountID && m.Kind == kind {
			return m, nil
		}
	}
	return Method{}, ErrMethodNotFound
}

func (r *InMemoryMethodRepository) FindMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Method
	for _, m := range r.methods {
		if m.AccountID == accountID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *InMemoryMethodRepository) FindEnabledMethods(ctx context.Context, accountID uuid.UUID) ([]Method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Method
	for _, m := range r.methods {
		if m.AccountID == accountID && m.Enabled {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *InMemoryMethodRepository) SetMethodEnabled(ctx context.Context, accountID uuid.UUID, kind string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, m := range r.methods {
		if m.AccountID == accountID && m.Kind == kind {
			m.Enabled = enabled
			m.UpdatedAt = time.Now()
			r.methods[id] = m
			return nil
		}
	}
	return ErrMethodNotFound
}

func (r *InMemoryMethodRepository) ReplaceBackupCodes(ctx context.Context, accountID uuid.UUID, codeHashes []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, code := range r.backupCodes {
		if code.AccountID == accountID && !code.Consumed {
			code.Consumed = true
			r.backupCodes[id] = code
		}
	}

	now := time.Now()
	for _, hash := range codeHashes {
		code := BackupCode{
			ID:        uuid.New(),
			AccountID: accountID,
			CodeHash:  hash,
			CreatedAt: now,
		}
		r.backupCodes[code.ID] = code
	}
	return nil
}

func (r *InMemoryMethodRepository) FindActiveBackupCodes(ctx context.Context, accountID uuid.UUID) ([]BackupCode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []BackupCode
	for _, code := range r.backupCodes {
		if code.AccountID == accountID && !code.Consumed {
			out = append(out, code)
		}
	}
	return out, nil
}

func (r *InMemoryMethodRepository) ConsumeBackupCode(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	code, ok := r.backupCodes[id]
	if !ok || code.Consumed {
		return false, nil
	}
	code.Consumed = true
	r.backupCodes[id] = code
	return true, nil
}

var _ MethodRepository = (*InMemoryMethodRepository)(nil)
