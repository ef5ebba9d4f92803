package twofa

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoActiveCode is returned when no unexpired code exists for a channel.
var ErrNoActiveCode = errors.New("no active code for channel")

// OTPStore holds issued email/SMS verification codes, their per-channel
// attempt counters, and channel lock state. All entries expire on their own;
// the store is a cache, not a system of record.
type OTPStore interface {
	SaveCode(ctx context.Context, accountID uuid.UUID, kind, codeHash string, ttl time.Duration) error
	GetCodeHash(ctx context.Context, accountID uuid.UUID, kind string) (string, error)
	DeleteCode(ctx context.Context, accountID uuid.UUID, kind string) error

	IncrementAttempts(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) (int, error)
	ClearAttempts(ctx context.Context, accountID uuid.UUID, kind string) error

	LockChannel(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) error
	IsChannelLocked(ctx context.Context, accountID uuid.UUID, kind string) (bool, error)
}

type otpEntry struct {
	value     string
	count     int
	expiresAt time.Time
}

// InMemoryOTPStore is a thread-safe in-memory OTPStore with lazy expiry.
type InMemoryOTPStore struct {
	mu       sync.Mutex
	codes    map[string]otpEntry
	attempts map[string]otpEntry
	locks    map[string]otpEntry
}

func NewInMemoryOTPStore() *InMemoryOTPStore {
	return &InMemoryOTPStore{
		codes:    make(map[string]otpEntry),
		attempts: make(map[string]otpEntry),
		locks:    make(map[string]otpEntry),
	}
}

func otpKey(accountID uuid.UUID, kind string) string {
	return accountID.String() + ":" + kind
}

func (s *InMemoryOTPStore) SaveCode(ctx context.Context, accountID uuid.UUID, kind, codeHash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[otpKey(accountID, kind)] = otpEntry{value: codeHash, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryOTPStore) GetCodeHash(ctx context.Context, accountID uuid.UUID, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey(accountID, kind)
	entry, ok := s.codes[key]
	if !ok {
		return "", ErrNoActiveCode
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.codes, key)
		return "", ErrNoActiveCode
	}
	return entry.value, nil
}

func (s *InMemoryOTPStore) DeleteCode(ctx context.Context, accountID uuid.UUID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.codes, otpKey(accountID, kind))
	return nil
}

func (s *InMemoryOTPStore) IncrementAttempts(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey(accountID, kind)
	entry, ok := s.attempts[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = otpEntry{expiresAt: time.Now().Add(ttl)}
	}
	entry.count++
	s.attempts[key] = entry
	return entry.count, nil
}

func (s *InMemoryOTPStore) ClearAttempts(ctx context.Context, accountID uuid.UUID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.attempts, otpKey(accountID, kind))
	return nil
}

func (s *InMemoryOTPStore) LockChannel(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[otpKey(accountID, kind)] = otpEntry{expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *InMemoryOTPStore) IsChannelLocked(ctx context.Context, accountID uuid.UUID, kind string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := otpKey(accountID, kind)
	entry, ok := s.locks[key]
	if !ok {
		return false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(s.locks, key)
		return false, nil
	}
	return true, nil
}

var _ OTPStore = (*InMemoryOTPStore)(nil)
