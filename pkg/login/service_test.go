package login

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
)

func newTestAccount(t *testing.T, repo *accounts.InMemoryAccountRepository, email, password string) accounts.Account {
	t.Helper()

	hash, err := NewBcryptHasher().Hash(password)
	require.NoError(t, err)

	account, err := repo.Create(context.Background(), accounts.Account{
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	require.NoError(t, err)
	return account
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*LoginService, *accounts.InMemoryAccountRepository, *audit.InMemoryLogger) {
		repo := accounts.NewInMemoryAccountRepository()
		logger := audit.NewInMemoryLogger()
		svc := NewLoginService(repo, logger)
		return svc, repo, logger
	}

	t.Run("success", func(t *testing.T) {
		svc, repo, logger := setup(t)
		created := newTestAccount(t, repo, "user@example.com", "Password1")

		account, err := svc.Login(ctx, "user@example.com", "Password1")
		require.NoError(t, err)
		assert.Equal(t, created.ID, account.ID)

		svc.RecordSuccess(ctx, account)
		stored, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, stored.LastLoginAt.IsZero())
		assert.Empty(t, logger.EventsOfType(audit.EventInvalidPassword))
	})

	t.Run("email is case-insensitive", func(t *testing.T) {
		svc, repo, _ := setup(t)
		newTestAccount(t, repo, "user@example.com", "Password1")

		_, err := svc.Login(ctx, "  User@Example.COM ", "Password1")
		assert.NoError(t, err)
	})

	t.Run("unknown email and wrong password are indistinguishable", func(t *testing.T) {
		svc, repo, logger := setup(t)
		newTestAccount(t, repo, "user@example.com", "Password1")

		_, errUnknown := svc.Login(ctx, "nobody@example.com", "Password1")
		_, errWrong := svc.Login(ctx, "user@example.com", "wrong-password")

		require.Error(t, errUnknown)
		require.Error(t, errWrong)
		assert.Equal(t, errUnknown.Error(), errWrong.Error())
		assert.True(t, errors.IsCode(errUnknown, errors.ErrCodeInvalidCredentials))
		assert.True(t, errors.IsCode(errWrong, errors.ErrCodeInvalidCredentials))

		assert.Len(t, logger.EventsOfType(audit.EventUserNotFound), 1)
		assert.Len(t, logger.EventsOfType(audit.EventInvalidPassword), 1)
	})

	t.Run("locks after max failed attempts", func(t *testing.T) {
		svc, repo, logger := setup(t)
		newTestAccount(t, repo, "user@example.com", "Password1")

		for i := 0; i < 5; i++ {
			_, err := svc.Login(ctx, "user@example.com", "wrong-password")
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials), "attempt %d", i+1)
		}

		// Correct password while locked still fails with the lockout error.
		_, err := svc.Login(ctx, "user@example.com", "Password1")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAccountLocked))
		assert.Len(t, logger.EventsOfType(audit.EventAccountLocked), 1)
	})

	t.Run("expired lockout is cleared lazily", func(t *testing.T) {
		svc, repo, _ := setup(t)
		created := newTestAccount(t, repo, "user@example.com", "Password1")

		require.NoError(t, repo.LockAccount(ctx, created.ID, time.Now().Add(-time.Minute)))
		_, err := repo.IncrementFailedAttempts(ctx, created.ID)
		require.NoError(t, err)

		_, err = svc.Login(ctx, "user@example.com", "Password1")
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, stored.LockedUntil.IsZero())
		assert.Zero(t, stored.FailedLoginAttempts)
	})

	t.Run("inactive account rejected after password check", func(t *testing.T) {
		svc, repo, logger := setup(t)
		created := newTestAccount(t, repo, "user@example.com", "Password1")
		repo.SetActive(created.ID, false)

		_, err := svc.Login(ctx, "user@example.com", "Password1")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeAccountInactive))
		assert.Len(t, logger.EventsOfType(audit.EventUserInactive), 1)

		// Wrong password against an inactive account still reads as a
		// credential rejection, not an inactivity rejection.
		_, err = svc.Login(ctx, "user@example.com", "wrong-password")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))
	})

	t.Run("recorded success resets failure counter", func(t *testing.T) {
		svc, repo, _ := setup(t)
		created := newTestAccount(t, repo, "user@example.com", "Password1")

		for i := 0; i < 3; i++ {
			_, err := svc.Login(ctx, "user@example.com", "wrong-password")
			require.Error(t, err)
		}

		account, err := svc.Login(ctx, "user@example.com", "Password1")
		require.NoError(t, err)
		svc.RecordSuccess(ctx, account)

		stored, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Zero(t, stored.FailedLoginAttempts)
	})
}

func TestRecordFailure(t *testing.T) {
	ctx := context.Background()
	repo := accounts.NewInMemoryAccountRepository()
	svc := NewLoginService(repo, audit.NewInMemoryLogger())
	created := newTestAccount(t, repo, "user@example.com", "Password1")

	for i := 1; i < 5; i++ {
		status := svc.RecordFailure(ctx, created)
		assert.Equal(t, int32(i), status.Attempts)
		assert.False(t, status.Locked)
	}

	status := svc.RecordFailure(ctx, created)
	assert.Equal(t, int32(5), status.Attempts)
	assert.True(t, status.Locked)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), status.Until, 5*time.Second)
}

func TestBcryptHasher(t *testing.T) {
	hasher := NewBcryptHasher()

	t.Run("hash and verify", func(t *testing.T) {
		hash, err := hasher.Hash("Password1")
		require.NoError(t, err)

		match, err := hasher.Verify("Password1", hash)
		require.NoError(t, err)
		assert.True(t, match)

		match, err = hasher.Verify("other", hash)
		require.NoError(t, err)
		assert.False(t, match)
	})

	t.Run("empty password rejected", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.Error(t, err)

		_, err = hasher.Verify("", []byte("hash"))
		assert.Error(t, err)
	})
}
