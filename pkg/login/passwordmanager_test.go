package login

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
)

func TestChangePassword(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*PasswordManager, *accounts.InMemoryAccountRepository, accounts.Account, *audit.InMemoryLogger) {
		repo := accounts.NewInMemoryAccountRepository()
		logger := audit.NewInMemoryLogger()
		pm := NewPasswordManager(repo, nil, nil, logger)
		account := newTestAccount(t, repo, "user@example.com", "Password1")
		return pm, repo, account, logger
	}

	t.Run("success", func(t *testing.T) {
		pm, repo, account, logger := setup(t)

		err := pm.ChangePassword(ctx, account.ID, "Password1", "NewPassword2")
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, account.ID)
		require.NoError(t, err)
		match, err := NewBcryptHasher().Verify("NewPassword2", stored.PasswordHash)
		require.NoError(t, err)
		assert.True(t, match)
		assert.False(t, stored.PasswordUpdatedAt.IsZero())
		assert.Len(t, logger.EventsOfType(audit.EventPasswordChanged), 1)
	})

	t.Run("wrong current password", func(t *testing.T) {
		pm, _, account, _ := setup(t)

		err := pm.ChangePassword(ctx, account.ID, "wrong", "NewPassword2")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))
	})

	t.Run("same password rejected", func(t *testing.T) {
		pm, _, account, _ := setup(t)

		err := pm.ChangePassword(ctx, account.ID, "Password1", "Password1")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodePasswordReused))
	})

	t.Run("complexity enforced", func(t *testing.T) {
		pm, _, account, _ := setup(t)

		err := pm.ChangePassword(ctx, account.ID, "Password1", "short")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodePasswordComplexity))
	})
}

func TestPasswordChangedNotification(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*PasswordManager, accounts.Account, *notification.MockNotifier) {
		repo := accounts.NewInMemoryAccountRepository()
		logger := audit.NewInMemoryLogger()
		notifier := &notification.MockNotifier{}
		nm, err := notification.NewNotificationManagerWithOptions(notification.WithDefaultTemplates())
		require.NoError(t, err)
		nm.RegisterNotifier(notification.EmailSystem, notifier)
		pm := NewPasswordManager(repo, nil, nil, logger, WithPasswordNotifications(nm))
		account := newTestAccount(t, repo, "user@example.com", "Password1")
		return pm, account, notifier
	}

	t.Run("sent after change", func(t *testing.T) {
		pm, account, notifier := setup(t)

		require.NoError(t, pm.ChangePassword(ctx, account.ID, "Password1", "NewPassword2"))

		require.Len(t, notifier.SentTypes, 1)
		assert.Equal(t, notification.PasswordChangedNotice, notifier.SentTypes[0])
		last, ok := notifier.Last()
		require.True(t, ok)
		assert.Equal(t, account.Email, last.To)
	})

	t.Run("sent after reset", func(t *testing.T) {
		pm, account, notifier := setup(t)

		require.NoError(t, pm.SetPassword(ctx, account.ID, "NewPassword2"))

		require.Len(t, notifier.SentTypes, 1)
		assert.Equal(t, notification.PasswordChangedNotice, notifier.SentTypes[0])
	})

	t.Run("not sent on rejected change", func(t *testing.T) {
		pm, account, notifier := setup(t)

		require.Error(t, pm.ChangePassword(ctx, account.ID, "Password1", "short"))
		assert.Empty(t, notifier.SentTypes)
	})
}

func TestPasswordPolicy(t *testing.T) {
	policy := DefaultPasswordPolicy()

	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Password1", false},
		{"too short", "Pw1", true},
		{"no uppercase", "password1", true},
		{"no lowercase", "PASSWORD1", true},
		{"no digit", "PasswordX", true},
		{"repeated run", "Paaaassword1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.CheckPasswordComplexity(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
