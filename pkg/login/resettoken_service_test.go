package login

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/accounts"
	"github.com/averly/authcore/pkg/audit"
	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/notification"
	"github.com/averly/authcore/pkg/utils"
)

type resetFixture struct {
	svc      *ResetTokenService
	tokens   *InMemoryResetTokenRepository
	accounts *accounts.InMemoryAccountRepository
	logger   *audit.InMemoryLogger
	notifier *notification.MockNotifier
	account  accounts.Account
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()

	tokens := NewInMemoryResetTokenRepository()
	accountRepo := accounts.NewInMemoryAccountRepository()
	logger := audit.NewInMemoryLogger()

	notifier := &notification.MockNotifier{}
	nm, err := notification.NewNotificationManagerWithOptions(notification.WithPasswordResetTemplate())
	require.NoError(t, err)
	nm.RegisterNotifier(notification.EmailSystem, notifier)

	account := newTestAccount(t, accountRepo, "user@example.com", "Password1")

	return &resetFixture{
		svc:      NewResetTokenService(tokens, accountRepo, logger, nm, DefaultConfig()),
		tokens:   tokens,
		accounts: accountRepo,
		logger:   logger,
		notifier: notifier,
		account:  account,
	}
}

func TestRequestReset(t *testing.T) {
	ctx := context.Background()

	t.Run("issues token and delivers it", func(t *testing.T) {
		f := newResetFixture(t)

		f.svc.RequestReset(ctx, "user@example.com")

		stored := f.tokens.Tokens()
		require.Len(t, stored, 1)
		assert.Equal(t, f.account.ID, stored[0].AccountID)
		assert.WithinDuration(t, time.Now().Add(24*time.Hour), stored[0].ExpiresAt, 5*time.Second)

		last, ok := f.notifier.Last()
		require.True(t, ok)
		assert.Equal(t, "user@example.com", last.To)
		// Only the hash is persisted; the delivered token must match it.
		assert.Equal(t, stored[0].TokenHash, utils.HashToken(last.Data["Token"]))

		assert.Len(t, f.logger.EventsOfType(audit.EventPasswordResetRequested), 1)
	})

	t.Run("unknown email issues nothing but counts", func(t *testing.T) {
		f := newResetFixture(t)

		f.svc.RequestReset(ctx, "nobody@example.com")

		assert.Empty(t, f.tokens.Tokens())
		assert.Empty(t, f.notifier.SentNotifications)
		assert.Len(t, f.logger.EventsOfType(audit.EventPasswordResetRequested), 1)
	})

	t.Run("fourth request within the window is skipped", func(t *testing.T) {
		f := newResetFixture(t)

		for i := 0; i < 4; i++ {
			f.svc.RequestReset(ctx, "user@example.com")
		}

		assert.Len(t, f.tokens.Tokens(), 3)
		assert.Len(t, f.notifier.SentNotifications, 3)
	})
}

func TestValidateAndConsume(t *testing.T) {
	ctx := context.Background()

	issueToken := func(t *testing.T, f *resetFixture) string {
		t.Helper()
		f.svc.RequestReset(ctx, "user@example.com")
		last, ok := f.notifier.Last()
		require.True(t, ok)
		return last.Data["Token"]
	}

	t.Run("redeems a live token once", func(t *testing.T) {
		f := newResetFixture(t)
		raw := issueToken(t, f)

		accountID, err := f.svc.ValidateAndConsume(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, f.account.ID, accountID)

		// A consumed token never validates again.
		_, err = f.svc.ValidateAndConsume(ctx, raw)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("unknown token", func(t *testing.T) {
		f := newResetFixture(t)

		_, err := f.svc.ValidateAndConsume(ctx, "no-such-token")
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newResetFixture(t)

		raw := utils.GenerateRandomString(resetTokenLength)
		require.NoError(t, f.tokens.Create(ctx, ResetToken{
			ID:        uuid.New(),
			AccountID: f.account.ID,
			TokenHash: utils.HashToken(raw),
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-25 * time.Hour),
		}))

		_, err := f.svc.ValidateAndConsume(ctx, raw)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("newest live token wins when hashes collide", func(t *testing.T) {
		f := newResetFixture(t)

		raw := utils.GenerateRandomString(resetTokenLength)
		older := ResetToken{
			ID:        uuid.New(),
			AccountID: f.account.ID,
			TokenHash: utils.HashToken(raw),
			ExpiresAt: time.Now().Add(time.Hour),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		newer := older
		newer.ID = uuid.New()
		newer.CreatedAt = time.Now()
		require.NoError(t, f.tokens.Create(ctx, older))
		require.NoError(t, f.tokens.Create(ctx, newer))

		token, err := f.svc.Validate(ctx, raw)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, token.ID)
	})
}
