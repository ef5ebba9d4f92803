package tokengenerator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averly/authcore/pkg/errors"
)

const testSecret = "test-secret-key-for-signing"

func newTestService(opts ...SessionTokenOption) *SessionTokenService {
	generator := NewJwtTokenGenerator(testSecret, "authcore", "authcore-api")
	return NewSessionTokenService(generator, opts...)
}

func TestIssueAndDecode(t *testing.T) {
	svc := newTestService()
	accountID := uuid.New()
	tenantID := uuid.New()

	t.Run("session token round trip", func(t *testing.T) {
		token, expiry, err := svc.IssueSession(accountID, tenantID)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(DefaultSessionExpiry), expiry, 5*time.Second)

		claims, err := svc.Decode(token, TokenTypeSession)
		require.NoError(t, err)
		assert.Equal(t, accountID, claims.AccountID)
		assert.Equal(t, tenantID, claims.TenantID)
		assert.Equal(t, TokenTypeSession, claims.TokenType)
	})

	t.Run("challenge token round trip", func(t *testing.T) {
		token, expiry, err := svc.IssueChallenge(accountID, tenantID)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(DefaultChallengeExpiry), expiry, 5*time.Second)

		claims, err := svc.Decode(token, TokenTypeChallenge)
		require.NoError(t, err)
		assert.Equal(t, TokenTypeChallenge, claims.TokenType)
	})

	t.Run("token types are not interchangeable", func(t *testing.T) {
		challenge, _, err := svc.IssueChallenge(accountID, tenantID)
		require.NoError(t, err)
		session, _, err := svc.IssueSession(accountID, tenantID)
		require.NoError(t, err)

		_, err = svc.Decode(challenge, TokenTypeSession)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))

		_, err = svc.Decode(session, TokenTypeChallenge)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})
}

func TestDecodeRejections(t *testing.T) {
	svc := newTestService()
	accountID := uuid.New()
	tenantID := uuid.New()

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Decode("not-a-token", TokenTypeSession)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("expired token", func(t *testing.T) {
		expired := newTestService(WithSessionExpiry(-time.Minute))
		token, _, err := expired.IssueSession(accountID, tenantID)
		require.NoError(t, err)

		_, err = svc.Decode(token, TokenTypeSession)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenExpired))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := NewSessionTokenService(NewJwtTokenGenerator("other-secret", "authcore", "authcore-api"))
		token, _, err := other.IssueSession(accountID, tenantID)
		require.NoError(t, err)

		_, err = svc.Decode(token, TokenTypeSession)
		require.Error(t, err)
		assert.True(t, errors.IsCode(err, errors.ErrCodeTokenInvalid))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewSessionTokenService(NewJwtTokenGenerator(testSecret, "someone-else", "authcore-api"))
		token, _, err := other.IssueSession(accountID, tenantID)
		require.NoError(t, err)

		_, err = svc.Decode(token, TokenTypeSession)
		assert.Error(t, err)
	})
}
