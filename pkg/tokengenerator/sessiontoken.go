package tokengenerator

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/errors"
)

// Token type constants
const (
	TokenTypeSession   = "session"
	TokenTypeChallenge = "challenge"
)

// Default token lifetimes
const (
	DefaultSessionExpiry   = 1 * time.Hour
	DefaultChallengeExpiry = 10 * time.Minute
)

// TokenClaims is the decoded payload of a session or challenge token.
type TokenClaims struct {
	AccountID uuid.UUID
	TenantID  uuid.UUID
	TokenType string
	ExpiresAt time.Time
}

// SessionTokenService issues and decodes the two token kinds the
// authentication flow uses: full sessions and short-lived 2FA challenge
// tokens. Tokens are never persisted; the signature is the only state.
type SessionTokenService struct {
	generator       TokenGenerator
	sessionExpiry   time.Duration
	challengeExpiry time.Duration
}

// SessionTokenOption configures a SessionTokenService
type SessionTokenOption func(*SessionTokenService)

// WithSessionExpiry overrides the session token lifetime
func WithSessionExpiry(expiry time.Duration) SessionTokenOption {
	return func(s *SessionTokenService) {
		s.sessionExpiry = expiry
	}
}

// WithChallengeExpiry overrides the challenge token lifetime
func WithChallengeExpiry(expiry time.Duration) SessionTokenOption {
	return func(s *SessionTokenService) {
		s.challengeExpiry = expiry
	}
}

// NewSessionTokenService creates a SessionTokenService on top of a TokenGenerator.
func NewSessionTokenService(generator TokenGenerator, opts ...SessionTokenOption) *SessionTokenService {
	s := &SessionTokenService{
		generator:       generator,
		sessionExpiry:   DefaultSessionExpiry,
		challengeExpiry: DefaultChallengeExpiry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueSession issues a full session token for an authenticated account.
func (s *SessionTokenService) IssueSession(accountID, tenantID uuid.UUID) (string, time.Time, error) {
	return s.generator.GenerateToken(accountID.String(), s.sessionExpiry, map[string]interface{}{
		"tenant_id":  tenantID.String(),
		"token_type": TokenTypeSession,
	})
}

// IssueChallenge issues a short-lived token that only grants the right to
// complete a pending second-factor challenge.
func (s *SessionTokenService) IssueChallenge(accountID, tenantID uuid.UUID) (string, time.Time, error) {
	return s.generator.GenerateToken(accountID.String(), s.challengeExpiry, map[string]interface{}{
		"tenant_id":  tenantID.String(),
		"token_type": TokenTypeChallenge,
	})
}

// Decode validates a token string and checks it carries the wanted token
// type. A session token never passes where a challenge token is expected,
// and vice versa.
func (s *SessionTokenService) Decode(tokenStr, wantType string) (TokenClaims, error) {
	token, err := s.generator.ParseToken(tokenStr)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, errors.New(errors.ErrCodeTokenExpired, "token has expired")
		}
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "invalid token claims")
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "invalid token subject")
	}

	tokenType, _ := claims.ExtraClaims["token_type"].(string)
	if tokenType != wantType {
		return TokenClaims{}, errors.New(errors.ErrCodeTokenInvalid, "unexpected token type")
	}

	var tenantID uuid.UUID
	if raw, ok := claims.ExtraClaims["tenant_id"].(string); ok {
		tenantID, _ = uuid.Parse(raw)
	}

	out := TokenClaims{
		AccountID: accountID,
		TenantID:  tenantID,
		TokenType: tokenType,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
