package api

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/errors"
	"github.com/averly/authcore/pkg/tokengenerator"
)

type contextKey string

const accountIDKey contextKey = "account_id"

// AccountIDFromContext returns the authenticated account ID placed in the
// context by SessionAuthenticator.
func AccountIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

// SessionAuthenticator runs after jwtauth.Verifier. It rejects anything
// that is not a valid session token (challenge tokens in particular must
// not grant access to authenticated endpoints) and stores the account ID
// in the request context.
func SessionAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			renderError(w, r, errors.New(errors.ErrCodeSessionExpired, "session expired or invalid"))
			return
		}

		if tokenType(claims) != tokengenerator.TokenTypeSession {
			renderError(w, r, errors.New(errors.ErrCodeTokenInvalid, "unexpected token type"))
			return
		}

		sub, _ := claims["sub"].(string)
		accountID, parseErr := uuid.Parse(sub)
		if parseErr != nil {
			renderError(w, r, errors.New(errors.ErrCodeTokenInvalid, "invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, accountID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenType(claims map[string]interface{}) string {
	extra, ok := claims["extra_claims"].(map[string]interface{})
	if !ok {
		return ""
	}
	t, _ := extra["token_type"].(string)
	return t
}
