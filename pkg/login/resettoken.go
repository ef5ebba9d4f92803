package login

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrResetTokenNotFound is returned when no live token matches.
var ErrResetTokenNotFound = errors.New("reset token not found")

// ResetToken is a single-use password reset grant. Only the one-way hash of
// the raw token is ever stored.
type ResetToken struct {
	ID         uuid.UUID
	AccountID  uuid.UUID
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// Live reports whether the token is still usable at the given time.
func (t ResetToken) Live(now time.Time) bool {
	return t.ConsumedAt == nil && now.Before(t.ExpiresAt)
}

// ResetTokenRepository stores reset token rows. FindLiveByHash must return
// the most recently created live row when several share a hash.
type ResetTokenRepository interface {
	Create(ctx context.Context, token ResetToken) error
	FindLiveByHash(ctx context.Context, tokenHash string, now time.Time) (ResetToken, error)
	MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error
}
