package login

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/averly/authcore/pkg/utils"
)

// InMemoryResetTokenRepository is a thread-safe in-memory implementation of
// ResetTokenRepository, suitable for tests and development.
type InMemoryResetTokenRepository struct {
	mu     sync.RWMutex
	tokens map[uuid.UUID]ResetToken
}

func NewInMemoryResetTokenRepository() *InMemoryResetTokenRepository {
	return &InMemoryResetTokenRepository{
		tokens: make(map[uuid.UUID]ResetToken),
	}
}

func (r *InMemoryResetTokenRepository) Create(ctx context.Context, token ResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token.ID] = token
	return nil
}

func (r *InMemoryResetTokenRepository) FindLiveByHash(ctx context.Context, tokenHash string, now time.Time) (ResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best ResetToken
	found := false
	for _, token := range r.tokens {
		if !utils.SecureCompare(token.TokenHash, tokenHash) {
			continue
		}
		if !token.Live(now) {
			continue
		}
		if !found || token.CreatedAt.After(best.CreatedAt) {
			best = token
			found = true
		}
	}
	if !found {
		return ResetToken{}, ErrResetTokenNotFound
	}
	return best, nil
}

func (r *InMemoryResetTokenRepository) MarkConsumed(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[id]
	if !ok {
		return ErrResetTokenNotFound
	}
	token.ConsumedAt = &at
	r.tokens[id] = token
	return nil
}

// Tokens returns a snapshot of all stored tokens, for tests.
func (r *InMemoryResetTokenRepository) Tokens() []ResetToken {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ResetToken, 0, len(r.tokens))
	for _, token := range r.tokens {
		out = append(out, token)
	}
	return out
}

var _ ResetTokenRepository = (*InMemoryResetTokenRepository)(nil)
