package twofa

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisCodePrefix     = "twofa:code"
	redisAttemptsPrefix = "twofa:attempts"
	redisLockPrefix     = "twofa:lock"
)

// Compile-time interface assertion
var _ OTPStore = (*RedisOTPStore)(nil)

// RedisOTPStore implements OTPStore on Redis, leaning on key TTLs for code
// expiry, attempt windows, and channel locks. Suitable when the service runs
// as multiple replicas that must share challenge state.
type RedisOTPStore struct {
	client *redis.Client
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func redisKey(prefix string, accountID uuid.UUID, kind string) string {
	return prefix + ":" + accountID.String() + ":" + kind
}

func (s *RedisOTPStore) SaveCode(ctx context.Context, accountID uuid.UUID, kind, codeHash string, ttl time.Duration) error {
	return s.client.Set(ctx, redisKey(redisCodePrefix, accountID, kind), codeHash, ttl).Err()
}

func (s *RedisOTPStore) GetCodeHash(ctx context.Context, accountID uuid.UUID, kind string) (string, error) {
	val, err := s.client.Get(ctx, redisKey(redisCodePrefix, accountID, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoActiveCode
		}
		return "", err
	}
	return val, nil
}

func (s *RedisOTPStore) DeleteCode(ctx context.Context, accountID uuid.UUID, kind string) error {
	return s.client.Del(ctx, redisKey(redisCodePrefix, accountID, kind)).Err()
}

func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) (int, error) {
	key := redisKey(redisAttemptsPrefix, accountID, kind)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return int(count), err
		}
	}
	return int(count), nil
}

func (s *RedisOTPStore) ClearAttempts(ctx context.Context, accountID uuid.UUID, kind string) error {
	return s.client.Del(ctx, redisKey(redisAttemptsPrefix, accountID, kind)).Err()
}

func (s *RedisOTPStore) LockChannel(ctx context.Context, accountID uuid.UUID, kind string, ttl time.Duration) error {
	return s.client.Set(ctx, redisKey(redisLockPrefix, accountID, kind), "1", ttl).Err()
}

func (s *RedisOTPStore) IsChannelLocked(ctx context.Context, accountID uuid.UUID, kind string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKey(redisLockPrefix, accountID, kind)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
