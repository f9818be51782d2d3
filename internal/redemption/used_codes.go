package redemption

import (
	"context"
	"fmt"

	"github.com/summari/backend/internal/cache"
)

// usedCodesKey is the Redis set holding every redeemed code.
const usedCodesKey = "redemption:used_codes"

// RedisUsedCodeStore tracks redeemed codes in a Redis set.
type RedisUsedCodeStore struct {
	redis *cache.Redis
}

// NewRedisUsedCodeStore creates a new Redis-backed used-code store.
func NewRedisUsedCodeStore(redis *cache.Redis) *RedisUsedCodeStore {
	return &RedisUsedCodeStore{redis: redis}
}

// IsUsed reports whether the code has been redeemed before.
func (s *RedisUsedCodeStore) IsUsed(ctx context.Context, code string) (bool, error) {
	used, err := s.redis.SIsMember(ctx, usedCodesKey, code)
	if err != nil {
		return false, fmt.Errorf("failed to check used code: %w", err)
	}
	return used, nil
}

// MarkUsed records the code as redeemed.
func (s *RedisUsedCodeStore) MarkUsed(ctx context.Context, code string) error {
	if err := s.redis.SAdd(ctx, usedCodesKey, code); err != nil {
		return fmt.Errorf("failed to mark code as used: %w", err)
	}
	return nil
}
