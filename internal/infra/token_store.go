package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"helpdesk.com/internal/constants"
)

// RedisTokenStore keeps revoked refresh-token IDs in Redis with an expiry
// matching the token's remaining lifetime.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

// Revoke marks jti as revoked with SETNX; false means another caller got there first.
func (s *RedisTokenStore) Revoke(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	first, err := s.rdb.SetNX(ctx, constants.RedisKeyRevokedToken+jti, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke token in redis: %w", err)
	}
	return first, nil
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.rdb.Exists(ctx, constants.RedisKeyRevokedToken+jti).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read token state from redis: %w", err)
	}
	return n > 0, nil
}
