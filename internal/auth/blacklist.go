package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistPrefix = "token:blacklist:"

// RedisBlacklist stores revoked tokens in Redis until they would have expired.
type RedisBlacklist struct {
	db *redis.Client
}

func NewRedisBlacklist(db *redis.Client) *RedisBlacklist {
	return &RedisBlacklist{db: db}
}

// Revoke adds the token to the blacklist for ttl.
func (b *RedisBlacklist) Revoke(ctx context.Context, tokenString string, ttl time.Duration) error {
	return b.db.Set(ctx, blacklistPrefix+tokenString, true, ttl).Err()
}

// Check if token is in the blacklist
func (b *RedisBlacklist) IsRevoked(ctx context.Context, tokenString string) (bool, error) {
	err := b.db.Get(ctx, blacklistPrefix+tokenString).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
