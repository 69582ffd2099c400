package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRevocationList stores revoked token ids with the token's remaining TTL.
type RedisRevocationList struct {
	client redis.Cmdable
	prefix string
}

func NewRedisRevocationList(client redis.Cmdable, prefix string) *RedisRevocationList {
	if client == nil {
		return nil
	}
	if prefix == "" {
		prefix = DefaultRevocationPrefix
	}
	return &RedisRevocationList{client: client, prefix: prefix}
}

func (l *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if l == nil || jti == "" {
		return fmt.Errorf("revocation list not configured")
	}
	return l.client.Set(ctx, l.key(jti), "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if l == nil || jti == "" {
		return false, nil
	}
	n, err := l.client.Exists(ctx, l.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *RedisRevocationList) key(jti string) string {
	return l.prefix + jti
}
