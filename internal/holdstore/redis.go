package holdstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore backs ExpiringStore with a Redis instance.  The value is
// irrelevant; only key presence and TTL matter.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing client.  The caller owns the client's
// lifecycle.
func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrNonPositiveTTL
	}
	return s.rdb.Set(ctx, key, "1", ttl).Err()
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
