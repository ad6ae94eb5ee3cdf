package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements fixed windows with INCR and EXPIRE, so limits are
// shared by every process pointing at the same Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to redisURL and fails when the server does not
// answer a ping within five seconds.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient wraps client without checking it.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "ratelimit:",
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Allow records one request for key. The window starts with the first
// request and expires with the key.
func (s *RedisStore) Allow(ctx context.Context, name string, limit int, window time.Duration) (Decision, error) {
	key := s.key(name)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("increment rate window: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire rate window: %w", err)
		}
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("read rate window ttl: %w", err)
	}
	if ttl < 0 {
		// A crash between INCR and PEXPIRE leaves a key without expiry.
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return Decision{}, fmt.Errorf("expire rate window: %w", err)
		}
		ttl = window
	}
	return decide(int(count), limit, ttl), nil
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping is used by the health check.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
