package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fraud-ledger/internal/pkg/config"
)

// Owner-checked key operations: only the caller holding the token stored
// under KEYS[1] may extend or delete it.
var (
	deleteIfOwnerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	expireIfOwnerScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// Client is the Redis connection used for cross-process coordination
type Client struct {
	rdb *redis.Client
}

// NewClient dials Redis and fails fast when it is unreachable
func NewClient(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
	}

	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping backs the readiness check
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Claim stores token under key for ttl unless the key is already held
func (c *Client) Claim(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, token, ttl).Result()
}

// Owner returns the token currently stored under key
func (c *Client) Owner(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Extend resets the key's ttl if token still owns it
func (c *Client) Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	n, err := expireIfOwnerScript.Run(ctx, c.rdb, []string{key}, token, ttl.Milliseconds()).Int()
	return n == 1, err
}

// Release deletes the key if token still owns it
func (c *Client) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := deleteIfOwnerScript.Run(ctx, c.rdb, []string{key}, token).Int()
	return n == 1, err
}
