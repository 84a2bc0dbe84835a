package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb           *redis.Client
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock takes a lock for ttl. It returns the owner token needed to release it,
// or ok=false when someone else holds the lock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, LockKey(lockKey), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a lock only if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	if err := c.releaseScript.Run(ctx, c.rdb, []string{LockKey(lockKey)}, token).Err(); err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}

// RememberOrder stores the order created for an idempotency key
func (c *Client) RememberOrder(ctx context.Context, key string, orderID int64, ttl time.Duration) error {
	return c.rdb.Set(ctx, IdempotencyKey(key), orderID, ttl).Err()
}

// LookupOrder returns the order remembered for an idempotency key
func (c *Client) LookupOrder(ctx context.Context, key string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, IdempotencyKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency entry %q: %w", key, err)
	}
	return id, true, nil
}

// LockKey namespaces a lock name
func LockKey(name string) string {
	return "lock:" + name
}

// IdempotencyKey namespaces an idempotency key
func IdempotencyKey(key string) string {
	return "idempotency:" + key
}
