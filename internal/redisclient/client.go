package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is the Redis-backed scheduler-state store. It records when each
// market and the weekly full sweep last ran, so restarts do not re-fire
// slots that already ran today. It implements schedule.StateStore.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LastRun returns the recorded last run time for a schedule key, or the
// zero time when the key has never run.
func (c *Client) LastRun(ctx context.Context, key string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, lastRunKey(key)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last-run value for %s: %w", key, err)
	}
	return t, nil
}

// SetLastRun records the last run time for a schedule key.
func (c *Client) SetLastRun(ctx context.Context, key string, t time.Time) error {
	return c.rdb.Set(ctx, lastRunKey(key), t.Format(time.RFC3339Nano), 0).Err()
}

// AcquireLock acquires a distributed lock, for deployments running more
// than one scheduler instance against the same fleet.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

func lastRunKey(key string) string {
	return "lastrun:" + key
}
