package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

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

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// TryLock acquires a cross-process sync lock for a tenant sync domain.
// Returns false when another instance holds it.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, "synclock:"+key, "1", ttl).Result()
}

// Unlock releases a sync lock
func (c *Client) Unlock(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, "synclock:"+key).Err()
}

// SetLastSync records when a tenant sync domain last completed
func (c *Client) SetLastSync(ctx context.Context, key string, at time.Time) error {
	return c.rdb.Set(ctx, "lastsync:"+key, at.UTC().Format(time.RFC3339), 0).Err()
}

// GetLastSync retrieves the last completion time for a tenant sync domain.
// The zero time means no sync has been recorded.
func (c *Client) GetLastSync(ctx context.Context, key string) (time.Time, error) {
	val, err := c.rdb.Get(ctx, "lastsync:"+key).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, val)
}
