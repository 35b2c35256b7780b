package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Cache = (*RedisCache)(nil)

// RedisCache is the Redis-backed [Cache].
type RedisCache struct {
	client *redis.Client
	log    *slog.Logger
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // optional
	DB       int    // database number
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect %s: %w", cfg.Addr, err)
	}

	return &RedisCache{client: client, log: slog.Default()}, nil
}

// NewRedisCacheFromClient wraps an existing client. Used by tests with
// miniredis.
func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, log: slog.Default()}
}

// Get implements [Cache]. Any backend failure is logged and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache get failed", "key", key, "err", err)
		return nil, false
	}
	return val, true
}

// Set implements [Cache]. Backend failures are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "err", err)
	}
}

// DeleteByPrefix implements [Cache]. Keys are discovered with SCAN rather
// than KEYS so a large keyspace does not block the server.
func (c *RedisCache) DeleteByPrefix(ctx context.Context, prefix string) int {
	var (
		deleted int
		batch   []string
	)
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 100 {
			deleted += c.deleteKeys(ctx, batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache scan failed", "prefix", prefix, "err", err)
	}
	if len(batch) > 0 {
		deleted += c.deleteKeys(ctx, batch)
	}
	return deleted
}

func (c *RedisCache) deleteKeys(ctx context.Context, keys []string) int {
	n, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		c.log.Warn("cache delete failed", "keys", len(keys), "err", err)
		return 0
	}
	return int(n)
}

// Ping implements [Cache].
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
