package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by this service.
const DefaultRedisPrefix = "roadwatch:"

// RedisCache is a Redis-backed cache implementation
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisConfig holds configuration for the Redis cache
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedis creates a new Redis cache with the specified configuration
func NewRedis(cfg RedisConfig, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return newRedisWithClient(client, cfg.Prefix, ttl), nil
}

func newRedisWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + k
}

func (c *RedisCache) Get(key string) ([]byte, bool) {
	data, err := c.client.Get(context.Background(), c.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(key string, value []byte) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *RedisCache) SetWithTTL(key string, value []byte, ttl time.Duration) {
	c.client.Set(context.Background(), c.key(key), value, ttl)
}

func (c *RedisCache) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.key(k)
	}
	c.client.Del(context.Background(), prefixed...)
}

func (c *RedisCache) Clear() {
	ctx := context.Background()

	// Use SCAN to find all keys with our prefix and delete them
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ensure RedisCache implements Cache interface
var _ Cache = (*RedisCache)(nil)
