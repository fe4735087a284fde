package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"cryptoJournal/internal/ports"
)

// RedisCache stores entries in Redis as a small JSON envelope so the
// storage time survives alongside the value.
type RedisCache struct {
	rdb    *goredis.Client
	prefix string
	logger ports.Logger
	now    func() time.Time
}

var _ ports.Cache = (*RedisCache)(nil)

// RedisConfig holds the connection settings for RedisCache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // Prepended to every key, e.g. "journal:"
	Logger   ports.Logger
}

type redisEnvelope struct {
	Value    []byte    `json:"v"`
	StoredAt time.Time `json:"t"`
}

// NewRedisCache connects to Redis and verifies the connection with PING.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Redis cache: %w", ports.ErrConfigurationError)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is empty: %w", ports.ErrConfigurationError)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s failed: %w: %w", cfg.Addr, ports.ErrConnectionFailed, err)
	}
	cfg.Logger.Info(ctx, "Redis cache connected", map[string]interface{}{"addr": cfg.Addr, "db": cfg.DB})

	return NewRedisCacheFromClient(rdb, cfg.Prefix, cfg.Logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(rdb *goredis.Client, prefix string, logger ports.Logger) *RedisCache {
	if logger == nil {
		logger = ports.NopLogger{}
	}
	return &RedisCache{rdb: rdb, prefix: prefix, logger: logger, now: time.Now}
}

// Get returns the entry for key or ports.ErrCacheMiss.
func (c *RedisCache) Get(ctx context.Context, key string) (ports.CacheEntry, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ports.CacheEntry{}, ports.ErrCacheMiss
		}
		return ports.CacheEntry{}, fmt.Errorf("redis get %s: %w: %w", key, ports.ErrConnectionFailed, err)
	}

	var env redisEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logger.Warn(ctx, "Discarding undecodable cache entry", map[string]interface{}{"key": key})
		return ports.CacheEntry{}, ports.ErrCacheMiss
	}
	return ports.CacheEntry{Value: env.Value, StoredAt: env.StoredAt}, nil
}

// Set stores value under key with the given ttl (non-positive means no expiry).
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(redisEnvelope{Value: value, StoredAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.rdb.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w: %w", key, ports.ErrConnectionFailed, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
