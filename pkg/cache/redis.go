package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/env"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Enabled     bool
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
	// Tracing instruments the client with OpenTelemetry spans.
	Tracing bool
}

// RedisConfigFromEnv reads REDIS_ADDR and REDIS_PASSWORD. The cache is enabled when REDIS_ADDR is set.
func RedisConfigFromEnv() RedisConfig {
	addr := env.String("REDIS_ADDR", "")
	return RedisConfig{
		Enabled:  addr != "",
		Addr:     addr,
		Password: env.String("REDIS_PASSWORD", ""),
		Tracing:  env.IsRemote(),
	}
}

func (c *RedisConfig) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = 10
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
}

func (c *RedisConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return errors.New("redis: missing Addr")
	}
	return nil
}

type redisCache struct {
	client *redis.Client
}

type RedisOption func(*redis.Options)

func WithPoolSize(size int) RedisOption {
	return func(o *redis.Options) {
		o.PoolSize = size
	}
}

func WithReadTimeout(timeout time.Duration) RedisOption {
	return func(o *redis.Options) {
		o.ReadTimeout = timeout
	}
}

func WithWriteTimeout(timeout time.Duration) RedisOption {
	return func(o *redis.Options) {
		o.WriteTimeout = timeout
	}
}

func NewRedisCacheFromConfig(cfg RedisConfig, opts ...RedisOption) (Cache, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, errors.New("redis: Redis cache is not enabled")
	}

	options := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}

	client := redis.NewClient(options)
	if cfg.Tracing {
		if err := redisotel.InstrumentTracing(client); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis: instrument tracing: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}

	return &redisCache{client: client}, nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	if ctx == nil {
		return "", ErrInvalidContext
	}
	if key == "" {
		return "", ErrInvalidKey
	}

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	result := r.client.Del(ctx, key)
	if err := result.Err(); err != nil {
		return err
	}
	if result.Val() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (r *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}

// TTL maps redis' -2 (missing key) to ErrKeyNotFound and -1 (no expiry) to zero.
func (r *redisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	switch {
	case ttl == -2 || ttl == -2*time.Second:
		return 0, ErrKeyNotFound
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
