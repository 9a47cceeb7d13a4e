//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedisContainer(t *testing.T) (Cache, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	c, err := NewRedisCacheFromConfig(RedisConfig{Enabled: true, Addr: endpoint, Tracing: true})
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}

	cleanup := func() {
		c.Close()
		container.Terminate(ctx)
	}
	return c, cleanup
}

func TestRedisIntegration_SetGetDelete(t *testing.T) {
	c, cleanup := setupRedisContainer(t)
	defer cleanup()
	ctx := context.Background()

	if err := c.Set(ctx, "key1", "value1", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := c.Get(ctx, "key1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "value1" {
		t.Fatalf("expected value1, got %s", val)
	}

	exists, err := c.Exists(ctx, "key1")
	if err != nil || !exists {
		t.Fatalf("expected key to exist, err=%v", err)
	}

	if err := c.Delete(ctx, "key1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := c.Get(ctx, "key1"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestRedisIntegration_TTLSemantics(t *testing.T) {
	c, cleanup := setupRedisContainer(t)
	defer cleanup()
	ctx := context.Background()

	t.Run("nonexistent key returns ErrKeyNotFound", func(t *testing.T) {
		if _, err := c.TTL(ctx, "missing"); err != ErrKeyNotFound {
			t.Errorf("expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("key without expiry returns 0 nil", func(t *testing.T) {
		_ = c.Set(ctx, "persistent", "v", 0)
		ttl, err := c.TTL(ctx, "persistent")
		if err != nil || ttl != 0 {
			t.Errorf("expected 0,nil got %v,%v", ttl, err)
		}
	})

	t.Run("key with TTL returns positive duration", func(t *testing.T) {
		_ = c.Set(ctx, "ttl-key", "v", time.Minute)
		ttl, err := c.TTL(ctx, "ttl-key")
		if err != nil || ttl <= 0 || ttl > time.Minute {
			t.Errorf("expected positive ttl, got %v,%v", ttl, err)
		}
	})
}
