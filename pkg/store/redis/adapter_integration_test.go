package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimburion/movieship/pkg/observability/logger"
	"github.com/nimburion/movieship/pkg/testutil"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestAdapter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	adapter, err := NewAdapter(Config{
		URL:              connStr,
		MaxConns:         4,
		OperationTimeout: 5 * time.Second,
		KeyPrefix:        "it:",
	}, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	defer adapter.Close()

	t.Run("HealthCheck", func(t *testing.T) {
		if err := adapter.HealthCheck(ctx); err != nil {
			t.Fatalf("health check failed: %v", err)
		}
	})

	t.Run("SetGetDelete", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "tt0111161", "https://img/poster.jpg", time.Minute); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		got, err := adapter.Get(ctx, "tt0111161")
		if err != nil || got != "https://img/poster.jpg" {
			t.Fatalf("unexpected get result %q, %v", got, err)
		}
		if err := adapter.Delete(ctx, "tt0111161"); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := adapter.Get(ctx, "tt0111161"); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("expected cache miss after delete, got %v", err)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		if err := adapter.SetWithTTL(ctx, "short", "v", 50*time.Millisecond); err != nil {
			t.Fatalf("set failed: %v", err)
		}
		time.Sleep(200 * time.Millisecond)
		if _, err := adapter.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
			t.Fatalf("expected expired key to miss, got %v", err)
		}
	})
}
