package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stylelens/backend/internal/domain"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	t.Run("stores and retrieves a typed value", func(t *testing.T) {
		feat := &domain.ImageFeatures{DHash: 0xDEADBEEF, Width: 800, Height: 1200}
		if err := cache.Set(ctx, "features:a", feat, time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}

		got, err := cache.Get(ctx, "features:a")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		back, ok := got.(*domain.ImageFeatures)
		if !ok {
			t.Fatalf("Get() returned %T, want *domain.ImageFeatures", got)
		}
		if back.DHash != 0xDEADBEEF || back.Width != 800 {
			t.Errorf("Get() = %+v, want original features back", back)
		}
	})

	t.Run("misses on unknown key", func(t *testing.T) {
		_, err := cache.Get(ctx, "features:missing")
		if !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("error = %v, want ErrCacheMiss", err)
		}
	})

	t.Run("expires after TTL", func(t *testing.T) {
		if err := cache.Set(ctx, "features:short", "v", time.Millisecond); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		_, err := cache.Get(ctx, "features:short")
		if !errors.Is(err, domain.ErrCacheMiss) {
			t.Errorf("error = %v, want ErrCacheMiss after expiry", err)
		}
	})
}

func TestMemoryCache_DeleteAndExists(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", 1, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	exists, err := cache.Exists(ctx, "k")
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true, nil", exists, err)
	}

	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	exists, err = cache.Exists(ctx, "k")
	if err != nil || exists {
		t.Errorf("Exists() after delete = %v, %v, want false, nil", exists, err)
	}
}

func TestMemoryCache_SizeAndClear(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := cache.Set(ctx, key, key, time.Minute); err != nil {
			t.Fatalf("Set(%q) error = %v", key, err)
		}
	}

	if cache.Size() != 3 {
		t.Errorf("Size() = %d, want 3", cache.Size())
	}

	cache.Clear()
	if cache.Size() != 0 {
		t.Errorf("Size() after Clear = %d, want 0", cache.Size())
	}
}
