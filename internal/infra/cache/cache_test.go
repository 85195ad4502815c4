package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/infra/cache"
	"github.com/AnsKM/dealflow-crm/internal/port"
)

var (
	_ port.Cache[[]string] = (*cache.InMemory[[]string])(nil)
	_ port.Cache[[]string] = (*cache.Redis[[]string])(nil)
	_ port.Pinger          = (*cache.RedisPinger)(nil)
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", "value1")
	val, ok := c.Get(ctx, "key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	_, ok := c.Get(context.Background(), "nonexistent")
	if ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get(ctx, "key1")
	if ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_JanitorEvicts(t *testing.T) {
	c := cache.New[int](20 * time.Millisecond)
	defer c.Close()

	c.Set(context.Background(), "k", 1)
	time.Sleep(100 * time.Millisecond)

	if c.Len() != 0 {
		t.Errorf("expected janitor to evict expired entry, %d left", c.Len())
	}
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()
	ctx := context.Background()

	c.Set(ctx, "key1", "value1")
	c.Delete(ctx, "key1")

	_, ok := c.Get(ctx, "key1")
	if ok {
		t.Fatal("expected key to be deleted")
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := cache.New[string](time.Minute)
	c.Close()
	c.Close()
}
