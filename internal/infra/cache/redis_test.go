package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/infra/cache"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedis_SetAndGet(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	c := cache.NewRedis[[]string](rdb, "next_actions:", time.Hour, zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, "deal-1", []string{"Call the CFO", "Send pricing"})

	got, ok := c.Get(ctx, "deal-1")
	require.True(t, ok)
	assert.Equal(t, []string{"Call the CFO", "Send pricing"}, got)

	assert.True(t, mr.Exists("next_actions:deal-1"))
	assert.Equal(t, time.Hour, mr.TTL("next_actions:deal-1"))
}

func TestRedis_MissAndExpiry(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	c := cache.NewRedis[string](rdb, "p:", time.Minute, zap.NewNop())
	ctx := context.Background()

	_, ok := c.Get(ctx, "absent")
	assert.False(t, ok)

	c.Set(ctx, "k", "v")
	mr.FastForward(2 * time.Minute)

	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_Delete(t *testing.T) {
	_, rdb := setupTestRedis(t)
	c := cache.NewRedis[string](rdb, "p:", time.Minute, zap.NewNop())
	ctx := context.Background()

	c.Set(ctx, "k", "v")
	c.Delete(ctx, "k")

	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedis_CorruptEntryIsMiss(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	c := cache.NewRedis[[]string](rdb, "p:", time.Minute, zap.NewNop())

	require.NoError(t, mr.Set("p:bad", "{not json"))

	_, ok := c.Get(context.Background(), "bad")
	assert.False(t, ok)
}

func TestRedis_OutageIsMiss(t *testing.T) {
	mr, rdb := setupTestRedis(t)
	c := cache.NewRedis[string](rdb, "p:", time.Minute, zap.NewNop())
	mr.Close()

	ctx := context.Background()
	c.Set(ctx, "k", "v")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	rdb, err := cache.NewRedisClient(ctx, "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer rdb.Close()

	p := cache.NewRedisPinger(rdb)
	assert.Equal(t, "redis", p.Name())
	assert.NoError(t, p.Ping(ctx))

	_, err = cache.NewRedisClient(ctx, "http://not-redis")
	assert.Error(t, err)
}
