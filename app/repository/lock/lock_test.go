package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSweepLock(t *testing.T) {
	ctx := context.Background()
	l := NewLocalSweepLock()

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Release(ctx))
	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisSweepLock(t *testing.T) {
	addr := os.Getenv("INVENTORY_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("INVENTORY_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		client.Del(ctx, sweepLockKey)
		client.Close()
	})
	client.Del(ctx, sweepLockKey)

	a := NewRedisSweepLock(client, "node-a", time.Minute)
	b := NewRedisSweepLock(client, "node-b", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// A foreign token never frees the lock.
	require.NoError(t, b.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Release(ctx))
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
