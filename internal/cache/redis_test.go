package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cass-tech/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisGuard, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisGuard(client, 2*time.Minute, time.Hour), mr
}

func TestAcquire_Exclusive(t *testing.T) {
	guard, mr := setupTestRedis(t)
	ctx := context.Background()

	token, err := guard.Acquire(ctx, "checkout-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, 2*time.Minute, mr.TTL(lockKey("checkout-1")))

	_, err = guard.Acquire(ctx, "checkout-1")
	assert.ErrorIs(t, err, ErrCompletionInProgress)

	// other checkouts are independent
	_, err = guard.Acquire(ctx, "checkout-2")
	assert.NoError(t, err)
}

func TestRelease(t *testing.T) {
	guard, mr := setupTestRedis(t)
	ctx := context.Background()

	token, err := guard.Acquire(ctx, "checkout-1")
	require.NoError(t, err)

	// a stale token leaves the lock alone
	require.NoError(t, guard.Release(ctx, "checkout-1", "not-the-token"))
	assert.True(t, mr.Exists(lockKey("checkout-1")))

	require.NoError(t, guard.Release(ctx, "checkout-1", token))
	assert.False(t, mr.Exists(lockKey("checkout-1")))

	_, err = guard.Acquire(ctx, "checkout-1")
	assert.NoError(t, err)
}

func TestAcquire_LockExpires(t *testing.T) {
	guard, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := guard.Acquire(ctx, "checkout-1")
	require.NoError(t, err)

	mr.FastForward(3 * time.Minute)

	_, err = guard.Acquire(ctx, "checkout-1")
	assert.NoError(t, err)
}

func TestCompletedOrder(t *testing.T) {
	guard, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := guard.CompletedOrder(ctx, "checkout-1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	order := &domain.Order{ID: "T3JkZXI6MQ==", Number: "1042"}
	require.NoError(t, guard.StoreCompletedOrder(ctx, "checkout-1", order))
	assert.Equal(t, time.Hour, mr.TTL(orderKey("checkout-1")))

	got, err := guard.CompletedOrder(ctx, "checkout-1")
	require.NoError(t, err)
	assert.Equal(t, order, got)

	raw, err := mr.Get(orderKey("checkout-1"))
	require.NoError(t, err)
	var stored domain.Order
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, "1042", stored.Number)
}

func TestCompletedOrder_Corrupt(t *testing.T) {
	guard, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(orderKey("checkout-1"), "{not json"))

	_, err := guard.CompletedOrder(context.Background(), "checkout-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestGuard_RedisDown(t *testing.T) {
	guard, mr := setupTestRedis(t)
	mr.Close()

	_, err := guard.Acquire(context.Background(), "checkout-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCompletionInProgress)
}
