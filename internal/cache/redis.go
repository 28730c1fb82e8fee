package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cass-tech/storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisGuard(client *redis.Client, lockTTL, orderTTL time.Duration) *RedisGuard {
	return &RedisGuard{
		client:   client,
		lockTTL:  lockTTL,
		orderTTL: orderTTL,
	}
}

type RedisGuard struct {
	client   *redis.Client
	lockTTL  time.Duration
	orderTTL time.Duration
}

func (r *RedisGuard) Acquire(ctx context.Context, checkoutID string) (string, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(checkoutID), token, r.lockTTL).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if !ok {
		return "", ErrCompletionInProgress
	}
	return token, nil
}

func (r *RedisGuard) Release(ctx context.Context, checkoutID, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKey(checkoutID)}, token).Err(); err != nil {
		return fmt.Errorf("redis release failed: %w", err)
	}
	return nil
}

func (r *RedisGuard) CompletedOrder(ctx context.Context, checkoutID string) (*domain.Order, error) {
	data, err := r.client.Get(ctx, orderKey(checkoutID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, fmt.Errorf("unmarshal order failed: %w", err)
	}
	return &order, nil
}

func (r *RedisGuard) StoreCompletedOrder(ctx context.Context, checkoutID string, order *domain.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("marshal order failed: %w", err)
	}
	if err := r.client.Set(ctx, orderKey(checkoutID), data, r.orderTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func lockKey(checkoutID string) string {
	return fmt.Sprintf("checkout:complete:%s", checkoutID)
}

func orderKey(checkoutID string) string {
	return fmt.Sprintf("checkout:order:%s", checkoutID)
}
