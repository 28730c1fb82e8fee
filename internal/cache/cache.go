package cache

import (
	"context"
	"errors"

	"github.com/cass-tech/storefront/internal/domain"
)

// CompletionGuard keeps checkoutComplete from running twice for one checkout,
// across page reloads and across service replicas.
type CompletionGuard interface {
	Acquire(ctx context.Context, checkoutID string) (token string, err error)
	Release(ctx context.Context, checkoutID, token string) error
	CompletedOrder(ctx context.Context, checkoutID string) (*domain.Order, error)
	StoreCompletedOrder(ctx context.Context, checkoutID string, order *domain.Order) error
}

var (
	ErrCacheMiss            = errors.New("cache miss")
	ErrCompletionInProgress = errors.New("checkout completion already in progress")
)
