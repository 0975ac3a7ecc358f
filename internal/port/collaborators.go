package port

import (
	"context"

	"stockledger/internal/domain"
)

// OrderSource fetches point-of-sale orders for a date window.
type OrderSource interface {
	FetchOrders(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error)
}

// Locker provides named mutual exclusion. Acquire fails with
// domain.ErrLockNotObtained when the key is held elsewhere and ctx expires
// before it is released.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// BalanceCache holds the last balance snapshot read from the store.
type BalanceCache interface {
	Get(ctx context.Context) ([]domain.BalanceStock, bool, error)
	Set(ctx context.Context, rows []domain.BalanceStock) error
	Invalidate(ctx context.Context) error
}

// EventPublisher emits ledger change notifications. Publishing never fails
// the write that triggered it.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.LedgerEvent)
}
