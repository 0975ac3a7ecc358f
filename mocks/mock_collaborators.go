package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockOrderSource is a mock implementation of port.OrderSource.
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) FetchOrders(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}

// MockLocker is a mock implementation of port.Locker. A nil release func in
// Return is replaced with a no-op.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Acquire(ctx context.Context, key string) (func(), error) {
	args := m.Called(ctx, key)
	release, _ := args.Get(0).(func())
	if release == nil && args.Error(1) == nil {
		release = func() {}
	}
	return release, args.Error(1)
}

// MockBalanceCache is a mock implementation of port.BalanceCache.
type MockBalanceCache struct {
	mock.Mock
}

func (m *MockBalanceCache) Get(ctx context.Context) ([]domain.BalanceStock, bool, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]domain.BalanceStock), args.Bool(1), args.Error(2)
}

func (m *MockBalanceCache) Set(ctx context.Context, rows []domain.BalanceStock) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockBalanceCache) Invalidate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of port.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, ev domain.LedgerEvent) {
	m.Called(ctx, ev)
}
