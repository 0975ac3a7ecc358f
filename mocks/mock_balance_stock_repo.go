package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockBalanceStockRepo is a mock implementation of port.BalanceStockRepository.
type MockBalanceStockRepo struct {
	mock.Mock
}

func (m *MockBalanceStockRepo) Upsert(ctx context.Context, rows []domain.BalanceStock) error {
	args := m.Called(ctx, rows)
	return args.Error(0)
}

func (m *MockBalanceStockRepo) List(ctx context.Context) ([]domain.BalanceStock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BalanceStock), args.Error(1)
}

func (m *MockBalanceStockRepo) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	args := m.Called(ctx, keep)
	return args.Int(0), args.Error(1)
}
