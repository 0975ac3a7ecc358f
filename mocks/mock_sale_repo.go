package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockSaleRepo is a mock implementation of port.SaleRepository.
type MockSaleRepo struct {
	mock.Mock
}

func (m *MockSaleRepo) Upsert(ctx context.Context, sales []domain.SaleEvent) (int, error) {
	args := m.Called(ctx, sales)
	return args.Int(0), args.Error(1)
}

func (m *MockSaleRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.SaleEvent), args.Int(1), args.Error(2)
}

func (m *MockSaleRepo) ListAll(ctx context.Context) ([]domain.SaleEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SaleEvent), args.Error(1)
}

func (m *MockSaleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
