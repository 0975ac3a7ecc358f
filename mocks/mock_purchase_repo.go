package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockPurchaseRepo is a mock implementation of port.PurchaseRepository.
type MockPurchaseRepo struct {
	mock.Mock
}

func (m *MockPurchaseRepo) Insert(ctx context.Context, purchases []domain.PurchaseEvent) (int, error) {
	args := m.Called(ctx, purchases)
	return args.Int(0), args.Error(1)
}

func (m *MockPurchaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PurchaseEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PurchaseEvent), args.Error(1)
}

func (m *MockPurchaseRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.PurchaseEvent), args.Int(1), args.Error(2)
}

func (m *MockPurchaseRepo) ListAll(ctx context.Context) ([]domain.PurchaseEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PurchaseEvent), args.Error(1)
}

func (m *MockPurchaseRepo) Latest(ctx context.Context, productName string) (*domain.PurchaseEvent, error) {
	args := m.Called(ctx, productName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PurchaseEvent), args.Error(1)
}

func (m *MockPurchaseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
