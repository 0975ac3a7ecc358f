package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockConsumptionRepo is a mock implementation of port.ConsumptionRepository.
type MockConsumptionRepo struct {
	mock.Mock
}

func (m *MockConsumptionRepo) Upsert(ctx context.Context, consumptions []domain.ConsumptionEvent) (int, error) {
	args := m.Called(ctx, consumptions)
	return args.Int(0), args.Error(1)
}

func (m *MockConsumptionRepo) List(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ConsumptionEvent), args.Int(1), args.Error(2)
}

func (m *MockConsumptionRepo) ListAll(ctx context.Context) ([]domain.ConsumptionEvent, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ConsumptionEvent), args.Error(1)
}

func (m *MockConsumptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
