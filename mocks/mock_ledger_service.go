package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
	"stockledger/internal/service"
)

// MockLedgerService is a mock implementation of service.LedgerService.
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) RecordPurchase(ctx context.Context, input *service.RecordPurchaseInput) (*domain.PurchaseEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PurchaseEvent), args.Error(1)
}

func (m *MockLedgerService) ImportPurchases(ctx context.Context, inputs []service.RecordPurchaseInput, source domain.EventSource) (int, error) {
	args := m.Called(ctx, inputs, source)
	return args.Int(0), args.Error(1)
}

func (m *MockLedgerService) ListPurchases(ctx context.Context, filter domain.LedgerFilter) ([]domain.PurchaseEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.PurchaseEvent), args.Int(1), args.Error(2)
}

func (m *MockLedgerService) ListSales(ctx context.Context, filter domain.LedgerFilter) ([]domain.SaleEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.SaleEvent), args.Int(1), args.Error(2)
}

func (m *MockLedgerService) ListConsumptions(ctx context.Context, filter domain.LedgerFilter) ([]domain.ConsumptionEvent, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ConsumptionEvent), args.Int(1), args.Error(2)
}

func (m *MockLedgerService) Delete(ctx context.Context, kind domain.EventKind, id uuid.UUID) error {
	args := m.Called(ctx, kind, id)
	return args.Error(0)
}

func (m *MockLedgerService) RecalculateBalanceStock(ctx context.Context) ([]domain.BalanceStock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BalanceStock), args.Error(1)
}

func (m *MockLedgerService) ListBalanceStock(ctx context.Context) ([]domain.BalanceStock, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BalanceStock), args.Error(1)
}
