package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockSyncService is a mock implementation of service.SyncService.
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) Sync(ctx context.Context, classification domain.Classification, window domain.DateWindow) (*domain.SyncResult, error) {
	args := m.Called(ctx, classification, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncResult), args.Error(1)
}

func (m *MockSyncService) ListRuns(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error) {
	args := m.Called(ctx, classification, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncRun), args.Error(1)
}
