package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockledger/internal/domain"
)

// MockSyncRunRepo is a mock implementation of port.SyncRunRepository.
type MockSyncRunRepo struct {
	mock.Mock
}

func (m *MockSyncRunRepo) Create(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepo) Finish(ctx context.Context, run *domain.SyncRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockSyncRunRepo) ListRecent(ctx context.Context, classification domain.Classification, limit int) ([]domain.SyncRun, error) {
	args := m.Called(ctx, classification, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SyncRun), args.Error(1)
}
