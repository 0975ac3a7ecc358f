package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stockledger/internal/reconcile"
)

// MockReconciler is a mock implementation of service.Reconciler.
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Recalculate(ctx context.Context) (*reconcile.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Snapshot), args.Error(1)
}
