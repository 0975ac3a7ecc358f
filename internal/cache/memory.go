package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"

	"stockledger/internal/domain"
	"stockledger/internal/port"
)

// Memory is a process-local BalanceCache, used when Redis is disabled.
type Memory struct {
	mu    sync.RWMutex
	rows  []domain.BalanceStock
	valid bool
}

// NewMemory creates an empty Memory cache.
func NewMemory() *Memory {
	return &Memory{}
}

var _ port.BalanceCache = (*Memory)(nil)

func (m *Memory) Get(context.Context) ([]domain.BalanceStock, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.valid {
		return nil, false, nil
	}
	return slices.Clone(m.rows), true, nil
}

func (m *Memory) Set(_ context.Context, rows []domain.BalanceStock) error {
	m.mu.Lock()
	m.rows = slices.Clone(rows)
	m.valid = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	m.rows = nil
	m.valid = false
	m.mu.Unlock()
	return nil
}

// InvalidateOn returns an event handler that drops the cached snapshot
// whenever the ledger changes.
func InvalidateOn(c port.BalanceCache, logger logrus.FieldLogger) func(ctx context.Context, ev domain.LedgerEvent) {
	return func(ctx context.Context, ev domain.LedgerEvent) {
		if err := c.Invalidate(ctx); err != nil {
			logger.WithError(err).WithField("event", ev.Type).Warn("balance cache invalidation failed")
		}
	}
}
