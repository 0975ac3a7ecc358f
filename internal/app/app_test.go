package app_test

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/config"
	"stockledger/internal/service"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store:       config.StoreConfig{Provider: "memory"},
		OrderSource: config.OrderSourceConfig{Provider: "http", BaseURL: "http://localhost:9000"},
		Sync:        config.SyncConfig{Timezone: "UTC", MaxAttempts: 1},
		Events:      config.EventsConfig{Provider: "none"},
	}
}

func TestNew_MemoryStoreEndToEnd(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	a, err := app.New(context.Background(), memoryConfig(), logger)
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	require.NoError(t, a.Stores.Pinger.PingContext(ctx))

	rows, err := a.Ledger.ListBalanceStock(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = a.Ledger.RecordPurchase(ctx, &service.RecordPurchaseInput{
		Date:          "2026-03-01",
		ProductName:   "Shampoo",
		Quantity:      4,
		MRPInclGST:    118,
		GSTPercentage: 18,
	})
	require.NoError(t, err)

	rows, err = a.Ledger.RecalculateBalanceStock(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// the recompute replaced the empty snapshot cached above
	cached, err := a.Ledger.ListBalanceStock(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.InDelta(t, 4, cached[0].BalanceQty, 0.0001)
}

func TestNew_ProviderErrors(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"unknown store", func(c *config.Config) { c.Store.Provider = "sqlite" }},
		{"pos table without postgres", func(c *config.Config) { c.OrderSource.Provider = "postgres" }},
		{"unknown order source", func(c *config.Config) { c.OrderSource.Provider = "ftp" }},
		{"missing base url", func(c *config.Config) { c.OrderSource.BaseURL = "" }},
		{"unknown events", func(c *config.Config) { c.Events.Provider = "kafka" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			_, err := app.New(context.Background(), cfg, logger)
			assert.Error(t, err)
		})
	}
}
