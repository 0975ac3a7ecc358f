package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Provider)
	assert.Equal(t, 20, cfg.Sync.ChunkSize)
	assert.Equal(t, 4, cfg.Sync.Parallelism)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Sync.MaxDelay)
	assert.Equal(t, 30*time.Second, cfg.Sync.CallTimeout)
	assert.Equal(t, 30, cfg.Sync.WindowDays)
	assert.Equal(t, 18.0, cfg.Sync.DefaultGST)
	assert.Equal(t, 0.5, cfg.Sync.FallbackCostRatio)
	assert.Equal(t, "http", cfg.OrderSource.Provider)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "none", cfg.Events.Provider)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORE_PROVIDER", "memory")
	t.Setenv("STOCKLEDGER_SYNC_CHUNK_SIZE", "50")
	t.Setenv("STOCKLEDGER_SYNC_MAX_DELAY", "3s")
	t.Setenv("STOCKLEDGER_REDIS_ENABLED", "true")
	t.Setenv("STOCKLEDGER_ORDER_SOURCE_BASE_URL", "https://pos.example.com/")
	t.Setenv("STOCKLEDGER_CORS_ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Store.Provider)
	assert.Equal(t, 50, cfg.Sync.ChunkSize)
	assert.Equal(t, 3*time.Second, cfg.Sync.MaxDelay)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "https://pos.example.com", cfg.OrderSource.BaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "9191")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.Server.Port)

	t.Setenv("STOCKLEDGER_SERVER_PORT", ":7000")
	cfg, err = config.Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Port)
}

func TestLoad_RejectsUnknownProviders(t *testing.T) {
	t.Setenv("STOCKLEDGER_STORE_PROVIDER", "sqlite")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_PubSubNeedsProject(t *testing.T) {
	t.Setenv("STOCKLEDGER_EVENTS_PROVIDER", "gcp_pubsub")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("STOCKLEDGER_EVENTS_PROJECT_ID", "salon-prod")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "salon-prod", cfg.Events.ProjectID)
}

func TestDBConfig_DSN(t *testing.T) {
	db := config.DBConfig{Host: "db", Port: 5433, User: "u", Password: "p", Name: "ledger", SSLMode: "require"}
	assert.Equal(t, "postgres://u:p@db:5433/ledger?sslmode=require", db.DSN())
}

func TestSyncConfig_Location(t *testing.T) {
	s := config.SyncConfig{Timezone: "Not/AZone"}
	loc := s.Location()
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 19800, offset)
}
