package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig
	DB          DBConfig
	Store       StoreConfig
	Log         LogConfig
	CORS        CORSConfig
	Sync        SyncConfig
	OrderSource OrderSourceConfig
	Redis       RedisConfig
	Events      EventsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StoreConfig selects the record store implementation.
type StoreConfig struct {
	Provider string `mapstructure:"provider"` // postgres | memory
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SyncConfig holds tuning for the order synchronization pipeline.
type SyncConfig struct {
	ChunkSize         int           `mapstructure:"chunk_size"`
	Parallelism       int           `mapstructure:"parallelism"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	CallTimeout       time.Duration `mapstructure:"call_timeout"`
	WindowDays        int           `mapstructure:"window_days"`
	Timezone          string        `mapstructure:"timezone"`
	DefaultGST        float64       `mapstructure:"default_gst"`
	FallbackCostRatio float64       `mapstructure:"fallback_cost_ratio"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// Location resolves Timezone, falling back to UTC+05:30 when the zone
// database is unavailable.
func (s *SyncConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// OrderSourceConfig holds settings for the external POS order source.
type OrderSourceConfig struct {
	Provider     string        `mapstructure:"provider"` // http | postgres
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	APIKeyHeader string        `mapstructure:"api_key_header"`
	PageSize     int           `mapstructure:"page_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds Redis settings for distributed locks and caching.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// EventsConfig holds settings for ledger event forwarding.
type EventsConfig struct {
	Provider  string `mapstructure:"provider"` // none | gcp_pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load reads configuration from environment variables with the STOCKLEDGER_
// prefix. A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("STOCKLEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "stockledger")
	v.SetDefault("db.password", "stockledger_secret")
	v.SetDefault("db.name", "stockledger_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	v.SetDefault("store.provider", "postgres")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Sync defaults
	v.SetDefault("sync.chunk_size", 20)
	v.SetDefault("sync.parallelism", 4)
	v.SetDefault("sync.max_attempts", 3)
	v.SetDefault("sync.base_delay", "500ms")
	v.SetDefault("sync.max_delay", "10s")
	v.SetDefault("sync.call_timeout", "30s")
	v.SetDefault("sync.window_days", 30)
	v.SetDefault("sync.timezone", "Asia/Kolkata")
	v.SetDefault("sync.default_gst", 18.0)
	v.SetDefault("sync.fallback_cost_ratio", 0.5)
	v.SetDefault("sync.lock_wait", "2s")

	// Order source defaults
	v.SetDefault("order_source.provider", "http")
	v.SetDefault("order_source.base_url", "http://localhost:9000")
	v.SetDefault("order_source.api_key", "")
	v.SetDefault("order_source.api_key_header", "X-API-Key")
	v.SetDefault("order_source.page_size", 100)
	v.SetDefault("order_source.timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "5m")
	v.SetDefault("redis.cache_ttl", "10m")

	// Events defaults
	v.SetDefault("events.provider", "none")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "stockledger-ledger-events")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                 "STOCKLEDGER_SERVER_PORT",
		"server.read_timeout":         "STOCKLEDGER_SERVER_READ_TIMEOUT",
		"server.write_timeout":        "STOCKLEDGER_SERVER_WRITE_TIMEOUT",
		"server.environment":          "STOCKLEDGER_SERVER_ENVIRONMENT",
		"db.host":                     "STOCKLEDGER_DB_HOST",
		"db.port":                     "STOCKLEDGER_DB_PORT",
		"db.user":                     "STOCKLEDGER_DB_USER",
		"db.password":                 "STOCKLEDGER_DB_PASSWORD",
		"db.name":                     "STOCKLEDGER_DB_NAME",
		"db.sslmode":                  "STOCKLEDGER_DB_SSLMODE",
		"db.max_open":                 "STOCKLEDGER_DB_MAX_OPEN",
		"db.max_idle":                 "STOCKLEDGER_DB_MAX_IDLE",
		"store.provider":              "STOCKLEDGER_STORE_PROVIDER",
		"log.level":                   "STOCKLEDGER_LOG_LEVEL",
		"log.format":                  "STOCKLEDGER_LOG_FORMAT",
		"cors.allowed_origins":        "STOCKLEDGER_CORS_ALLOWED_ORIGINS",
		"sync.chunk_size":             "STOCKLEDGER_SYNC_CHUNK_SIZE",
		"sync.parallelism":            "STOCKLEDGER_SYNC_PARALLELISM",
		"sync.max_attempts":           "STOCKLEDGER_SYNC_MAX_ATTEMPTS",
		"sync.base_delay":             "STOCKLEDGER_SYNC_BASE_DELAY",
		"sync.max_delay":              "STOCKLEDGER_SYNC_MAX_DELAY",
		"sync.call_timeout":           "STOCKLEDGER_SYNC_CALL_TIMEOUT",
		"sync.window_days":            "STOCKLEDGER_SYNC_WINDOW_DAYS",
		"sync.timezone":               "STOCKLEDGER_SYNC_TIMEZONE",
		"sync.default_gst":            "STOCKLEDGER_SYNC_DEFAULT_GST",
		"sync.fallback_cost_ratio":    "STOCKLEDGER_SYNC_FALLBACK_COST_RATIO",
		"sync.lock_wait":              "STOCKLEDGER_SYNC_LOCK_WAIT",
		"order_source.provider":       "STOCKLEDGER_ORDER_SOURCE_PROVIDER",
		"order_source.base_url":       "STOCKLEDGER_ORDER_SOURCE_BASE_URL",
		"order_source.api_key":        "STOCKLEDGER_ORDER_SOURCE_API_KEY",
		"order_source.api_key_header": "STOCKLEDGER_ORDER_SOURCE_API_KEY_HEADER",
		"order_source.page_size":      "STOCKLEDGER_ORDER_SOURCE_PAGE_SIZE",
		"order_source.timeout":        "STOCKLEDGER_ORDER_SOURCE_TIMEOUT",
		"redis.enabled":               "STOCKLEDGER_REDIS_ENABLED",
		"redis.addr":                  "STOCKLEDGER_REDIS_ADDR",
		"redis.password":              "STOCKLEDGER_REDIS_PASSWORD",
		"redis.db":                    "STOCKLEDGER_REDIS_DB",
		"redis.lock_ttl":              "STOCKLEDGER_REDIS_LOCK_TTL",
		"redis.cache_ttl":             "STOCKLEDGER_REDIS_CACHE_TTL",
		"events.provider":             "STOCKLEDGER_EVENTS_PROVIDER",
		"events.project_id":           "STOCKLEDGER_EVENTS_PROJECT_ID",
		"events.topic":                "STOCKLEDGER_EVENTS_TOPIC",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Platforms such as Railway set PORT. Use it unless STOCKLEDGER_SERVER_PORT is set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("STOCKLEDGER_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.Store = StoreConfig{Provider: strings.ToLower(v.GetString("store.provider"))}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Sync = SyncConfig{
		ChunkSize:         v.GetInt("sync.chunk_size"),
		Parallelism:       v.GetInt("sync.parallelism"),
		MaxAttempts:       v.GetInt("sync.max_attempts"),
		BaseDelay:         v.GetDuration("sync.base_delay"),
		MaxDelay:          v.GetDuration("sync.max_delay"),
		CallTimeout:       v.GetDuration("sync.call_timeout"),
		WindowDays:        v.GetInt("sync.window_days"),
		Timezone:          v.GetString("sync.timezone"),
		DefaultGST:        v.GetFloat64("sync.default_gst"),
		FallbackCostRatio: v.GetFloat64("sync.fallback_cost_ratio"),
		LockWait:          v.GetDuration("sync.lock_wait"),
	}
	cfg.OrderSource = OrderSourceConfig{
		Provider:     strings.ToLower(v.GetString("order_source.provider")),
		BaseURL:      strings.TrimRight(v.GetString("order_source.base_url"), "/"),
		APIKey:       v.GetString("order_source.api_key"),
		APIKeyHeader: v.GetString("order_source.api_key_header"),
		PageSize:     v.GetInt("order_source.page_size"),
		Timeout:      v.GetDuration("order_source.timeout"),
	}
	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("redis.enabled"),
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		LockTTL:  v.GetDuration("redis.lock_ttl"),
		CacheTTL: v.GetDuration("redis.cache_ttl"),
	}
	cfg.Events = EventsConfig{
		Provider:  strings.ToLower(v.GetString("events.provider")),
		ProjectID: v.GetString("events.project_id"),
		Topic:     v.GetString("events.topic"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Provider {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown store.provider %q", c.Store.Provider)
	}
	switch c.OrderSource.Provider {
	case "http", "postgres":
	default:
		return fmt.Errorf("config: unknown order_source.provider %q", c.OrderSource.Provider)
	}
	switch c.Events.Provider {
	case "none", "gcp_pubsub":
	default:
		return fmt.Errorf("config: unknown events.provider %q", c.Events.Provider)
	}
	if c.Events.Provider == "gcp_pubsub" && c.Events.ProjectID == "" {
		return errors.New("config: events.project_id is required for gcp_pubsub")
	}
	if c.Sync.ChunkSize <= 0 || c.Sync.Parallelism <= 0 {
		return errors.New("config: sync.chunk_size and sync.parallelism must be positive")
	}
	if c.Sync.FallbackCostRatio < 0 || c.Sync.DefaultGST < 0 {
		return errors.New("config: sync.fallback_cost_ratio and sync.default_gst must not be negative")
	}
	return nil
}
