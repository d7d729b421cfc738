package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // BILLING_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv          string
	LogLevel        string
	BillingTimezone string
	SubscriberID    string

	// Database
	DatabaseURL    string
	DatabaseDriver string
	SQLitePath     string
	LocalMode      bool

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// Locking
	LockTTL  time.Duration
	LockWait time.Duration

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool
	OutboxMaxLag           time.Duration

	// Publisher circuit breaker
	PublisherBreakerMaxFailures uint32
	PublisherBreakerTimeout     time.Duration

	// Servers
	WorkerHealthAddr string
	APIAddr          string

	// MCP
	MCPAddr      string
	MCPAuthToken string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		BillingTimezone: getEnv("BILLING_TIMEZONE", "UTC"),
		SubscriberID:    getEnv("PORTAL_SUBSCRIBER_ID", ""),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", ""),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		LockTTL:  getDurationEnv("LOCK_TTL", 30*time.Second),
		LockWait: getDurationEnv("LOCK_WAIT", 5*time.Second),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),
		OutboxMaxLag:           getDurationEnv("OUTBOX_MAX_LAG", 5*time.Minute),

		PublisherBreakerMaxFailures: uint32(getIntEnv("PUBLISHER_BREAKER_MAX_FAILURES", 5)),
		PublisherBreakerTimeout:     getDurationEnv("PUBLISHER_BREAKER_TIMEOUT", 30*time.Second),

		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		APIAddr:          getEnv("API_ADDR", "0.0.0.0:8080"),

		MCPAddr:      getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),
	}

	// Local mode runs on SQLite with an in-process lock and event bus. It is
	// the default whenever no Postgres URL is configured.
	cfg.LocalMode = getBoolEnv("PORTAL_LOCAL_MODE", cfg.DatabaseURL == "")
	cfg.DatabaseDriver = getEnv("DATABASE_DRIVER", "")
	if cfg.DatabaseDriver == "" {
		if cfg.LocalMode {
			cfg.DatabaseDriver = DriverSQLite
		} else {
			cfg.DatabaseDriver = DriverPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot default away.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for driver %q", c.DatabaseDriver)
		}
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	if _, err := time.LoadLocation(c.BillingTimezone); err != nil {
		return fmt.Errorf("invalid BILLING_TIMEZONE %q: %w", c.BillingTimezone, err)
	}
	return nil
}

// Location returns the billing time zone. Validate has already accepted it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BillingTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsLocalMode returns true if running without shared infrastructure.
func (c *Config) IsLocalMode() bool {
	return c.LocalMode
}

// IsSQLite returns true if the SQLite driver is configured.
func (c *Config) IsSQLite() bool {
	return c.DatabaseDriver == DriverSQLite
}

// IsPostgres returns true if the Postgres driver is configured.
func (c *Config) IsPostgres() bool {
	return c.DatabaseDriver == DriverPostgres
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
