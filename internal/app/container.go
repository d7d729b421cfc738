package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	sharedApplication "github.com/felixgeelhaar/portal/internal/shared/application"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/portal/internal/shared/infrastructure/database/postgres" // Register Postgres driver
	_ "github.com/felixgeelhaar/portal/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/locking"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/portal/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/commands"
	"github.com/felixgeelhaar/portal/internal/subscriptions/application/subscribers"
	"github.com/felixgeelhaar/portal/internal/subscriptions/domain"
	"github.com/felixgeelhaar/portal/pkg/config"
	"github.com/felixgeelhaar/portal/pkg/observability"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis
	RedisClient *redis.Client

	// Repositories
	ContractRepo   domain.ContractRepository
	SubscriberRepo domain.SubscriberRepository
	OutboxRepo     outbox.Repository

	// Unit of Work and locking
	UnitOfWork sharedApplication.UnitOfWork
	Locker     sharedApplication.Locker

	// Subscription lifecycle
	Catalog   *domain.Catalog
	Clock     domain.Clock
	Lifecycle *application.Lifecycle

	// Events
	EventPublisher      eventbus.Publisher
	InProcessEventBus   *eventbus.InProcessEventBus
	TelemetrySubscriber *subscribers.TelemetrySubscriber
	OutboxProcessor     *outbox.Processor
}

// New creates the container for the configured mode.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg.IsLocalMode() || cfg.IsSQLite() {
		return NewLocalContainer(ctx, cfg, logger)
	}
	return NewContainer(ctx, cfg, logger)
}

// NewContainer creates and wires all dependencies against Postgres, Redis
// and RabbitMQ. Redis and RabbitMQ are optional in development.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newContainer(cfg, logger)

	conn, err := database.NewConnection(ctx, database.Config{
		Driver: database.DriverPostgres,
		URL:    cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = database.DriverPostgres
	logger.Info("connected to database")

	if err := c.migrate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	// Connect to Redis (optional in development)
	c.Locker = locking.NewMemoryLocker(cfg.LockWait)
	lockBackend := "memory"
	if cfg.RedisURL != "" {
		client, err := connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			if !cfg.IsDevelopment() {
				_ = c.Close()
				return nil, err
			}
			logger.Warn("Redis not available, using in-process locks", "error", err)
		} else {
			c.RedisClient = client
			c.Locker = locking.NewRedisLocker(client, locking.RedisConfig{
				TTL:  cfg.LockTTL,
				Wait: cfg.LockWait,
			}, logger)
			lockBackend = "redis"
			c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			}))
			logger.Info("connected to Redis")
		}
	} else if !cfg.IsDevelopment() {
		logger.Warn("REDIS_URL not set, subscriber locks only cover this process")
	}
	c.Locker = locking.NewMeteredLocker(c.Locker, c.Metrics, lockBackend)

	// Create event publisher
	if cfg.RabbitMQURL == "" {
		if !cfg.IsDevelopment() {
			_ = c.Close()
			return nil, errors.New("RABBITMQ_URL is required outside development")
		}
		logger.Warn("RABBITMQ_URL not set, using noop publisher")
		c.EventPublisher = eventbus.NewNoopPublisher(logger)
	} else {
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			if !cfg.IsDevelopment() {
				_ = c.Close()
				return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(logger)
		} else {
			c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Ping))
			c.EventPublisher = c.withBreaker(publisher)
		}
	}

	if err := c.wire(); err != nil {
		_ = c.Close()
		return nil, err
	}

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"lock_backend", lockBackend,
	)
	return c, nil
}

// NewLocalContainer creates a container for local mode: SQLite, in-process
// locks and an in-process event bus that feeds the telemetry subscriber.
func NewLocalContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	c := newContainer(cfg, logger)

	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite connection: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = database.DriverSQLite

	if err := c.migrate(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Locker = locking.NewMeteredLocker(locking.NewMemoryLocker(cfg.LockWait), c.Metrics, "memory")

	c.InProcessEventBus = eventbus.NewInProcessEventBus(logger)
	c.InProcessEventBus.RegisterConsumer(c.TelemetrySubscriber)
	c.EventPublisher = c.InProcessEventBus

	if err := c.wire(); err != nil {
		_ = c.Close()
		return nil, err
	}

	logger.Info("local mode container initialized",
		"database", cfg.SQLitePath,
		"driver", "sqlite",
	)
	return c, nil
}

func newContainer(cfg *config.Config, logger *slog.Logger) *Container {
	if logger == nil {
		logger = slog.Default()
	}
	metrics := observability.NewPrometheusMetrics()
	return &Container{
		Config:              cfg,
		Logger:              logger,
		Metrics:             metrics,
		Health:              observability.NewHealthRegistry(),
		Catalog:             domain.DefaultCatalog(),
		Clock:               domain.SystemClock{Location: cfg.Location()},
		TelemetrySubscriber: subscribers.NewTelemetrySubscriber(metrics, logger),
	}
}

func (c *Container) migrate(ctx context.Context) error {
	c.Logger.Info("running migrations", "driver", c.DBDriver)
	if err := migrations.Run(ctx, c.DBConn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	c.Health.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))
	return nil
}

// wire builds repositories, the lifecycle and the outbox processor once the
// connection, locker and publisher are in place.
func (c *Container) wire() error {
	repos, err := NewRepositories(c.DBConn)
	if err != nil {
		return err
	}
	c.ContractRepo = repos.Contracts
	c.SubscriberRepo = repos.Subscribers
	c.OutboxRepo = repos.Outbox
	c.UnitOfWork = repos.UnitOfWork

	c.Lifecycle = application.NewLifecycle(commands.Deps{
		Contracts:   c.ContractRepo,
		Subscribers: c.SubscriberRepo,
		Outbox:      c.OutboxRepo,
		UnitOfWork:  c.UnitOfWork,
		Locker:      c.Locker,
		Catalog:     c.Catalog,
		Clock:       c.Clock,
	}, c.Logger, c.Metrics)

	processorConfig := outbox.DefaultProcessorConfig()
	processorConfig.PollInterval = c.Config.OutboxPollInterval
	processorConfig.BatchSize = c.Config.OutboxBatchSize
	processorConfig.MaxRetries = c.Config.OutboxMaxRetries
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorConfig, c.Logger).
		WithMetrics(c.Metrics)
	if c.Config.OutboxMaxLag > 0 {
		processor := c.OutboxProcessor
		c.Health.Register("outbox", observability.OutboxLagChecker(c.Config.OutboxMaxLag, func() time.Duration {
			return time.Duration(processor.GetStats().LagSeconds * float64(time.Second))
		}))
	}
	return nil
}

func (c *Container) withBreaker(next eventbus.Publisher) eventbus.Publisher {
	breakerConfig := eventbus.DefaultBreakerConfig()
	if c.Config.PublisherBreakerMaxFailures > 0 {
		breakerConfig.FailureThreshold = c.Config.PublisherBreakerMaxFailures
	}
	if c.Config.PublisherBreakerTimeout > 0 {
		breakerConfig.Timeout = c.Config.PublisherBreakerTimeout
	}
	return eventbus.NewBreakerPublisher(next, breakerConfig, c.Logger, c.Metrics)
}

func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// IsLocalMode reports whether the container runs on SQLite.
func (c *Container) IsLocalMode() bool {
	return c.DBDriver == database.DriverSQLite
}

// Close releases all resources.
func (c *Container) Close() error {
	var errs []error
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
