package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/acme/outreach-monitor/internal/config"
	"github.com/acme/outreach-monitor/internal/events"
	"github.com/acme/outreach-monitor/internal/infra/redis"
	"github.com/acme/outreach-monitor/internal/lock"
	"github.com/acme/outreach-monitor/internal/monitor"
	"github.com/acme/outreach-monitor/internal/scheduler"
	"github.com/acme/outreach-monitor/internal/session"
	"github.com/acme/outreach-monitor/internal/telemetry"
	"github.com/acme/outreach-monitor/internal/thread"
	"github.com/acme/outreach-monitor/internal/upstream"
	"github.com/acme/outreach-monitor/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger

	// Redis is nil when sessions are kept in memory.
	Redis *redis.Client
	// Kafka is nil when the event stream is disabled.
	Kafka *events.Kafka

	shutdownTelemetry telemetry.Shutdown

	// lazily initialised components
	components struct {
		once       sync.Once
		upstream   *upstream.Client
		publisher  events.Publisher
		schedulers scheduler.Factory
		lock       monitor.CommandLock
		sessions   *session.Manager
		views      *monitor.Registry
		threads    *thread.Service
	}
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg)
}

// New constructs a container from an already loaded configuration.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	lg, err := logger.New(cfg.App.Name, cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("bootstrap telemetry: %w", err)
	}

	container := &Container{
		Config:            cfg,
		Logger:            lg,
		shutdownTelemetry: shutdown,
	}

	if cfg.Session.Store == "redis" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		container.Redis = redisClient
	}

	if cfg.Kafka.Enabled {
		kafka, err := events.NewKafka(cfg.Kafka)
		if err != nil {
			return nil, fmt.Errorf("bootstrap kafka: %w", err)
		}
		container.Kafka = kafka
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		c.components.upstream = upstream.New(c.Config.Upstream, c.Logger)
		c.components.schedulers = scheduler.NewIntervalFactory()

		if c.Kafka != nil {
			c.components.publisher = events.NewKafkaPublisher(c.Kafka, c.Config.Kafka.EventsTopic)
		} else {
			c.components.publisher = events.Noop{}
		}

		var store session.Store
		if c.Redis != nil {
			store = session.NewRedisStore(c.Redis.Inner(), c.Config.Session.KeyPrefix)
			c.components.lock = lock.NewRedis(c.Redis.Inner(), "outreach:lock:", c.Config.Monitor.LockTTL)
		} else {
			store = session.NewMemoryStore()
			c.components.lock = lock.NewLocal()
		}

		c.components.views = monitor.NewRegistry(c.Config.Monitor.MaxViews, c.Logger)
		c.components.sessions = session.NewManager(
			c.components.upstream,
			store,
			c.Config.Session.TTL,
			c.components.publisher,
			c.Logger,
		)
		c.components.sessions.OnTeardown(func(id string) {
			c.components.views.UnmountSession(id)
		})
		c.components.threads = thread.NewService(c.components.publisher, c.Logger)
	})
}

// Upstream exposes the unauthenticated backend client.
func (c *Container) Upstream() *upstream.Client {
	c.initComponents()
	return c.components.upstream
}

// Publisher exposes the event publisher.
func (c *Container) Publisher() events.Publisher {
	c.initComponents()
	return c.components.publisher
}

// Schedulers exposes the timer factory used by views.
func (c *Container) Schedulers() scheduler.Factory {
	c.initComponents()
	return c.components.schedulers
}

// CommandLock exposes the campaign command lock shared by every view.
func (c *Container) CommandLock() monitor.CommandLock {
	c.initComponents()
	return c.components.lock
}

// Sessions exposes the session manager.
func (c *Container) Sessions() *session.Manager {
	c.initComponents()
	return c.components.sessions
}

// Views exposes the mounted view registry.
func (c *Container) Views() *monitor.Registry {
	c.initComponents()
	return c.components.views
}

// Threads exposes the conversation service.
func (c *Container) Threads() *thread.Service {
	c.initComponents()
	return c.components.threads
}

// EnsureTopics ensures the event topic exists. It is a no-op when kafka is disabled.
func (c *Container) EnsureTopics(ctx context.Context) error {
	if c.Kafka == nil {
		return nil
	}
	return c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.EventsTopic}, c.Config.Kafka.Partitions, 1)
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.components.views != nil {
		c.components.views.Close()
	}
	if c.components.publisher != nil {
		if err := c.components.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("event publisher close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.shutdownTelemetry != nil {
		shutdownCtx := ctx
		if timeout := c.Config.Telemetry.ShutdownTimeout; timeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := c.shutdownTelemetry(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	if c.Logger != nil {
		if len(errs) > 0 {
			c.Logger.Warn("container close", zap.Errors("errors", errs))
		}
		c.Logger.Sync()
	}
	return errors.Join(errs...)
}
