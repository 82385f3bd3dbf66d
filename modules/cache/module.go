package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Config holds cache configuration.
type Config struct {
	// RedisAddr selects the Redis backend. Empty keeps everything in process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Prefix        string
	TTL           time.Duration
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Prefix: "meeting-relay:",
		TTL:    time.Hour,
	}
}

// Module provides caching services as a mono module.
type Module struct {
	store  Store
	client *redis.Client
	config Config
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new cache module. The Redis client is created here so
// dependent modules can take the store before Start; it connects lazily.
func NewModule(config Config, logger types.Logger) *Module {
	m := &Module{
		config: config,
		logger: logger,
	}

	if config.RedisAddr == "" {
		m.store = NewMemory(config.TTL)
		return m
	}

	m.client = redis.NewClient(&redis.Options{
		Addr:         config.RedisAddr,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		PoolSize:     50,
		MinIdleConns: 5,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	m.store = New(m.client, config.Prefix, config.TTL)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cache"
}

// Start verifies the Redis connection when one is configured.
func (m *Module) Start(ctx context.Context) error {
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.logger.Info("Connected to Redis",
			"addr", m.config.RedisAddr,
			"prefix", m.config.Prefix,
			"ttl", m.config.TTL.String())
	}
	m.logger.Info("Cache module started", "backend", m.store.Backend())
	return nil
}

// Stop stops the module and closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			m.logger.Error("Error closing Redis connection", "error", err)
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Cache module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"backend": m.store.Backend(),
		"stats":   m.store.GetStats(),
	}
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Details: details,
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// Store returns the cache store.
func (m *Module) Store() Store {
	return m.store
}

// RedisClient returns the shared Redis client, or nil when running in process.
func (m *Module) RedisClient() *redis.Client {
	return m.client
}
