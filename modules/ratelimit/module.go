package ratelimit

import (
	"context"
	"fmt"
	"log"

	"github.com/example/taskboard/domain/ratelimit"
	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "taskboard:ratelimit:auth:"

// Module owns the Redis connection behind the auth endpoint limiter.
type Module struct {
	redisAddr  string
	config     ratelimit.Config
	client     *redis.Client
	middleware *Middleware
}

var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the limiter module. An empty redisAddr disables limiting.
func NewModule(redisAddr string, config ratelimit.Config) *Module {
	if !config.Valid() {
		config = ratelimit.DefaultAuthConfig()
	}
	return &Module{
		redisAddr:  redisAddr,
		config:     config,
		middleware: NewMiddleware(nil),
	}
}

func (m *Module) Name() string {
	return "ratelimit"
}

// Enabled reports whether a Redis address was configured.
func (m *Module) Enabled() bool {
	return m.redisAddr != ""
}

func (m *Module) Start(ctx context.Context) error {
	if !m.Enabled() {
		log.Println("[ratelimit] REDIS_ADDR not set, rate limiting disabled")
		return nil
	}

	m.client = redis.NewClient(&redis.Options{
		Addr: m.redisAddr,
	})
	if err := m.client.Ping(ctx).Err(); err != nil {
		m.client.Close()
		m.client = nil
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.middleware.setLimiter(NewSlidingWindowLimiter(m.client, m.config, keyPrefix))
	log.Printf("[ratelimit] Connected to Redis at %s (%d requests per %s)",
		m.redisAddr, m.config.RequestsPerWindow, m.config.WindowSize)
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.middleware.setLimiter(nil)
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[ratelimit] Error closing Redis connection: %v", err)
		}
		m.client = nil
	}
	log.Println("[ratelimit] Module stopped")
	return nil
}

// Middleware returns the limiter middleware. It passes requests through until
// the module has started against Redis.
func (m *Module) Middleware() *Middleware {
	return m.middleware
}

// Ping checks the Redis connection. It is a no-op when limiting is disabled.
func (m *Module) Ping(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	if m.client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return m.client.Ping(ctx).Err()
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if !m.Enabled() {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.Ping(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"addr":                m.redisAddr,
			"requests_per_window": m.config.RequestsPerWindow,
			"window":              m.config.WindowSize.String(),
		},
	}
}
