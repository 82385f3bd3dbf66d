package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/meeting-relay/middleware/ratelimit"
	"github.com/example/meeting-relay/modules/auth"
	"github.com/example/meeting-relay/modules/iceservers"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config holds HTTP and WebSocket settings.
type Config struct {
	Port         string
	AllowOrigins string
	// MessageLimit inbound WebSocket messages are accepted per
	// MessageWindow on each connection. Zero disables the check.
	MessageLimit  int
	MessageWindow time.Duration
	// RESTLimit requests per RESTWindow are accepted per client IP on
	// /api/v1. Zero disables the check.
	RESTLimit    int
	RESTWindow   time.Duration
	AdmitTimeout time.Duration
	// MaxMessageSize caps one inbound WebSocket frame in bytes. Larger
	// frames close the connection.
	MaxMessageSize int64
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		Port:          "3000",
		AllowOrigins:  "*",
		MessageLimit:  200,
		MessageWindow: time.Second,
		RESTLimit:     120,
		RESTWindow:    time.Minute,
		AdmitTimeout:  5 * time.Second,
		// Matches the socket.io default buffer size.
		MaxMessageSize: 1 << 20,
	}
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app      *fiber.App
	config   Config
	auth     auth.AuthPort
	meetings meetings.MeetingsPort
	ice      iceservers.ICEPort
	hub      *relay.Hub
	limiter  ratelimit.Limiter
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*APIModule)(nil)
	_ mono.DependentModule       = (*APIModule)(nil)
	_ mono.HealthCheckableModule = (*APIModule)(nil)
)

// NewModule creates a new APIModule.
func NewModule(config Config, logger types.Logger) *APIModule {
	defaults := DefaultConfig()
	if config.Port == "" {
		config.Port = defaults.Port
	}
	if config.AllowOrigins == "" {
		config.AllowOrigins = defaults.AllowOrigins
	}
	if config.MessageWindow <= 0 {
		config.MessageWindow = defaults.MessageWindow
	}
	if config.RESTWindow <= 0 {
		config.RESTWindow = defaults.RESTWindow
	}
	if config.AdmitTimeout <= 0 {
		config.AdmitTimeout = defaults.AdmitTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	return &APIModule{
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"auth", "meetings", "iceservers"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "auth":
		m.auth = auth.NewAuthAdapter(container)
	case "meetings":
		m.meetings = meetings.NewMeetingsAdapter(container)
	case "iceservers":
		m.ice = iceservers.NewICEAdapter(container)
	}
}

// SetHub sets the relay hub (called from main.go).
func (m *APIModule) SetHub(hub *relay.Hub) {
	m.hub = hub
}

// SetLimiter sets the per-connection message limiter (called from main.go).
func (m *APIModule) SetLimiter(l ratelimit.Limiter) {
	m.limiter = l
}

// Start initializes and starts the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.auth == nil {
		return errors.New("auth dependency not set")
	}
	if m.meetings == nil {
		return errors.New("meetings dependency not set")
	}
	if m.ice == nil {
		return errors.New("iceservers dependency not set")
	}
	if m.hub == nil {
		return errors.New("relay hub dependency not set")
	}

	m.app = m.newApp()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.config.Port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started",
		"port", m.config.Port,
		"messageLimit", m.config.MessageLimit,
		"messageWindow", m.config.MessageWindow)
	return nil
}

// Stop gracefully shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	if err := m.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.config.Port,
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
		details["rooms"] = m.hub.RoomCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// newApp builds the Fiber app with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          m.customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		// Upgraded connections would be logged only when they close.
		Next: func(c *fiber.Ctx) bool {
			return c.Get("Upgrade") == "websocket"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.config.AllowOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.setupRoutes(app)
	return app
}

// customErrorHandler handles Fiber errors.
func (m *APIModule) customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// restLimiter throttles REST calls per client IP.
func (m *APIModule) restLimiter() fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        m.config.RESTLimit,
		Expiration: m.config.RESTWindow,
		Next: func(_ *fiber.Ctx) bool {
			return m.config.RESTLimit <= 0
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many requests",
			})
		},
	})
}
