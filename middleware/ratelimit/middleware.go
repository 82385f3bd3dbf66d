package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// ErrNoLimiter is returned by New when no Limiter is supplied.
var ErrNoLimiter = errors.New("ratelimit: limiter is required")

// Middleware implements rate limiting as a mono.MiddlewareModule.
// It intercepts request-reply service registrations and wraps handlers
// to enforce per-client, per-service rate limits.
type Middleware struct {
	name    string
	config  Config
	limiter Limiter
	logger  types.Logger
}

// Compile-time interface checks
var _ mono.Module = (*Middleware)(nil)
var _ mono.MiddlewareModule = (*Middleware)(nil)

// RateLimitError is returned when rate limit is exceeded.
type RateLimitError struct {
	Message   string    `json:"error"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	Limit     int       `json:"limit"`
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// New creates a new rate limiting middleware on top of limiter.
func New(limiter Limiter, logger types.Logger, opts ...Option) (*Middleware, error) {
	if limiter == nil {
		return nil, ErrNoLimiter
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &Middleware{
		name:    "rate-limit",
		config:  config,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Name returns the middleware name.
func (m *Middleware) Name() string {
	return m.name
}

// Start starts the middleware. The limiter's backing store is owned elsewhere.
func (m *Middleware) Start(_ context.Context) error {
	m.logger.Info("Rate limiting middleware started",
		"default_limit", m.config.DefaultLimit,
		"default_window", m.config.DefaultWindow.String(),
		"service_limits", len(m.config.ServiceLimits))
	return nil
}

// Stop stops the middleware.
func (m *Middleware) Stop(_ context.Context) error {
	m.logger.Info("Rate limiting middleware stopped")
	return nil
}

// OnModuleLifecycle passes through module lifecycle events unchanged.
func (m *Middleware) OnModuleLifecycle(
	_ context.Context,
	event types.ModuleLifecycleEvent,
) types.ModuleLifecycleEvent {
	return event
}

// OnServiceRegistration wraps request-reply handlers with rate limiting.
func (m *Middleware) OnServiceRegistration(
	_ context.Context,
	reg types.ServiceRegistration,
) types.ServiceRegistration {
	// Only wrap request-reply services
	if reg.Type != types.ServiceTypeRequestReply || reg.RequestHandler == nil {
		return reg
	}

	serviceName := reg.Name
	original := reg.RequestHandler

	limit, window, ok := m.getLimitForService(serviceName)
	if !ok {
		return reg
	}

	m.logger.Debug("Wrapping service with rate limiting",
		"service", serviceName,
		"limit", limit,
		"window", window.String())

	reg.RequestHandler = func(ctx context.Context, req *types.Msg) ([]byte, error) {
		clientID := m.extractClientID(req)
		key := fmt.Sprintf("%s%s:%s", m.config.KeyPrefix, serviceName, clientID)

		result, err := m.limiter.Allow(ctx, key, limit, window)
		if err != nil {
			m.logger.Error("Rate limit check failed",
				"service", serviceName,
				"client_id", clientID,
				"error", err)
			// On limiter error, allow the request (fail-open)
			return original(ctx, req)
		}

		if !result.Allowed {
			m.logger.Warn("Rate limit exceeded",
				"service", serviceName,
				"client_id", clientID,
				"limit", result.Limit,
				"reset_at", result.ResetAt)

			errResp := &RateLimitError{
				Message:   fmt.Sprintf("rate limit exceeded for service %s", serviceName),
				Remaining: result.Remaining,
				ResetAt:   result.ResetAt,
				Limit:     result.Limit,
			}

			respBytes, err := json.Marshal(errResp)
			if err != nil {
				m.logger.Error("Failed to marshal rate limit error", "error", err)
				return nil, errResp
			}
			return respBytes, errResp
		}

		return original(ctx, req)
	}

	return reg
}

// OnConfigurationChange passes through configuration changes unchanged.
func (m *Middleware) OnConfigurationChange(
	_ context.Context,
	event types.ConfigurationEvent,
) types.ConfigurationEvent {
	return event
}

// OnOutgoingMessage passes through outgoing messages unchanged.
func (m *Middleware) OnOutgoingMessage(
	octx types.OutgoingMessageContext,
) types.OutgoingMessageContext {
	return octx
}

// OnEventConsumerRegistration passes through event consumer registrations unchanged.
func (m *Middleware) OnEventConsumerRegistration(
	_ context.Context,
	entry types.EventConsumerEntry,
) types.EventConsumerEntry {
	return entry
}

// OnEventStreamConsumerRegistration passes through event stream consumer registrations unchanged.
func (m *Middleware) OnEventStreamConsumerRegistration(
	_ context.Context,
	entry types.EventStreamConsumerEntry,
) types.EventStreamConsumerEntry {
	return entry
}

// getLimitForService returns the rate limit configuration for a service.
// ok is false when the service should not be limited at all.
func (m *Middleware) getLimitForService(serviceName string) (int, time.Duration, bool) {
	if serviceLimit, ok := m.config.ServiceLimits[serviceName]; ok {
		return serviceLimit.Limit, serviceLimit.Window, serviceLimit.Limit > 0
	}
	return m.config.DefaultLimit, m.config.DefaultWindow, m.config.DefaultLimit > 0
}

// maxClientIDLength limits client ID length to prevent abuse.
const maxClientIDLength = 128

// extractClientID identifies the caller: the client ID header wins, then the
// configured body field, then the fallback.
func (m *Middleware) extractClientID(req *types.Msg) string {
	if values := req.Header[m.config.ClientIDHeader]; len(values) > 0 && values[0] != "" {
		return truncateClientID(values[0])
	}
	if m.config.ClientIDField != "" && len(req.Data) > 0 {
		var body map[string]any
		if err := json.Unmarshal(req.Data, &body); err == nil {
			if id, ok := body[m.config.ClientIDField].(string); ok && id != "" {
				return truncateClientID(id)
			}
		}
	}
	return m.config.FallbackClientID
}

func truncateClientID(id string) string {
	if len(id) > maxClientIDLength {
		return id[:maxClientIDLength]
	}
	return id
}
