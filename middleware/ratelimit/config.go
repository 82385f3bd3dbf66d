package ratelimit

import (
	"time"
)

// Config holds rate limiter configuration.
type Config struct {
	// DefaultLimit applies to services without a specific limit. Zero leaves
	// those services unwrapped.
	DefaultLimit int

	// DefaultWindow is the default time window for rate limiting
	DefaultWindow time.Duration

	// ServiceLimits maps service names to their specific rate limits
	ServiceLimits map[string]ServiceLimit

	// KeyPrefix namespaces service keys inside the shared Limiter (default: "service:")
	KeyPrefix string

	// ClientIDHeader is the header name to extract client ID from (default: "X-Client-ID")
	ClientIDHeader string

	// ClientIDField names a top-level JSON field of the request body used as
	// the client ID when the header is absent (e.g. "hostId").
	ClientIDField string

	// FallbackClientID is used when no client ID is found in request
	FallbackClientID string
}

// ServiceLimit defines rate limits for a specific service.
type ServiceLimit struct {
	// Limit is the maximum number of requests allowed in the window
	Limit int

	// Window is the time window for the rate limit
	Window time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:     0,
		DefaultWindow:    time.Minute,
		ServiceLimits:    make(map[string]ServiceLimit),
		KeyPrefix:        "service:",
		ClientIDHeader:   "X-Client-ID",
		FallbackClientID: "anonymous",
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithDefaultLimit sets the default rate limit.
func WithDefaultLimit(limit int, window time.Duration) Option {
	return func(c *Config) {
		c.DefaultLimit = limit
		c.DefaultWindow = window
	}
}

// WithServiceLimit sets a specific rate limit for a service.
func WithServiceLimit(serviceName string, limit int, window time.Duration) Option {
	return func(c *Config) {
		c.ServiceLimits[serviceName] = ServiceLimit{
			Limit:  limit,
			Window: window,
		}
	}
}

// WithKeyPrefix sets the limiter key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithClientIDField keys limits by a JSON field of the request body.
func WithClientIDField(field string) Option {
	return func(c *Config) {
		c.ClientIDField = field
	}
}

// WithClientIDHeader sets the header name for client ID extraction.
func WithClientIDHeader(header string) Option {
	return func(c *Config) {
		c.ClientIDHeader = header
	}
}
