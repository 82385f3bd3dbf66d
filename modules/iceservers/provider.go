// Package iceservers hands clients the STUN and TURN servers they need to
// build peer connections. TURN entries carry time-limited REST credentials
// derived from a shared secret.
package iceservers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/meeting-relay/modules/cache"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/pion/stun/v3"
	"github.com/pion/turn/v4"
	"github.com/pion/webrtc/v4"
	"golang.org/x/sync/singleflight"
)

// DefaultSTUNURL is advertised when no STUN server is configured.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

const cacheKey = "ice-servers"

var (
	// ErrInvalidURL is returned for an ICE URL that does not parse or has the
	// wrong scheme for its list.
	ErrInvalidURL = errors.New("invalid ice server url")
	// ErrMissingSecret is returned when TURN URLs are configured without a
	// shared secret.
	ErrMissingSecret = errors.New("turn urls configured without a shared secret")
)

// Config holds ICE provider configuration.
type Config struct {
	STUNURLs   []string
	TURNURLs   []string
	TURNSecret string
	// CredentialTTL is the lifetime of generated TURN credentials.
	CredentialTTL time.Duration
	// CacheTTL is how long a generated list is reused. It is capped at half
	// of CredentialTTL so clients never get credentials about to expire.
	CacheTTL time.Duration
}

// DefaultConfig returns the default ICE provider configuration.
func DefaultConfig() Config {
	return Config{
		STUNURLs:      []string{DefaultSTUNURL},
		CredentialTTL: 24 * time.Hour,
		CacheTTL:      time.Hour,
	}
}

// Provider builds and caches ICE server lists.
type Provider struct {
	config  Config
	store   cache.Store
	sfGroup singleflight.Group
	logger  types.Logger
	now     func() time.Time
}

// NewProvider validates config and creates a Provider. A nil store disables
// caching.
func NewProvider(config Config, store cache.Store, logger types.Logger) (*Provider, error) {
	defaults := DefaultConfig()
	config.STUNURLs = trimURLs(config.STUNURLs)
	config.TURNURLs = trimURLs(config.TURNURLs)
	if len(config.STUNURLs) == 0 {
		config.STUNURLs = defaults.STUNURLs
	}
	if config.CredentialTTL <= 0 {
		config.CredentialTTL = defaults.CredentialTTL
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.CacheTTL > config.CredentialTTL/2 {
		config.CacheTTL = config.CredentialTTL / 2
	}

	for _, raw := range config.STUNURLs {
		if err := validateURL(raw, stun.SchemeTypeSTUN, stun.SchemeTypeSTUNS); err != nil {
			return nil, err
		}
	}
	for _, raw := range config.TURNURLs {
		if err := validateURL(raw, stun.SchemeTypeTURN, stun.SchemeTypeTURNS); err != nil {
			return nil, err
		}
	}
	if len(config.TURNURLs) > 0 && config.TURNSecret == "" {
		return nil, ErrMissingSecret
	}

	return &Provider{
		config: config,
		store:  store,
		logger: logger,
		now:    time.Now,
	}, nil
}

func trimURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

func validateURL(raw string, schemes ...stun.SchemeType) error {
	uri, err := stun.ParseURI(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	for _, scheme := range schemes {
		if uri.Scheme == scheme {
			return nil
		}
	}
	return fmt.Errorf("%w: %q has scheme %s", ErrInvalidURL, raw, uri.Scheme)
}

// TURNEnabled reports whether TURN credentials are handed out.
func (p *Provider) TURNEnabled() bool {
	return len(p.config.TURNURLs) > 0
}

// Config returns the effective configuration.
func (p *Provider) Config() Config {
	return p.config
}

// Servers returns the current ICE server list and whether it came from the
// cache (cache-aside). Concurrent misses share one generation.
func (p *Provider) Servers(ctx context.Context) (*ICEServersResponse, bool, error) {
	if p.store != nil {
		var cached ICEServersResponse
		found, err := p.store.Get(ctx, cacheKey, &cached)
		if err != nil {
			p.logger.Warn("ICE cache read failed", "error", err)
		}
		if found {
			return &cached, true, nil
		}
	}

	val, err, _ := p.sfGroup.Do(cacheKey, func() (any, error) {
		return p.generate()
	})
	if err != nil {
		return nil, false, err
	}
	resp := val.(*ICEServersResponse)

	if p.store != nil {
		if err := p.store.SetWithTTL(ctx, cacheKey, resp, p.config.CacheTTL); err != nil {
			p.logger.Warn("ICE cache write failed", "error", err)
		}
	}
	return resp, false, nil
}

func (p *Provider) generate() (*ICEServersResponse, error) {
	servers := []webrtc.ICEServer{{URLs: append([]string(nil), p.config.STUNURLs...)}}
	resp := &ICEServersResponse{}

	if p.TURNEnabled() {
		username, password, err := turn.GenerateLongTermCredentials(p.config.TURNSecret, p.config.CredentialTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to generate turn credentials: %w", err)
		}
		servers = append(servers, webrtc.ICEServer{
			URLs:           append([]string(nil), p.config.TURNURLs...),
			Username:       username,
			Credential:     password,
			CredentialType: webrtc.ICECredentialTypePassword,
		})
		expires := p.now().Add(p.config.CredentialTTL).UTC()
		resp.ExpiresAt = &expires
		resp.TTLSeconds = int(p.config.CredentialTTL / time.Second)
	}

	resp.ICEServers = servers
	return resp, nil
}
