package iceservers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/meeting-relay/modules/cache"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// ICEServersModule serves the ICE server list over the service container.
type ICEServersModule struct {
	provider *Provider
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*ICEServersModule)(nil)
	_ mono.ServiceProviderModule = (*ICEServersModule)(nil)
	_ mono.HealthCheckableModule = (*ICEServersModule)(nil)
)

// NewModule creates a new ICEServersModule. The configuration is validated
// here so a bad URL fails before the application starts.
func NewModule(config Config, store cache.Store, logger types.Logger) (*ICEServersModule, error) {
	provider, err := NewProvider(config, store, logger)
	if err != nil {
		return nil, err
	}
	return &ICEServersModule{
		provider: provider,
		logger:   logger,
	}, nil
}

// Name returns the module name.
func (m *ICEServersModule) Name() string {
	return "iceservers"
}

// Start logs the advertised servers.
func (m *ICEServersModule) Start(_ context.Context) error {
	config := m.provider.Config()
	m.logger.Info("ICE servers module started",
		"stun", config.STUNURLs,
		"turn", config.TURNURLs,
		"credentialTTL", config.CredentialTTL,
		"cacheTTL", config.CacheTTL)
	return nil
}

// Stop is a no-op.
func (m *ICEServersModule) Stop(_ context.Context) error {
	m.logger.Info("ICE servers module stopped")
	return nil
}

// Health reports the module configuration.
func (m *ICEServersModule) Health(_ context.Context) mono.HealthStatus {
	config := m.provider.Config()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"stun_servers": len(config.STUNURLs),
			"turn_servers": len(config.TURNURLs),
			"turn_enabled": m.provider.TURNEnabled(),
		},
	}
}

// Provider returns the underlying provider.
func (m *ICEServersModule) Provider() *Provider {
	return m.provider
}

// RegisterServices registers the ice-servers service.
func (m *ICEServersModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceName,
		json.Unmarshal,
		json.Marshal,
		m.handleServers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceName, err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceName})
	return nil
}

func (m *ICEServersModule) handleServers(ctx context.Context, req ICEServersRequest, _ *mono.Msg) (ICEServersResponse, error) {
	resp, cached, err := m.provider.Servers(ctx)
	if err != nil {
		m.logger.Error("Failed to build ICE server list", "error", err)
		return ICEServersResponse{Error: err.Error()}, nil
	}
	m.logger.Debug("ICE servers requested", "userID", req.UserID, "cached", cached)
	return *resp, nil
}
