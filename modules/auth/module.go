package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

const (
	errExpiredMessage = "token expired"
	errInvalidMessage = "invalid token"
)

// AuthModule verifies the bearer tokens presented by meeting clients.
type AuthModule struct {
	manager *JWTManager
	issuer  string
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*AuthModule)(nil)
var _ mono.ServiceProviderModule = (*AuthModule)(nil)
var _ mono.HealthCheckableModule = (*AuthModule)(nil)

// NewModule creates a new AuthModule.
func NewModule(config JWTConfig, logger types.Logger) *AuthModule {
	return &AuthModule{
		manager: NewJWTManager(config),
		issuer:  config.Issuer,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Start starts the module.
func (m *AuthModule) Start(_ context.Context) error {
	m.logger.Info("Auth module started", "issuer", m.issuer)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status of the module.
func (m *AuthModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
	}
}

// Manager returns the JWT manager.
func (m *AuthModule) Manager() *JWTManager {
	return m.manager
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		"verify-token",
		json.Unmarshal,
		json.Marshal,
		m.handleVerifyToken,
	); err != nil {
		return fmt.Errorf("failed to register verify-token service: %w", err)
	}

	m.logger.Info("Registered services", "services", "verify-token")
	return nil
}

// handleVerifyToken handles token verification.
func (m *AuthModule) handleVerifyToken(_ context.Context, req VerifyTokenRequest, _ *mono.Msg) (VerifyTokenResponse, error) {
	claims, err := m.manager.VerifyToken(req.Token)
	if err != nil {
		errMsg := errInvalidMessage
		if errors.Is(err, ErrExpiredToken) {
			errMsg = errExpiredMessage
		}
		m.logger.Debug("Token rejected", "reason", err.Error())
		return VerifyTokenResponse{
			Valid: false,
			Error: errMsg,
		}, nil // Return response, not error, for validation failures
	}

	return VerifyTokenResponse{
		Valid:    true,
		UserID:   claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
	}, nil
}
