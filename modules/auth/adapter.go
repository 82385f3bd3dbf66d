package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the interface for authentication operations.
// This is the port that other modules use to access auth functionality.
type AuthPort interface {
	VerifyToken(ctx context.Context, token string) (meeting.Identity, error)
}

// AuthAdapter implements AuthPort using the service container.
type AuthAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new AuthAdapter.
func NewAuthAdapter(container mono.ServiceContainer) *AuthAdapter {
	return &AuthAdapter{
		container: container,
	}
}

// VerifyToken verifies a bearer token and returns the identity it carries.
// Rejections wrap ErrExpiredToken or ErrInvalidToken.
func (a *AuthAdapter) VerifyToken(ctx context.Context, token string) (meeting.Identity, error) {
	req := VerifyTokenRequest{Token: token}
	var resp VerifyTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"verify-token",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return meeting.Identity{}, fmt.Errorf("verify-token request failed: %w", err)
	}

	if !resp.Valid {
		if resp.Error == errExpiredMessage {
			return meeting.Identity{}, ErrExpiredToken
		}
		return meeting.Identity{}, fmt.Errorf("%w: %s", ErrInvalidToken, resp.Error)
	}

	return meeting.Identity{
		UserID:   resp.UserID,
		Username: resp.Username,
		Email:    resp.Email,
	}, nil
}
