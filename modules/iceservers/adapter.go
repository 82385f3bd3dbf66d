package iceservers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ICEPort defines the ICE operations other modules use.
type ICEPort interface {
	Servers(ctx context.Context, userID string) (ICEServersResponse, error)
}

// ICEAdapter implements ICEPort using the service container.
type ICEAdapter struct {
	container mono.ServiceContainer
}

var _ ICEPort = (*ICEAdapter)(nil)

// NewICEAdapter creates a new ICEAdapter.
func NewICEAdapter(container mono.ServiceContainer) *ICEAdapter {
	return &ICEAdapter{container: container}
}

// Servers fetches the ICE server list for a user.
func (a *ICEAdapter) Servers(ctx context.Context, userID string) (ICEServersResponse, error) {
	req := ICEServersRequest{UserID: userID}
	var resp ICEServersResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceName,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return ICEServersResponse{}, fmt.Errorf("%s request failed: %w", ServiceName, err)
	}

	if resp.Error != "" {
		return ICEServersResponse{}, errors.New(resp.Error)
	}
	return resp, nil
}
