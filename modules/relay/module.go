package relay

import (
	"context"

	"github.com/example/meeting-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// RelayModule owns the Hub and turns its membership and lock changes into
// domain events on the EventBus.
type RelayModule struct {
	hub      *Hub
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*RelayModule)(nil)
	_ mono.EventBusAwareModule   = (*RelayModule)(nil)
	_ mono.EventEmitterModule    = (*RelayModule)(nil)
	_ mono.HealthCheckableModule = (*RelayModule)(nil)
)

// NewModule creates a new RelayModule.
func NewModule(logger types.Logger, opts ...Option) *RelayModule {
	m := &RelayModule{
		hub:    NewHub(logger, opts...),
		logger: logger,
	}
	m.hub.SetObserver(m.publishChange)
	return m
}

// Name returns the module name.
func (m *RelayModule) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *RelayModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *RelayModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.ParticipantJoinedV1.ToBase(),
		events.ParticipantLeftV1.ToBase(),
		events.AILockChangedV1.ToBase(),
	}
}

// Start starts the module.
func (m *RelayModule) Start(_ context.Context) error {
	cfg := m.hub.Config()
	m.logger.Info("Relay module started",
		"maxRoomSize", cfg.MaxRoomSize,
		"lockReleasePolicy", string(cfg.ReleasePolicy),
		"releaseLockOnLeave", cfg.ReleaseLockOnLeave)
	return nil
}

// Stop shuts down the module. Connections are closed by the transport.
func (m *RelayModule) Stop(_ context.Context) error {
	m.logger.Info("Relay module stopped",
		"connections", m.hub.ClientCount(),
		"rooms", m.hub.RoomCount())
	return nil
}

// Health returns the health status.
func (m *RelayModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.hub.ClientCount(),
			"rooms":       m.hub.RoomCount(),
		},
	}
}

// GetHub returns the hub for the transport module to use.
func (m *RelayModule) GetHub() *Hub {
	return m.hub
}

func (m *RelayModule) publishChange(change Change) {
	if m.eventBus == nil {
		return
	}

	var err error
	switch change.Kind {
	case ChangeJoined:
		err = events.ParticipantJoinedV1.Publish(m.eventBus, events.ParticipantJoinedEvent{
			RoomID:       change.RoomID,
			ConnectionID: change.ConnectionID,
			UserID:       change.Identity.UserID,
			Username:     change.Identity.Username,
			Timestamp:    change.At,
		}, nil)
	case ChangeLeft:
		err = events.ParticipantLeftV1.Publish(m.eventBus, events.ParticipantLeftEvent{
			RoomID:       change.RoomID,
			ConnectionID: change.ConnectionID,
			UserID:       change.Identity.UserID,
			Username:     change.Identity.Username,
			Disconnected: change.Disconnected,
			Timestamp:    change.At,
		}, nil)
	case ChangeLock:
		err = events.AILockChangedV1.Publish(m.eventBus, events.AILockChangedEvent{
			RoomID:             change.RoomID,
			Held:               change.Lock.Held,
			HolderConnectionID: change.Lock.HolderConnectionID,
			HolderUsername:     change.Lock.HolderUsername,
			Timestamp:          change.At,
		}, nil)
	}
	if err != nil {
		m.logger.Warn("Failed to publish relay event",
			"kind", int(change.Kind),
			"roomID", change.RoomID,
			"error", err)
	}
}
