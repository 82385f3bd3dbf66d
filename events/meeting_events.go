package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// ParticipantJoinedEvent is emitted when a connection joins a room.
type ParticipantJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// ParticipantLeftEvent is emitted when a connection leaves a room,
// either explicitly or because it disconnected.
type ParticipantLeftEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	Disconnected bool      `json:"disconnected"`
	Timestamp    time.Time `json:"timestamp"`
}

// AILockChangedEvent is emitted when a room's AI-bot lock is taken or cleared.
type AILockChangedEvent struct {
	RoomID             string    `json:"room_id"`
	Held               bool      `json:"held"`
	HolderConnectionID string    `json:"holder_connection_id,omitempty"`
	HolderUsername     string    `json:"holder_username,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	ParticipantJoinedV1 = helper.EventDefinition[ParticipantJoinedEvent](
		"relay",
		"ParticipantJoined",
		"v1",
	)

	ParticipantLeftV1 = helper.EventDefinition[ParticipantLeftEvent](
		"relay",
		"ParticipantLeft",
		"v1",
	)

	AILockChangedV1 = helper.EventDefinition[AILockChangedEvent](
		"relay",
		"AILockChanged",
		"v1",
	)
)
