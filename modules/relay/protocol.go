package relay

import (
	"encoding/json"
	"fmt"

	"github.com/example/meeting-relay/domain/meeting"
)

// Inbound message types.
const (
	TypeJoinRoom        = "join-room"
	TypeLeaveRoom       = "leave-room"
	TypeOffer           = "offer"
	TypeAnswer          = "answer"
	TypeICECandidate    = "ice-candidate"
	TypeSendChatMessage = "send-chat-message"
	TypeAIBotLock       = "ai-bot-lock"
	TypeAIBotUnlock     = "ai-bot-unlock"
	TypeAIBotResult     = "ai-bot-result"
)

// Drawing and presence types are relayed verbatim in both directions.
const (
	TypeDrawingStart     = "drawing-start"
	TypeDrawingMove      = "drawing-move"
	TypeDrawingEnd       = "drawing-end"
	TypeDrawShape        = "draw-shape"
	TypeClearCanvas      = "clear-canvas"
	TypePinParticipant   = "pin-participant"
	TypeUnpinParticipant = "unpin-participant"
	TypeScreenShareStart = "screen-share-start"
	TypeScreenShareStop  = "screen-share-stop"
)

// Outbound message types.
const (
	TypeConnected         = "connected"
	TypeRoomJoined        = "room-joined"
	TypeRoomLeft          = "room-left"
	TypeUserJoined        = "user-joined"
	TypeUserLeft          = "user-left"
	TypeChatMessage       = "chat-message"
	TypeAIBotLocked       = "ai-bot-locked"
	TypeAIBotUnlocked     = "ai-bot-unlocked"
	TypeAIBotLockRejected = "ai-bot-lock-rejected"
	TypeError             = "error"
)

var relayedRoomEvents = map[string]bool{
	TypeDrawingStart:     true,
	TypeDrawingMove:      true,
	TypeDrawingEnd:       true,
	TypeDrawShape:        true,
	TypeClearCanvas:      true,
	TypePinParticipant:   true,
	TypeUnpinParticipant: true,
	TypeScreenShareStart: true,
	TypeScreenShareStop:  true,
}

// IsRoomEvent reports whether msgType is forwarded verbatim to the room.
func IsRoomEvent(msgType string) bool {
	return relayedRoomEvents[msgType]
}

// Envelope is the frame format on the wire.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeFrame marshals payload into an envelope of the given type.
func EncodeFrame(msgType string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
		}
		data = b
	}
	return json.Marshal(Envelope{Type: msgType, Data: data})
}

// JoinRoomRequest is the body of join-room.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// RoomJoinedResponse acknowledges a join with the other members of the room.
type RoomJoinedResponse struct {
	RoomID       string                `json:"roomId"`
	Participants []meeting.Participant `json:"participants"`
}

// RoomLeftResponse acknowledges leave-room.
type RoomLeftResponse struct {
	RoomID string `json:"roomId,omitempty"`
}

// ConnectedResponse greets a freshly registered connection.
type ConnectedResponse struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

// LockNotice is the payload of ai-bot-locked and ai-bot-unlocked.
type LockNotice struct {
	HolderConnectionID string `json:"holderConnectionId"`
	HolderUsername     string `json:"holderUsername"`
}

// LockRejectedResponse tells a requester who holds the lock.
type LockRejectedResponse struct {
	HolderConnectionID string `json:"holderConnectionId"`
	HolderUsername     string `json:"holderUsername"`
	Reason             string `json:"reason"`
}

// ErrorResponse is the payload of an error frame.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AIResultRequest is the body of ai-bot-result.
type AIResultRequest struct {
	Result json.RawMessage `json:"result"`
}
