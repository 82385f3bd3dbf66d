package relay

import (
	"encoding/json"
	"fmt"
)

// ChatMessage is the payload of chat-message.
type ChatMessage struct {
	Message   string `json:"message"`
	Username  string `json:"username"`
	Timestamp int64  `json:"timestamp"`
}

// SendChat broadcasts a chat message to the sender's room. The username is
// taken from the registry; a zero timestamp is set to now in milliseconds.
func (h *Hub) SendChat(fromID string, msg ChatMessage) (ChatMessage, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[fromID]
	if !ok {
		return ChatMessage{}, 0, ErrUnknownConnection
	}
	r, ok := h.rooms[c.RoomID]
	if !ok {
		return ChatMessage{}, 0, ErrNotInRoom
	}

	msg.Username = c.Identity.Username
	if msg.Timestamp == 0 {
		msg.Timestamp = h.now().UnixMilli()
	}
	return msg, h.broadcastLocked(r, TypeChatMessage, msg, fromID), nil
}

// RelayRoomEvent forwards a drawing or presence event to the sender's room.
// The payload is passed through as-is with a from field added.
func (h *Hub) RelayRoomEvent(fromID, msgType string, data json.RawMessage) (int, error) {
	if !IsRoomEvent(msgType) {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedEvent, msgType)
	}

	body := map[string]json.RawMessage{}
	if !isEmptyJSON(data) {
		if !isJSONObject(data) {
			return 0, ErrMalformedPayload
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return 0, ErrMalformedPayload
		}
	}
	from, err := json.Marshal(fromID)
	if err != nil {
		return 0, err
	}
	body["from"] = from

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[fromID]
	if !ok {
		return 0, ErrUnknownConnection
	}
	r, ok := h.rooms[c.RoomID]
	if !ok {
		return 0, ErrNotInRoom
	}
	return h.broadcastLocked(r, msgType, body, fromID), nil
}

// AIResult is the payload of ai-bot-result.
type AIResult struct {
	From     string          `json:"from"`
	Username string          `json:"username"`
	Result   json.RawMessage `json:"result"`
}

// PublishAIResult broadcasts the output of an AI request to the room. While
// the lock is held only its holder may publish.
func (h *Hub) PublishAIResult(fromID string, result json.RawMessage) (int, error) {
	if isEmptyJSON(result) || !json.Valid(result) {
		return 0, ErrMalformedPayload
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[fromID]
	if !ok {
		return 0, ErrUnknownConnection
	}
	r, ok := h.rooms[c.RoomID]
	if !ok {
		return 0, ErrNotInRoom
	}
	if r.lock.Held && r.lock.HolderConnectionID != fromID {
		return 0, &LockContentionError{Holder: r.lock}
	}
	return h.broadcastLocked(r, TypeAIBotResult, AIResult{
		From:     fromID,
		Username: c.Identity.Username,
		Result:   result,
	}, fromID), nil
}
