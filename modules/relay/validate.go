package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Validation constants
const (
	MaxRoomIDLength  = 128
	MaxMessageLength = 5000
)

// Validation errors
var (
	ErrMessageEmpty   = errors.New("message content cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrMessageInvalid = errors.New("message contains invalid characters")
)

// ValidateRoomID validates a room identifier for join.
func ValidateRoomID(roomID string) error {
	if strings.TrimSpace(roomID) == "" {
		return ErrInvalidJoin
	}
	if len(roomID) > MaxRoomIDLength {
		return fmt.Errorf("%w: room id exceeds %d characters", ErrInvalidJoin, MaxRoomIDLength)
	}
	if !utf8.ValidString(roomID) {
		return fmt.Errorf("%w: room id contains invalid characters", ErrInvalidJoin)
	}
	return nil
}

// ValidateMessage validates chat message content. The hub itself forwards
// any length; the transport applies this before sending.
func ValidateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrMessageEmpty
	}
	if len(content) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	return nil
}

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}

func isEmptyJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
