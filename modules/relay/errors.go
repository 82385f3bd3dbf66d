package relay

import (
	"errors"
	"fmt"

	"github.com/example/meeting-relay/domain/meeting"
)

var (
	// ErrUnknownConnection is returned when an operation names a connection
	// that is not registered.
	ErrUnknownConnection = errors.New("connection is not registered")
	// ErrInvalidJoin is returned when a join names no usable room.
	ErrInvalidJoin = errors.New("room id is required")
	// ErrRoomFull is returned when a room already holds the maximum number of members.
	ErrRoomFull = errors.New("room is full")
	// ErrNotInRoom is returned for room-scoped operations from a connection without a room.
	ErrNotInRoom = errors.New("connection is not in a room")
	// ErrMalformedSignal is returned when a signaling message lacks its target or payload.
	ErrMalformedSignal = errors.New("malformed signaling message")
	// ErrStaleTarget is returned when a signaling target is no longer registered.
	ErrStaleTarget = errors.New("signaling target is no longer connected")
	// ErrCrossRoomTarget is returned when sender and target are not in the same room.
	ErrCrossRoomTarget = errors.New("signaling target is not in the sender's room")
	// ErrMalformedPayload is returned when a room event payload is not a JSON object.
	ErrMalformedPayload = errors.New("payload must be a JSON object")
	// ErrUnsupportedEvent is returned for event types the relay does not forward.
	ErrUnsupportedEvent = errors.New("event type is not relayed")
	// ErrLockContention is matched by LockContentionError.
	ErrLockContention = errors.New("ai bot is locked by another participant")
	// ErrNotLockHolder is returned when a non-holder tries a holder-only lock operation.
	ErrNotLockHolder = errors.New("only the lock holder may release the ai bot")
)

// LockContentionError reports the current holder of a contended AI-bot lock.
type LockContentionError struct {
	Holder meeting.LockState
}

func (e *LockContentionError) Error() string {
	return fmt.Sprintf("ai bot is locked by %s", e.Holder.HolderUsername)
}

// Is makes errors.Is(err, ErrLockContention) hold.
func (e *LockContentionError) Is(target error) bool {
	return target == ErrLockContention
}
