package api

import (
	"errors"

	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
	"github.com/gofiber/fiber/v2"
)

// Error codes sent in error frames.
const (
	codeInvalidJoin        = "invalid_join"
	codeMeetingUnavailable = "meeting_unavailable"
	codeRoomFull           = "room_full"
	codeMalformedSignal    = "malformed_signal"
	codeNotInRoom          = "not_in_room"
	codeInvalidMessage     = "invalid_message"
	codeUnknownType        = "unknown_type"
	codeRateLimited        = "rate_limited"
	codeLockContention     = "lock_contention"
	codeNotLockHolder      = "not_lock_holder"
	codeInternal           = "internal_error"
)

// wireCode maps an error to the code reported to the client. silent is true
// for failures the client is never told about.
func wireCode(err error) (code string, silent bool) {
	switch {
	case errors.Is(err, relay.ErrStaleTarget), errors.Is(err, relay.ErrCrossRoomTarget):
		return "", true
	case errors.Is(err, relay.ErrInvalidJoin):
		return codeInvalidJoin, false
	case errors.Is(err, relay.ErrRoomFull), errors.Is(err, meetings.ErrMeetingFull):
		return codeRoomFull, false
	case errors.Is(err, meetings.ErrMeetingNotFound),
		errors.Is(err, meetings.ErrMeetingEnded),
		errors.Is(err, meetings.ErrNotStarted):
		return codeMeetingUnavailable, false
	case errors.Is(err, relay.ErrMalformedSignal):
		return codeMalformedSignal, false
	case errors.Is(err, relay.ErrNotInRoom), errors.Is(err, relay.ErrUnknownConnection):
		return codeNotInRoom, false
	case errors.Is(err, relay.ErrMalformedPayload),
		errors.Is(err, relay.ErrMessageEmpty),
		errors.Is(err, relay.ErrMessageTooLong),
		errors.Is(err, relay.ErrMessageInvalid):
		return codeInvalidMessage, false
	case errors.Is(err, relay.ErrUnsupportedEvent):
		return codeUnknownType, false
	case errors.Is(err, relay.ErrLockContention):
		return codeLockContention, false
	case errors.Is(err, relay.ErrNotLockHolder):
		return codeNotLockHolder, false
	default:
		return codeInternal, false
	}
}

// restStatus maps a meeting store error to an HTTP status and error code.
func restStatus(err error) (int, string) {
	switch {
	case errors.Is(err, meetings.ErrMeetingNotFound):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, meetings.ErrMeetingExists):
		return fiber.StatusConflict, "already_exists"
	case errors.Is(err, meetings.ErrNotHost):
		return fiber.StatusForbidden, "forbidden"
	case errors.Is(err, meetings.ErrInvalidRequest):
		return fiber.StatusBadRequest, "validation_error"
	case errors.Is(err, meetings.ErrMeetingEnded):
		return fiber.StatusGone, "meeting_ended"
	case errors.Is(err, meetings.ErrNotStarted):
		return fiber.StatusBadRequest, "not_started"
	default:
		return fiber.StatusInternalServerError, "server_error"
	}
}
