package api

import (
	"time"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/modules/meetings"
)

// CreateMeetingRequest is the API request to create a meeting. The host is
// the authenticated user.
type CreateMeetingRequest struct {
	RoomID          string `json:"roomId"`
	Title           string `json:"title"`
	MaxParticipants int    `json:"maxParticipants"`
}

// ScheduleMeetingRequest is the API request to schedule a meeting.
type ScheduleMeetingRequest struct {
	Title           string    `json:"title"`
	MaxParticipants int       `json:"maxParticipants"`
	ScheduledStart  time.Time `json:"scheduledStart"`
	DurationMinutes int       `json:"durationMinutes"`
}

// MeetingDetailResponse is a stored meeting with its live state.
type MeetingDetailResponse struct {
	meetings.MeetingResponse
	LiveMembers int               `json:"liveMembers"`
	Lock        meeting.LockState `json:"lock"`
}

// ParticipantsResponse lists the live members of a room.
type ParticipantsResponse struct {
	RoomID       string                `json:"roomId"`
	Participants []meeting.Participant `json:"participants"`
	Total        int                   `json:"total"`
	Lock         meeting.LockState     `json:"lock"`
}

// RoomListResponse lists the live rooms.
type RoomListResponse struct {
	Rooms []meeting.RoomSummary `json:"rooms"`
	Total int                   `json:"total"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
