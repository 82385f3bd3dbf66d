package meetings

import "time"

// CreateMeetingRequest is the request for creating a meeting.
type CreateMeetingRequest struct {
	RoomID          string `json:"roomId,omitempty"`
	Title           string `json:"title"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
	HostID          string `json:"hostId"`
	HostName        string `json:"hostName"`
}

// GetMeetingRequest is the request for getting a meeting.
type GetMeetingRequest struct {
	RoomID string `json:"roomId"`
}

// EndMeetingRequest is the request for ending a meeting.
type EndMeetingRequest struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId"`
}

// MeetingResponse represents a meeting in responses. Error carries a domain
// error code when the operation was refused.
type MeetingResponse struct {
	RoomID          string     `json:"roomId"`
	Title           string     `json:"title"`
	HostID          string     `json:"hostId"`
	HostName        string     `json:"hostName"`
	MaxParticipants int        `json:"maxParticipants"`
	IsActive        bool       `json:"isActive"`
	LastAIHolder    string     `json:"lastAiHolder,omitempty"`
	IsScheduled     bool       `json:"isScheduled,omitempty"`
	ScheduledStart  *time.Time `json:"scheduledStart,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// AdmitRequest asks whether a user may join a room.
type AdmitRequest struct {
	RoomID         string `json:"roomId"`
	UserID         string `json:"userId"`
	Username       string `json:"username"`
	CurrentMembers int    `json:"currentMembers"`
	AlreadyMember  bool   `json:"alreadyMember"`
}

// AdmitResponse is the admission decision.
type AdmitResponse struct {
	Admitted        bool   `json:"admitted"`
	MaxParticipants int    `json:"maxParticipants,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SessionsRequest is the request for a meeting's participation history.
type SessionsRequest struct {
	RoomID string `json:"roomId"`
}

// SessionResponse represents one participant session.
type SessionResponse struct {
	ConnectionID string     `json:"connectionId"`
	UserID       string     `json:"userId"`
	Username     string     `json:"username"`
	JoinedAt     time.Time  `json:"joinedAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
	Disconnected bool       `json:"disconnected"`
}

// SessionsResponse is the participation history of a meeting.
type SessionsResponse struct {
	RoomID   string            `json:"roomId"`
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
	Error    string            `json:"error,omitempty"`
}

// ScheduleMeetingRequest is the request for scheduling a meeting.
type ScheduleMeetingRequest struct {
	Title           string    `json:"title"`
	MaxParticipants int       `json:"maxParticipants,omitempty"`
	ScheduledStart  time.Time `json:"scheduledStart"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	HostID          string    `json:"hostId"`
	HostName        string    `json:"hostName"`
}

// ScheduledRequest lists a host's scheduled meetings.
type ScheduledRequest struct {
	HostID string `json:"hostId"`
}

// ScheduledResponse is a host's upcoming scheduled meetings.
type ScheduledResponse struct {
	Meetings []MeetingResponse `json:"meetings"`
	Total    int               `json:"total"`
	Error    string            `json:"error,omitempty"`
}

// CancelScheduledRequest cancels a scheduled meeting.
type CancelScheduledRequest struct {
	RoomID      string `json:"roomId"`
	RequesterID string `json:"requesterId"`
}

// CancelScheduledResponse reports a cancelled meeting.
type CancelScheduledResponse struct {
	RoomID    string `json:"roomId"`
	Cancelled bool   `json:"cancelled"`
	Error     string `json:"error,omitempty"`
}

// HistoryRequest asks for one page of a user's meetings.
type HistoryRequest struct {
	UserID string `json:"userId"`
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
}

// HistoryEntry is one meeting in a user's history.
type HistoryEntry struct {
	RoomID           string     `json:"roomId"`
	Title            string     `json:"title"`
	HostID           string     `json:"hostId"`
	HostName         string     `json:"hostName"`
	IsActive         bool       `json:"isActive"`
	IsHost           bool       `json:"isHost"`
	ParticipantCount int        `json:"participantCount"`
	CreatedAt        time.Time  `json:"createdAt"`
	EndedAt          *time.Time `json:"endedAt,omitempty"`
}

// Pagination describes where a page sits in the full result.
type Pagination struct {
	CurrentPage   int   `json:"currentPage"`
	TotalPages    int   `json:"totalPages"`
	TotalMeetings int64 `json:"totalMeetings"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

// HistoryResponse is one page of a user's meetings.
type HistoryResponse struct {
	Meetings   []HistoryEntry `json:"meetings"`
	Pagination Pagination     `json:"pagination"`
	Error      string         `json:"error,omitempty"`
}

func toMeetingResponse(meeting *Meeting) MeetingResponse {
	return MeetingResponse{
		RoomID:          meeting.RoomID,
		Title:           meeting.Title,
		HostID:          meeting.HostID,
		HostName:        meeting.HostName,
		MaxParticipants: meeting.MaxParticipants,
		IsActive:        meeting.IsActive,
		LastAIHolder:    meeting.LastAIHolder,
		IsScheduled:     meeting.IsScheduled,
		ScheduledStart:  meeting.ScheduledStart,
		DurationMinutes: meeting.DurationMinutes,
		CreatedAt:       meeting.CreatedAt,
		EndedAt:         meeting.EndedAt,
	}
}

func toHistoryResponse(userID string, page *HistoryPage) HistoryResponse {
	entries := make([]HistoryEntry, 0, len(page.Meetings))
	for _, meeting := range page.Meetings {
		entries = append(entries, HistoryEntry{
			RoomID:           meeting.RoomID,
			Title:            meeting.Title,
			HostID:           meeting.HostID,
			HostName:         meeting.HostName,
			IsActive:         meeting.IsActive,
			IsHost:           meeting.HostID == userID,
			ParticipantCount: page.Participants[meeting.RoomID],
			CreatedAt:        meeting.CreatedAt,
			EndedAt:          meeting.EndedAt,
		})
	}

	totalPages := int((page.Total + int64(page.Limit) - 1) / int64(page.Limit))
	return HistoryResponse{
		Meetings: entries,
		Pagination: Pagination{
			CurrentPage:   page.Page,
			TotalPages:    totalPages,
			TotalMeetings: page.Total,
			HasNext:       page.Page < totalPages,
			HasPrev:       page.Page > 1,
		},
	}
}

func toSessionResponse(session *ParticipantSession) SessionResponse {
	return SessionResponse{
		ConnectionID: session.ConnectionID,
		UserID:       session.UserID,
		Username:     session.Username,
		JoinedAt:     session.JoinedAt,
		LeftAt:       session.LeftAt,
		Disconnected: session.Disconnected,
	}
}
