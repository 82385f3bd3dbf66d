package meetings

import (
	"time"
)

// Meeting is a scheduled or ad-hoc meeting whose room id clients join.
type Meeting struct {
	RoomID          string     `gorm:"primarykey;size:128" json:"roomId"`
	Title           string     `gorm:"size:200" json:"title"`
	HostID          string     `gorm:"size:64;not null;index" json:"hostId"`
	HostName        string     `gorm:"size:50" json:"hostName"`
	MaxParticipants int        `gorm:"not null;default:15" json:"maxParticipants"`
	IsActive        bool       `gorm:"not null;default:true" json:"isActive"`
	LastAIHolder    string     `gorm:"size:50" json:"lastAiHolder,omitempty"`
	IsScheduled     bool       `gorm:"not null;default:false;index" json:"isScheduled"`
	ScheduledStart  *time.Time `json:"scheduledStart,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
}

// TableName returns the table name for Meeting model.
func (Meeting) TableName() string {
	return "meetings"
}

// ParticipantSession records one connection's stay in a meeting room.
type ParticipantSession struct {
	ID           string     `gorm:"primarykey;size:36" json:"id"`
	RoomID       string     `gorm:"size:128;not null;index:idx_session_room_conn" json:"roomId"`
	ConnectionID string     `gorm:"size:36;not null;index:idx_session_room_conn" json:"connectionId"`
	UserID       string     `gorm:"size:64;not null;index" json:"userId"`
	Username     string     `gorm:"size:50" json:"username"`
	JoinedAt     time.Time  `gorm:"not null" json:"joinedAt"`
	LeftAt       *time.Time `json:"leftAt,omitempty"`
	Disconnected bool       `json:"disconnected"`
}

// TableName returns the table name for ParticipantSession model.
func (ParticipantSession) TableName() string {
	return "participant_sessions"
}
