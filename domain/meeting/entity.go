package meeting

import "time"

// Identity is the verified owner of a connection, copied from token claims.
type Identity struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Participant is a room member as seen by the other members.
type Participant struct {
	ConnectionID string `json:"connectionId"`
	Username     string `json:"username"`
}

// LockState is the AI-bot lock of a single room.
type LockState struct {
	Held               bool      `json:"held"`
	HolderConnectionID string    `json:"holderConnectionId,omitempty"`
	HolderUsername     string    `json:"holderUsername,omitempty"`
	LockedAt           time.Time `json:"lockedAt,omitempty"`
}

// RoomSummary describes a live room.
type RoomSummary struct {
	RoomID  string    `json:"roomId"`
	Members int       `json:"members"`
	Lock    LockState `json:"lock"`
}
