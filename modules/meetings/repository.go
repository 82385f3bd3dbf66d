package meetings

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repository provides access to meeting storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new meeting repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateMeeting saves a new meeting.
func (r *Repository) CreateMeeting(meeting *Meeting) error {
	if err := r.db.Create(meeting).Error; err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}
	return nil
}

// FindMeeting retrieves a meeting by its room id.
func (r *Repository) FindMeeting(roomID string) (*Meeting, error) {
	var meeting Meeting
	if err := r.db.First(&meeting, "room_id = ?", roomID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to find meeting: %w", err)
	}
	return &meeting, nil
}

// EndMeeting marks a meeting inactive and closes its open sessions in one
// transaction.
func (r *Repository) EndMeeting(roomID string, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&Meeting{}).
			Where("room_id = ?", roomID).
			Updates(map[string]any{"is_active": false, "ended_at": at})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to end meeting: %w", err)
		}
		if result.RowsAffected == 0 {
			return ErrMeetingNotFound
		}

		if err := tx.Model(&ParticipantSession{}).
			Where("room_id = ? AND left_at IS NULL", roomID).
			Update("left_at", at).Error; err != nil {
			return fmt.Errorf("failed to close sessions: %w", err)
		}
		return nil
	})
}

// SetLastAIHolder stores the username of the latest AI-bot lock holder.
func (r *Repository) SetLastAIHolder(roomID, username string) error {
	result := r.db.Model(&Meeting{}).Where("room_id = ?", roomID).Update("last_ai_holder", username)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update meeting: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// OpenSession records a connection joining a room. Join and leave events
// travel on separate subjects, so the leave may already be stored as a
// zero-length session; that row is widened to the join time instead of
// opening a second one.
func (r *Repository) OpenSession(session *ParticipantSession) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ParticipantSession{}).
			Where("room_id = ? AND connection_id = ? AND left_at IS NOT NULL AND joined_at = left_at AND left_at >= ?",
				session.RoomID, session.ConnectionID, session.JoinedAt).
			Updates(map[string]any{
				"joined_at": session.JoinedAt,
				"user_id":   session.UserID,
				"username":  session.Username,
			})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to match early leave: %w", err)
		}
		if result.RowsAffected > 0 {
			return nil
		}

		if err := tx.Create(session).Error; err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
		return nil
	})
}

// CloseSession stamps the open session of a connection in a room and
// reports whether one was open. A leave with nothing open is kept as a
// zero-length session for OpenSession to pick up; a repeated leave with the
// same timestamp is ignored.
func (r *Repository) CloseSession(departure *ParticipantSession, disconnected bool) (bool, error) {
	if departure.LeftAt == nil {
		return false, fmt.Errorf("failed to close session: missing leave time")
	}
	at := *departure.LeftAt

	var closed bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&ParticipantSession{}).
			Where("room_id = ? AND connection_id = ? AND left_at IS NULL AND joined_at <= ?",
				departure.RoomID, departure.ConnectionID, at).
			Updates(map[string]any{"left_at": at, "disconnected": disconnected})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		if result.RowsAffected > 0 {
			closed = true
			return nil
		}

		var duplicates int64
		if err := tx.Model(&ParticipantSession{}).
			Where("room_id = ? AND connection_id = ? AND left_at = ?", departure.RoomID, departure.ConnectionID, at).
			Count(&duplicates).Error; err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if duplicates > 0 {
			return nil
		}

		early := *departure
		early.JoinedAt = at
		early.Disconnected = disconnected
		if err := tx.Create(&early).Error; err != nil {
			return fmt.Errorf("failed to record early leave: %w", err)
		}
		return nil
	})
	return closed, err
}

// CloseAllOpenSessions stamps every open session. Connections do not survive
// a restart, so this runs at startup.
func (r *Repository) CloseAllOpenSessions(at time.Time) (int64, error) {
	result := r.db.Model(&ParticipantSession{}).
		Where("left_at IS NULL").
		Updates(map[string]any{"left_at": at, "disconnected": true})
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to close sessions: %w", err)
	}
	return result.RowsAffected, nil
}

// ListSessions returns the sessions of a room in join order.
func (r *Repository) ListSessions(roomID string) ([]*ParticipantSession, error) {
	var sessions []*ParticipantSession
	if err := r.db.Where("room_id = ?", roomID).Order("joined_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// ListUserMeetings returns the meetings a user hosted or joined, newest
// first, along with the total count.
func (r *Repository) ListUserMeetings(userID string, offset, limit int) ([]*Meeting, int64, error) {
	// A finished chain cannot be reused, so each query builds its own.
	userMeetings := func() *gorm.DB {
		joined := r.db.Model(&ParticipantSession{}).Select("room_id").Where("user_id = ?", userID)
		return r.db.Model(&Meeting{}).Where("host_id = ? OR room_id IN (?)", userID, joined)
	}

	var total int64
	if err := userMeetings().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count meetings: %w", err)
	}

	var meetings []*Meeting
	if err := userMeetings().Order("created_at DESC").Offset(offset).Limit(limit).Find(&meetings).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list meetings: %w", err)
	}
	return meetings, total, nil
}

// CountParticipants returns the number of distinct users seen in each room.
func (r *Repository) CountParticipants(roomIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		RoomID string
		Users  int
	}
	if err := r.db.Model(&ParticipantSession{}).
		Select("room_id, COUNT(DISTINCT user_id) AS users").
		Where("room_id IN ?", roomIDs).
		Group("room_id").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	for _, row := range rows {
		counts[row.RoomID] = row.Users
	}
	return counts, nil
}

// ListScheduled returns a host's active scheduled meetings by start time.
func (r *Repository) ListScheduled(hostID string) ([]*Meeting, error) {
	var meetings []*Meeting
	if err := r.db.
		Where("host_id = ? AND is_scheduled = ? AND is_active = ?", hostID, true, true).
		Order("scheduled_start ASC").
		Find(&meetings).Error; err != nil {
		return nil, fmt.Errorf("failed to list scheduled meetings: %w", err)
	}
	return meetings, nil
}

// DeleteMeeting removes a meeting and its sessions.
func (r *Repository) DeleteMeeting(roomID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", roomID).Delete(&ParticipantSession{}).Error; err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}
		result := tx.Where("room_id = ?", roomID).Delete(&Meeting{})
		if err := result.Error; err != nil {
			return fmt.Errorf("failed to delete meeting: %w", err)
		}
		if result.RowsAffected == 0 {
			return ErrMeetingNotFound
		}
		return nil
	})
}
