package meetings

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxRoomIDLength       = 128
	maxTitleLength        = 200
	defaultTitle          = "Untitled meeting"
	defaultScheduledTitle = "Scheduled meeting"

	defaultDurationMinutes = 60
	maxDurationMinutes     = 24 * 60

	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Config holds meeting store configuration.
type Config struct {
	DBPath string
	// AutoCreate admits unknown rooms by creating a meeting hosted by the
	// first joiner.
	AutoCreate      bool
	DefaultCapacity int
}

// DefaultConfig returns the default meeting store configuration.
func DefaultConfig() Config {
	return Config{
		DBPath:          "meetings.db",
		DefaultCapacity: 15,
	}
}

// Service holds the meeting rules on top of the repository.
type Service struct {
	repo   *Repository
	config Config
	now    func() time.Time
}

// NewService creates a new meeting service.
func NewService(repo *Repository, config Config) *Service {
	if config.DefaultCapacity <= 0 {
		config.DefaultCapacity = DefaultConfig().DefaultCapacity
	}
	return &Service{
		repo:   repo,
		config: config,
		now:    time.Now,
	}
}

// Create creates a meeting hosted by the requester. An empty room id gets a
// generated one.
func (s *Service) Create(req CreateMeetingRequest) (*Meeting, error) {
	meeting, err := s.newMeeting(req, defaultTitle)
	if err != nil {
		return nil, err
	}
	if err := s.insert(meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

// Schedule creates a meeting that admits nobody before its start time.
func (s *Service) Schedule(req ScheduleMeetingRequest) (*Meeting, error) {
	if req.ScheduledStart.IsZero() {
		return nil, fmt.Errorf("%w: scheduled start is required", ErrInvalidRequest)
	}
	if !req.ScheduledStart.After(s.now()) {
		return nil, fmt.Errorf("%w: scheduled start must be in the future", ErrInvalidRequest)
	}
	duration := req.DurationMinutes
	switch {
	case duration == 0:
		duration = defaultDurationMinutes
	case duration < 0 || duration > maxDurationMinutes:
		return nil, fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidRequest, maxDurationMinutes)
	}

	meeting, err := s.newMeeting(CreateMeetingRequest{
		Title:           req.Title,
		MaxParticipants: req.MaxParticipants,
		HostID:          req.HostID,
		HostName:        req.HostName,
	}, defaultScheduledTitle)
	if err != nil {
		return nil, err
	}
	start := req.ScheduledStart.UTC()
	meeting.IsScheduled = true
	meeting.ScheduledStart = &start
	meeting.DurationMinutes = duration

	if err := s.insert(meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (s *Service) newMeeting(req CreateMeetingRequest, fallbackTitle string) (*Meeting, error) {
	if req.HostID == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidRequest)
	}

	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		roomID = uuid.New().String()
	}
	if len(roomID) > maxRoomIDLength || !utf8.ValidString(roomID) {
		return nil, fmt.Errorf("%w: invalid room id", ErrInvalidRequest)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fallbackTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidRequest, maxTitleLength)
	}

	capacity := req.MaxParticipants
	switch {
	case capacity == 0:
		capacity = s.config.DefaultCapacity
	case capacity < 0 || capacity > s.config.DefaultCapacity:
		return nil, fmt.Errorf("%w: maxParticipants must be between 1 and %d", ErrInvalidRequest, s.config.DefaultCapacity)
	}

	return &Meeting{
		RoomID:          roomID,
		Title:           title,
		HostID:          req.HostID,
		HostName:        req.HostName,
		MaxParticipants: capacity,
		IsActive:        true,
	}, nil
}

func (s *Service) insert(meeting *Meeting) error {
	if _, err := s.repo.FindMeeting(meeting.RoomID); err == nil {
		return ErrMeetingExists
	} else if !errors.Is(err, ErrMeetingNotFound) {
		return err
	}
	return s.repo.CreateMeeting(meeting)
}

// Get returns a meeting by room id.
func (s *Service) Get(roomID string) (*Meeting, error) {
	if strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}
	return s.repo.FindMeeting(roomID)
}

// Admit decides whether a user may enter a room that currently holds
// currentMembers connections. Members already inside are never refused for
// capacity.
func (s *Service) Admit(req AdmitRequest) (*Meeting, error) {
	meeting, err := s.repo.FindMeeting(req.RoomID)
	if errors.Is(err, ErrMeetingNotFound) && s.config.AutoCreate {
		meeting, err = s.Create(CreateMeetingRequest{
			RoomID:   req.RoomID,
			HostID:   req.UserID,
			HostName: req.Username,
		})
		if errors.Is(err, ErrMeetingExists) {
			// Lost a creation race with another joiner.
			meeting, err = s.repo.FindMeeting(req.RoomID)
		}
	}
	if err != nil {
		return nil, err
	}

	if !meeting.IsActive {
		return meeting, ErrMeetingEnded
	}
	if meeting.IsScheduled && meeting.ScheduledStart != nil && s.now().Before(*meeting.ScheduledStart) {
		return meeting, ErrNotStarted
	}
	if !req.AlreadyMember && req.CurrentMembers >= meeting.MaxParticipants {
		return meeting, ErrMeetingFull
	}
	return meeting, nil
}

// End marks a meeting inactive. Only the host may end it; ending an ended
// meeting returns it unchanged.
func (s *Service) End(roomID, requesterID string) (*Meeting, error) {
	meeting, err := s.Get(roomID)
	if err != nil {
		return nil, err
	}
	if meeting.HostID != requesterID {
		return nil, ErrNotHost
	}
	if !meeting.IsActive {
		return meeting, nil
	}

	at := s.now()
	if err := s.repo.EndMeeting(roomID, at); err != nil {
		return nil, err
	}
	meeting.IsActive = false
	meeting.EndedAt = &at
	return meeting, nil
}

// Sessions returns the participation history of a meeting.
func (s *Service) Sessions(roomID string) ([]*ParticipantSession, error) {
	if _, err := s.Get(roomID); err != nil {
		return nil, err
	}
	return s.repo.ListSessions(roomID)
}

// HistoryPage is one page of a user's meetings.
type HistoryPage struct {
	Meetings []*Meeting
	// Participants is the number of distinct users seen per room id.
	Participants map[string]int
	Total        int64
	Page         int
	Limit        int
}

// History returns the meetings userID hosted or joined, newest first. Pages
// start at 1.
func (s *Service) History(userID string, page, limit int) (*HistoryPage, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	meetings, total, err := s.repo.ListUserMeetings(userID, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	roomIDs := make([]string, 0, len(meetings))
	for _, meeting := range meetings {
		roomIDs = append(roomIDs, meeting.RoomID)
	}
	participants, err := s.repo.CountParticipants(roomIDs)
	if err != nil {
		return nil, err
	}

	return &HistoryPage{
		Meetings:     meetings,
		Participants: participants,
		Total:        total,
		Page:         page,
		Limit:        limit,
	}, nil
}

// Scheduled returns the host's upcoming scheduled meetings.
func (s *Service) Scheduled(hostID string) ([]*Meeting, error) {
	if hostID == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidRequest)
	}
	return s.repo.ListScheduled(hostID)
}

// CancelScheduled deletes a scheduled meeting. Meetings that are not the
// requester's scheduled meetings are reported as not found.
func (s *Service) CancelScheduled(roomID, requesterID string) error {
	meeting, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if !meeting.IsScheduled || meeting.HostID != requesterID {
		return ErrMeetingNotFound
	}
	return s.repo.DeleteMeeting(roomID)
}

// RecordJoin opens a session for a connection that joined a room.
func (s *Service) RecordJoin(roomID, connectionID, userID, username string, at time.Time) error {
	return s.repo.OpenSession(&ParticipantSession{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
		JoinedAt:     at,
	})
}

// RecordLeave closes the session of a connection that left a room. It
// reports false when the leave arrived before its join.
func (s *Service) RecordLeave(roomID, connectionID, userID, username string, at time.Time, disconnected bool) (bool, error) {
	return s.repo.CloseSession(&ParticipantSession{
		ID:           uuid.New().String(),
		RoomID:       roomID,
		ConnectionID: connectionID,
		UserID:       userID,
		Username:     username,
		LeftAt:       &at,
	}, disconnected)
}

// RecordLockHolder keeps the latest AI-bot lock holder on the meeting.
func (s *Service) RecordLockHolder(roomID, username string) error {
	err := s.repo.SetLastAIHolder(roomID, username)
	if errors.Is(err, ErrMeetingNotFound) {
		return nil
	}
	return err
}
