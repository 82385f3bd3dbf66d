package meetings

import (
	"context"

	"github.com/example/meeting-relay/events"
	"github.com/go-monolith/mono"
)

// Service names registered by the meetings module.
const (
	ServiceCreate          = "meeting-create"
	ServiceGet             = "meeting-get"
	ServiceAdmit           = "meeting-admit"
	ServiceSessions        = "meeting-sessions"
	ServiceEnd             = "meeting-end"
	ServiceSchedule        = "meeting-schedule"
	ServiceListScheduled   = "meeting-scheduled"
	ServiceCancelScheduled = "meeting-cancel-scheduled"
	ServiceHistory         = "meeting-history"
)

// Domain refusals are returned as codes in the response; only storage
// failures surface as errors.

func (m *MeetingsModule) handleCreate(_ context.Context, req CreateMeetingRequest, _ *mono.Msg) (MeetingResponse, error) {
	meeting, err := m.service.Create(req)
	if err != nil {
		if code := errorCode(err); code != "" {
			return MeetingResponse{Error: code}, nil
		}
		return MeetingResponse{}, err
	}

	m.logger.Info("Meeting created", "roomID", meeting.RoomID, "hostID", meeting.HostID)
	return toMeetingResponse(meeting), nil
}

func (m *MeetingsModule) handleGet(_ context.Context, req GetMeetingRequest, _ *mono.Msg) (MeetingResponse, error) {
	meeting, err := m.service.Get(req.RoomID)
	if err != nil {
		if code := errorCode(err); code != "" {
			return MeetingResponse{Error: code}, nil
		}
		return MeetingResponse{}, err
	}
	return toMeetingResponse(meeting), nil
}

func (m *MeetingsModule) handleAdmit(_ context.Context, req AdmitRequest, _ *mono.Msg) (AdmitResponse, error) {
	meeting, err := m.service.Admit(req)
	if err != nil {
		code := errorCode(err)
		if code == "" {
			return AdmitResponse{}, err
		}
		m.logger.Debug("Join refused", "roomID", req.RoomID, "userID", req.UserID, "reason", code)
		resp := AdmitResponse{Error: code}
		if meeting != nil {
			resp.MaxParticipants = meeting.MaxParticipants
		}
		return resp, nil
	}
	return AdmitResponse{
		Admitted:        true,
		MaxParticipants: meeting.MaxParticipants,
	}, nil
}

func (m *MeetingsModule) handleSessions(_ context.Context, req SessionsRequest, _ *mono.Msg) (SessionsResponse, error) {
	sessions, err := m.service.Sessions(req.RoomID)
	if err != nil {
		if code := errorCode(err); code != "" {
			return SessionsResponse{RoomID: req.RoomID, Error: code}, nil
		}
		return SessionsResponse{}, err
	}

	resp := SessionsResponse{
		RoomID:   req.RoomID,
		Sessions: make([]SessionResponse, 0, len(sessions)),
		Total:    len(sessions),
	}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(session))
	}
	return resp, nil
}

func (m *MeetingsModule) handleEnd(_ context.Context, req EndMeetingRequest, _ *mono.Msg) (MeetingResponse, error) {
	meeting, err := m.service.End(req.RoomID, req.RequesterID)
	if err != nil {
		if code := errorCode(err); code != "" {
			return MeetingResponse{Error: code}, nil
		}
		return MeetingResponse{}, err
	}

	m.logger.Info("Meeting ended", "roomID", meeting.RoomID)
	return toMeetingResponse(meeting), nil
}

func (m *MeetingsModule) handleSchedule(_ context.Context, req ScheduleMeetingRequest, _ *mono.Msg) (MeetingResponse, error) {
	meeting, err := m.service.Schedule(req)
	if err != nil {
		if code := errorCode(err); code != "" {
			return MeetingResponse{Error: code}, nil
		}
		return MeetingResponse{}, err
	}

	m.logger.Info("Meeting scheduled",
		"roomID", meeting.RoomID,
		"hostID", meeting.HostID,
		"start", meeting.ScheduledStart)
	return toMeetingResponse(meeting), nil
}

func (m *MeetingsModule) handleListScheduled(_ context.Context, req ScheduledRequest, _ *mono.Msg) (ScheduledResponse, error) {
	meetings, err := m.service.Scheduled(req.HostID)
	if err != nil {
		if code := errorCode(err); code != "" {
			return ScheduledResponse{Error: code}, nil
		}
		return ScheduledResponse{}, err
	}

	resp := ScheduledResponse{
		Meetings: make([]MeetingResponse, 0, len(meetings)),
		Total:    len(meetings),
	}
	for _, meeting := range meetings {
		resp.Meetings = append(resp.Meetings, toMeetingResponse(meeting))
	}
	return resp, nil
}

func (m *MeetingsModule) handleCancelScheduled(_ context.Context, req CancelScheduledRequest, _ *mono.Msg) (CancelScheduledResponse, error) {
	if err := m.service.CancelScheduled(req.RoomID, req.RequesterID); err != nil {
		if code := errorCode(err); code != "" {
			return CancelScheduledResponse{RoomID: req.RoomID, Error: code}, nil
		}
		return CancelScheduledResponse{}, err
	}

	m.logger.Info("Scheduled meeting cancelled", "roomID", req.RoomID)
	return CancelScheduledResponse{RoomID: req.RoomID, Cancelled: true}, nil
}

func (m *MeetingsModule) handleHistory(_ context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	page, err := m.service.History(req.UserID, req.Page, req.Limit)
	if err != nil {
		if code := errorCode(err); code != "" {
			return HistoryResponse{Error: code}, nil
		}
		return HistoryResponse{}, err
	}
	return toHistoryResponse(req.UserID, page), nil
}

// Event handlers

func (m *MeetingsModule) handleParticipantJoined(_ context.Context, event events.ParticipantJoinedEvent, _ *mono.Msg) error {
	if err := m.service.RecordJoin(event.RoomID, event.ConnectionID, event.UserID, event.Username, event.Timestamp); err != nil {
		m.logger.Error("Failed to record join", "roomID", event.RoomID, "connectionID", event.ConnectionID, "error", err)
		return err
	}
	return nil
}

func (m *MeetingsModule) handleParticipantLeft(_ context.Context, event events.ParticipantLeftEvent, _ *mono.Msg) error {
	closed, err := m.service.RecordLeave(event.RoomID, event.ConnectionID, event.UserID, event.Username, event.Timestamp, event.Disconnected)
	if err != nil {
		m.logger.Error("Failed to record leave", "roomID", event.RoomID, "connectionID", event.ConnectionID, "error", err)
		return err
	}
	if !closed {
		m.logger.Debug("Leave recorded before join", "roomID", event.RoomID, "connectionID", event.ConnectionID)
	}
	return nil
}

func (m *MeetingsModule) handleAILockChanged(_ context.Context, event events.AILockChangedEvent, _ *mono.Msg) error {
	if !event.Held {
		return nil
	}
	if err := m.service.RecordLockHolder(event.RoomID, event.HolderUsername); err != nil {
		m.logger.Error("Failed to record AI lock holder", "roomID", event.RoomID, "error", err)
		return err
	}
	return nil
}
