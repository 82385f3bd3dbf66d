package meetings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// MeetingsPort defines the meeting operations other modules use.
type MeetingsPort interface {
	Create(ctx context.Context, req CreateMeetingRequest) (MeetingResponse, error)
	Get(ctx context.Context, roomID string) (MeetingResponse, error)
	Admit(ctx context.Context, req AdmitRequest) (AdmitResponse, error)
	Sessions(ctx context.Context, roomID string) (SessionsResponse, error)
	End(ctx context.Context, roomID, requesterID string) (MeetingResponse, error)
	Schedule(ctx context.Context, req ScheduleMeetingRequest) (MeetingResponse, error)
	Scheduled(ctx context.Context, hostID string) (ScheduledResponse, error)
	CancelScheduled(ctx context.Context, roomID, requesterID string) error
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

// MeetingsAdapter implements MeetingsPort using the service container.
// Refusals come back as the package's sentinel errors.
type MeetingsAdapter struct {
	container mono.ServiceContainer
}

var _ MeetingsPort = (*MeetingsAdapter)(nil)

// NewMeetingsAdapter creates a new MeetingsAdapter.
func NewMeetingsAdapter(container mono.ServiceContainer) *MeetingsAdapter {
	return &MeetingsAdapter{container: container}
}

// call sends req to a meetings service and decodes the reply into resp.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// Create creates a meeting.
func (a *MeetingsAdapter) Create(ctx context.Context, req CreateMeetingRequest) (MeetingResponse, error) {
	var resp MeetingResponse
	if err := call(ctx, a.container, ServiceCreate, &req, &resp); err != nil {
		return MeetingResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// Get retrieves a meeting by room id.
func (a *MeetingsAdapter) Get(ctx context.Context, roomID string) (MeetingResponse, error) {
	req := GetMeetingRequest{RoomID: roomID}
	var resp MeetingResponse
	if err := call(ctx, a.container, ServiceGet, &req, &resp); err != nil {
		return MeetingResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// Admit asks whether a user may join a room.
func (a *MeetingsAdapter) Admit(ctx context.Context, req AdmitRequest) (AdmitResponse, error) {
	var resp AdmitResponse
	if err := call(ctx, a.container, ServiceAdmit, &req, &resp); err != nil {
		return AdmitResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// Sessions lists the participation history of a meeting.
func (a *MeetingsAdapter) Sessions(ctx context.Context, roomID string) (SessionsResponse, error) {
	req := SessionsRequest{RoomID: roomID}
	var resp SessionsResponse
	if err := call(ctx, a.container, ServiceSessions, &req, &resp); err != nil {
		return SessionsResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// End ends a meeting on behalf of requesterID.
func (a *MeetingsAdapter) End(ctx context.Context, roomID, requesterID string) (MeetingResponse, error) {
	req := EndMeetingRequest{RoomID: roomID, RequesterID: requesterID}
	var resp MeetingResponse
	if err := call(ctx, a.container, ServiceEnd, &req, &resp); err != nil {
		return MeetingResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// Schedule creates a meeting that starts later.
func (a *MeetingsAdapter) Schedule(ctx context.Context, req ScheduleMeetingRequest) (MeetingResponse, error) {
	var resp MeetingResponse
	if err := call(ctx, a.container, ServiceSchedule, &req, &resp); err != nil {
		return MeetingResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// Scheduled lists the host's upcoming scheduled meetings.
func (a *MeetingsAdapter) Scheduled(ctx context.Context, hostID string) (ScheduledResponse, error) {
	req := ScheduledRequest{HostID: hostID}
	var resp ScheduledResponse
	if err := call(ctx, a.container, ServiceListScheduled, &req, &resp); err != nil {
		return ScheduledResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}

// CancelScheduled cancels one of the requester's scheduled meetings.
func (a *MeetingsAdapter) CancelScheduled(ctx context.Context, roomID, requesterID string) error {
	req := CancelScheduledRequest{RoomID: roomID, RequesterID: requesterID}
	var resp CancelScheduledResponse
	if err := call(ctx, a.container, ServiceCancelScheduled, &req, &resp); err != nil {
		return err
	}
	return errorFromCode(resp.Error)
}

// History returns one page of the meetings a user hosted or joined.
func (a *MeetingsAdapter) History(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	var resp HistoryResponse
	if err := call(ctx, a.container, ServiceHistory, &req, &resp); err != nil {
		return HistoryResponse{}, err
	}
	return resp, errorFromCode(resp.Error)
}
