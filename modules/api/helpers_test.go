package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/middleware/ratelimit"
	"github.com/example/meeting-relay/modules/auth"
	"github.com/example/meeting-relay/modules/iceservers"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// warnCounter is a mockLogger that counts Warn calls.
type warnCounter struct {
	mockLogger
	mu    sync.Mutex
	warns int
}

func (w *warnCounter) Warn(_ string, _ ...any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.warns++
}
func (w *warnCounter) With(_ ...any) types.Logger {
	return w
}
func (w *warnCounter) WithModule(_ string) types.Logger {
	return w
}
func (w *warnCounter) WithError(_ error) types.Logger {
	return w
}

func (w *warnCounter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warns
}

// mockAuthPort implements auth.AuthPort for testing. Tokens of the form
// "token-<name>" verify as user "id-<name>" named <name>.
type mockAuthPort struct {
	verifyTokenFunc func(ctx context.Context, token string) (meeting.Identity, error)
}

func (m *mockAuthPort) VerifyToken(ctx context.Context, token string) (meeting.Identity, error) {
	if m.verifyTokenFunc != nil {
		return m.verifyTokenFunc(ctx, token)
	}
	const prefix = "token-"
	if len(token) > len(prefix) && token[:len(prefix)] == prefix {
		name := token[len(prefix):]
		if name == "expired" {
			return meeting.Identity{}, auth.ErrExpiredToken
		}
		return meeting.Identity{UserID: "id-" + name, Username: name}, nil
	}
	return meeting.Identity{}, auth.ErrInvalidToken
}

// fakeMeetings implements meetings.MeetingsPort in memory.
type fakeMeetings struct {
	mu       sync.Mutex
	meetings map[string]meetings.MeetingResponse
	admitErr map[string]error
	admits   []meetings.AdmitRequest
	sessions map[string][]meetings.SessionResponse
	history  []meetings.HistoryRequest
	failAll  error
}

func newFakeMeetings() *fakeMeetings {
	return &fakeMeetings{
		meetings: make(map[string]meetings.MeetingResponse),
		admitErr: make(map[string]error),
		sessions: make(map[string][]meetings.SessionResponse),
	}
}

func (f *fakeMeetings) Create(_ context.Context, req meetings.CreateMeetingRequest) (meetings.MeetingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return meetings.MeetingResponse{}, f.failAll
	}
	if req.Title == "" {
		return meetings.MeetingResponse{}, meetings.ErrInvalidRequest
	}
	if _, ok := f.meetings[req.RoomID]; ok {
		return meetings.MeetingResponse{}, meetings.ErrMeetingExists
	}
	resp := meetings.MeetingResponse{
		RoomID:          req.RoomID,
		Title:           req.Title,
		HostID:          req.HostID,
		HostName:        req.HostName,
		MaxParticipants: 15,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
	f.meetings[req.RoomID] = resp
	return resp, nil
}

func (f *fakeMeetings) Get(_ context.Context, roomID string) (meetings.MeetingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.meetings[roomID]
	if !ok {
		return meetings.MeetingResponse{}, meetings.ErrMeetingNotFound
	}
	return resp, nil
}

func (f *fakeMeetings) Admit(_ context.Context, req meetings.AdmitRequest) (meetings.AdmitResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.admits = append(f.admits, req)
	if f.failAll != nil {
		return meetings.AdmitResponse{}, f.failAll
	}
	if err := f.admitErr[req.RoomID]; err != nil {
		return meetings.AdmitResponse{}, err
	}
	// Admits regardless of CurrentMembers, like a decision made on a
	// stale count.
	capacity := 15
	if resp, ok := f.meetings[req.RoomID]; ok && resp.MaxParticipants > 0 {
		capacity = resp.MaxParticipants
	}
	return meetings.AdmitResponse{Admitted: true, MaxParticipants: capacity}, nil
}

func (f *fakeMeetings) Sessions(_ context.Context, roomID string) (meetings.SessionsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.meetings[roomID]; !ok {
		return meetings.SessionsResponse{}, meetings.ErrMeetingNotFound
	}
	sessions := f.sessions[roomID]
	return meetings.SessionsResponse{RoomID: roomID, Sessions: sessions, Total: len(sessions)}, nil
}

func (f *fakeMeetings) End(_ context.Context, roomID, requesterID string) (meetings.MeetingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.meetings[roomID]
	if !ok {
		return meetings.MeetingResponse{}, meetings.ErrMeetingNotFound
	}
	if resp.HostID != requesterID {
		return meetings.MeetingResponse{}, meetings.ErrNotHost
	}
	resp.IsActive = false
	f.meetings[roomID] = resp
	return resp, nil
}

func (f *fakeMeetings) Schedule(_ context.Context, req meetings.ScheduleMeetingRequest) (meetings.MeetingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return meetings.MeetingResponse{}, f.failAll
	}
	if !req.ScheduledStart.After(time.Now()) {
		return meetings.MeetingResponse{}, meetings.ErrInvalidRequest
	}
	start := req.ScheduledStart
	resp := meetings.MeetingResponse{
		RoomID:          fmt.Sprintf("scheduled-%d", len(f.meetings)+1),
		Title:           req.Title,
		HostID:          req.HostID,
		HostName:        req.HostName,
		MaxParticipants: 15,
		IsActive:        true,
		IsScheduled:     true,
		ScheduledStart:  &start,
		DurationMinutes: 60,
		CreatedAt:       time.Now(),
	}
	f.meetings[resp.RoomID] = resp
	return resp, nil
}

func (f *fakeMeetings) Scheduled(_ context.Context, hostID string) (meetings.ScheduledResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return meetings.ScheduledResponse{}, f.failAll
	}
	var list []meetings.MeetingResponse
	for _, resp := range f.meetings {
		if resp.IsScheduled && resp.IsActive && resp.HostID == hostID {
			list = append(list, resp)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ScheduledStart.Before(*list[j].ScheduledStart)
	})
	return meetings.ScheduledResponse{Meetings: list, Total: len(list)}, nil
}

func (f *fakeMeetings) CancelScheduled(_ context.Context, roomID, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	resp, ok := f.meetings[roomID]
	if !ok || !resp.IsScheduled || resp.HostID != requesterID {
		return meetings.ErrMeetingNotFound
	}
	delete(f.meetings, roomID)
	return nil
}

func (f *fakeMeetings) History(_ context.Context, req meetings.HistoryRequest) (meetings.HistoryResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, req)
	if f.failAll != nil {
		return meetings.HistoryResponse{}, f.failAll
	}
	var entries []meetings.HistoryEntry
	for _, resp := range f.meetings {
		if resp.HostID == req.UserID {
			entries = append(entries, meetings.HistoryEntry{RoomID: resp.RoomID, Title: resp.Title, IsHost: true})
		}
	}
	return meetings.HistoryResponse{
		Meetings: entries,
		Pagination: meetings.Pagination{
			CurrentPage:   req.Page,
			TotalPages:    1,
			TotalMeetings: int64(len(entries)),
		},
	}, nil
}

func (f *fakeMeetings) historyCalls() []meetings.HistoryRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]meetings.HistoryRequest(nil), f.history...)
}

func (f *fakeMeetings) admitCalls() []meetings.AdmitRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]meetings.AdmitRequest(nil), f.admits...)
}

// fakeICE implements iceservers.ICEPort.
type fakeICE struct {
	err error
}

func (f *fakeICE) Servers(_ context.Context, _ string) (iceservers.ICEServersResponse, error) {
	if f.err != nil {
		return iceservers.ICEServersResponse{}, f.err
	}
	return iceservers.ICEServersResponse{
		ICEServers: []webrtc.ICEServer{{URLs: []string{iceservers.DefaultSTUNURL}}},
	}, nil
}

var errStoreDown = errors.New("connection refused")

// newTestModule builds an APIModule wired to in-memory fakes.
func newTestModule(t *testing.T, opts ...relay.Option) (*APIModule, *fakeMeetings) {
	t.Helper()

	store := newFakeMeetings()
	m := NewModule(DefaultConfig(), &mockLogger{})
	m.auth = &mockAuthPort{}
	m.meetings = store
	m.ice = &fakeICE{}
	m.hub = relay.NewHub(&mockLogger{}, opts...)
	m.limiter = ratelimit.NewTokenBucket()
	return m, store
}

// startServer serves the module's app on a random local port and returns
// the WebSocket URL.
func startServer(t *testing.T, m *APIModule) string {
	t.Helper()

	app := m.newApp()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	return "ws://" + ln.Addr().String() + "/ws"
}

// inbound is one decoded frame received by a test client.
type inbound struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// wsClient is a test WebSocket client. A reader goroutine feeds frames so
// waiting for an absent frame does not poison the connection with a read
// deadline.
type wsClient struct {
	t            *testing.T
	conn         *websocket.Conn
	frames       chan inbound
	connectionID string
}

// dial connects as name and consumes the connected frame.
func dial(t *testing.T, url, name string) *wsClient {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=token-"+name, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	c := &wsClient{t: t, conn: conn, frames: make(chan inbound, 64)}
	go c.readLoop()

	data := c.expect(relay.TypeConnected)
	c.connectionID, _ = data["connectionId"].(string)
	require.NotEmpty(t, c.connectionID)
	require.Equal(t, name, data["username"])
	return c
}

func (c *wsClient) readLoop() {
	defer close(c.frames)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame inbound
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		c.frames <- frame
	}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	frame := map[string]any{"type": msgType}
	if data != nil {
		frame["data"] = data
	}
	require.NoError(c.t, c.conn.WriteJSON(frame))
}

func (c *wsClient) sendRaw(raw string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, []byte(raw)))
}

// expect skips frames until one of msgType arrives and returns its data.
func (c *wsClient) expect(msgType string) map[string]any {
	c.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				c.t.Fatalf("connection closed while waiting for %s", msgType)
			}
			if frame.Type == msgType {
				return frame.Data
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

// expectError skips frames until an error frame arrives and returns its code.
func (c *wsClient) expectError() string {
	c.t.Helper()
	data := c.expect(relay.TypeError)
	code, _ := data["code"].(string)
	return code
}

// expectNone fails if a frame of msgType arrives within the wait.
func (c *wsClient) expectNone(msgType string, wait time.Duration) {
	c.t.Helper()
	timeout := time.After(wait)
	for {
		select {
		case frame, ok := <-c.frames:
			if !ok {
				return
			}
			if frame.Type == msgType {
				c.t.Fatalf("unexpected %s frame: %v", msgType, frame.Data)
			}
		case <-timeout:
			return
		}
	}
}

// join joins roomID and returns the connection ids of the other members.
func (c *wsClient) join(roomID string) []string {
	c.t.Helper()
	c.send(relay.TypeJoinRoom, map[string]any{"roomId": roomID})
	data := c.expect(relay.TypeRoomJoined)
	participants, _ := data["participants"].([]any)
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		entry, _ := p.(map[string]any)
		id, _ := entry["connectionId"].(string)
		ids = append(ids, id)
	}
	return ids
}
