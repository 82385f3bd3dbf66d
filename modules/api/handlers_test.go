package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type discardOutbox struct{}

func (discardOutbox) Deliver(_ []byte) bool { return true }

func doRequest(t *testing.T, app *fiber.App, method, target, token, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestHealthHandler(t *testing.T) {
	m, _ := newTestModule(t)
	m.hub.Register("c1", meeting.Identity{UserID: "u1", Username: "alice"}, discardOutbox{})

	status, body := doRequest(t, m.newApp(), "GET", "/health", "", "")
	require.Equal(t, http.StatusOK, status)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.EqualValues(t, 1, resp.Details["connected_clients"])
}

func TestCreateMeeting(t *testing.T) {
	tests := []struct {
		name           string
		token          string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "created",
			token:          "token-alice",
			body:           `{"roomId":"standup","title":"Daily standup"}`,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing title",
			token:          "token-alice",
			body:           `{"roomId":"standup"}`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "validation_error",
		},
		{
			name:           "bad body",
			token:          "token-alice",
			body:           `{"roomId":`,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_request",
		},
		{
			name:           "no token",
			body:           `{"roomId":"standup","title":"Daily standup"}`,
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestModule(t)
			status, body := doRequest(t, m.newApp(), "POST", "/api/v1/meetings", tt.token, tt.body)
			require.Equal(t, tt.expectedStatus, status, string(body))

			if tt.expectedError != "" {
				var resp ErrorResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, tt.expectedError, resp.Error)
				return
			}

			var resp meetings.MeetingResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, "standup", resp.RoomID)
			assert.Equal(t, "id-alice", resp.HostID)
			assert.Equal(t, "alice", resp.HostName)
			assert.Contains(t, store.meetings, "standup")
		})
	}
}

func TestCreateMeeting_Conflict(t *testing.T) {
	m, _ := newTestModule(t)
	app := m.newApp()

	body := `{"roomId":"standup","title":"Daily standup"}`
	status, _ := doRequest(t, app, "POST", "/api/v1/meetings", "token-alice", body)
	require.Equal(t, http.StatusCreated, status)

	status, data := doRequest(t, app, "POST", "/api/v1/meetings", "token-bob", body)
	require.Equal(t, http.StatusConflict, status)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "already_exists", resp.Error)
}

func TestGetMeeting(t *testing.T) {
	m, store := newTestModule(t)
	app := m.newApp()

	status, _ := doRequest(t, app, "GET", "/api/v1/meetings/missing", "token-alice", "")
	assert.Equal(t, http.StatusNotFound, status)

	store.meetings["standup"] = meetings.MeetingResponse{RoomID: "standup", Title: "Daily", HostID: "id-alice", IsActive: true}
	m.hub.Register("c1", meeting.Identity{UserID: "id-alice", Username: "alice"}, discardOutbox{})
	m.hub.Register("c2", meeting.Identity{UserID: "id-bob", Username: "bob"}, discardOutbox{})
	_, err := m.hub.Join("c1", "standup")
	require.NoError(t, err)
	_, err = m.hub.Join("c2", "standup")
	require.NoError(t, err)
	_, err = m.hub.AcquireAILock("c2")
	require.NoError(t, err)

	status, body := doRequest(t, app, "GET", "/api/v1/meetings/standup", "token-alice", "")
	require.Equal(t, http.StatusOK, status)

	var resp MeetingDetailResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "Daily", resp.Title)
	assert.Equal(t, 2, resp.LiveMembers)
	assert.True(t, resp.Lock.Held)
	assert.Equal(t, "bob", resp.Lock.HolderUsername)
}

func TestGetParticipants(t *testing.T) {
	m, _ := newTestModule(t)
	app := m.newApp()

	status, body := doRequest(t, app, "GET", "/api/v1/meetings/empty/participants", "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"participants":[]`)

	m.hub.Register("c1", meeting.Identity{UserID: "id-alice", Username: "alice"}, discardOutbox{})
	_, err := m.hub.Join("c1", "standup")
	require.NoError(t, err)

	status, body = doRequest(t, app, "GET", "/api/v1/meetings/standup/participants", "token-alice", "")
	require.Equal(t, http.StatusOK, status)

	var resp ParticipantsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.Participants, 1)
	assert.Equal(t, "c1", resp.Participants[0].ConnectionID)
	assert.Equal(t, "alice", resp.Participants[0].Username)
}

func TestGetSessions(t *testing.T) {
	m, store := newTestModule(t)
	app := m.newApp()

	status, _ := doRequest(t, app, "GET", "/api/v1/meetings/missing/sessions", "token-alice", "")
	assert.Equal(t, http.StatusNotFound, status)

	store.meetings["standup"] = meetings.MeetingResponse{RoomID: "standup"}
	store.sessions["standup"] = []meetings.SessionResponse{
		{ConnectionID: "c1", UserID: "id-alice", Username: "alice"},
	}

	status, body := doRequest(t, app, "GET", "/api/v1/meetings/standup/sessions", "token-alice", "")
	require.Equal(t, http.StatusOK, status)

	var resp meetings.SessionsResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "alice", resp.Sessions[0].Username)
}

func TestEndMeeting(t *testing.T) {
	m, store := newTestModule(t)
	app := m.newApp()
	store.meetings["standup"] = meetings.MeetingResponse{RoomID: "standup", HostID: "id-alice", IsActive: true}

	status, body := doRequest(t, app, "POST", "/api/v1/meetings/standup/end", "token-bob", "")
	require.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(body), "forbidden")

	status, body = doRequest(t, app, "POST", "/api/v1/meetings/standup/end", "token-alice", "")
	require.Equal(t, http.StatusOK, status)

	var resp meetings.MeetingResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.False(t, resp.IsActive)
}

func TestScheduledMeetings(t *testing.T) {
	m, store := newTestModule(t)
	app := m.newApp()

	status, body := doRequest(t, app, "GET", "/api/v1/meetings/scheduled", "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"meetings":[]`)

	status, _ = doRequest(t, app, "POST", "/api/v1/meetings/schedule", "token-alice",
		`{"title":"Planning","scheduledStart":"2001-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	status, body = doRequest(t, app, "POST", "/api/v1/meetings/schedule", "token-alice",
		`{"title":"Planning","scheduledStart":"`+start+`"}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var created meetings.MeetingResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.True(t, created.IsScheduled)
	assert.Equal(t, "id-alice", created.HostID)
	assert.Contains(t, store.meetings, created.RoomID)

	status, body = doRequest(t, app, "GET", "/api/v1/meetings/scheduled", "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	var list meetings.ScheduledResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, created.RoomID, list.Meetings[0].RoomID)

	// Another user cannot cancel it.
	status, _ = doRequest(t, app, "DELETE", "/api/v1/meetings/scheduled/"+created.RoomID, "token-bob", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = doRequest(t, app, "DELETE", "/api/v1/meetings/scheduled/"+created.RoomID, "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"cancelled":true`)
	assert.NotContains(t, store.meetings, created.RoomID)
}

func TestMeetingHistory(t *testing.T) {
	m, store := newTestModule(t)
	app := m.newApp()
	store.meetings["standup"] = meetings.MeetingResponse{RoomID: "standup", Title: "Daily", HostID: "id-alice"}

	status, body := doRequest(t, app, "GET", "/api/v1/meetings/user/history?page=2&limit=5", "token-alice", "")
	require.Equal(t, http.StatusOK, status, string(body))

	var resp meetings.HistoryResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Len(t, resp.Meetings, 1)
	assert.True(t, resp.Meetings[0].IsHost)

	status, body = doRequest(t, app, "GET", "/api/v1/meetings/user/history", "token-bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"meetings":[]`)

	calls := store.historyCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, meetings.HistoryRequest{UserID: "id-alice", Page: 2, Limit: 5}, calls[0])
	assert.Equal(t, meetings.HistoryRequest{UserID: "id-bob", Page: 1, Limit: 10}, calls[1])

	status, _ = doRequest(t, app, "GET", "/api/v1/meetings/user/history", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestGetICEServers(t *testing.T) {
	m, _ := newTestModule(t)

	status, body := doRequest(t, m.newApp(), "GET", "/api/v1/ice-servers", "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "stun:stun.l.google.com:19302")

	m.ice = &fakeICE{err: errors.New("cache unavailable")}
	status, body = doRequest(t, m.newApp(), "GET", "/api/v1/ice-servers", "token-alice", "")
	require.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "ice_unavailable")
}

func TestListRooms(t *testing.T) {
	m, _ := newTestModule(t)
	app := m.newApp()

	status, body := doRequest(t, app, "GET", "/api/v1/rooms", "token-alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"rooms":[]`)

	m.hub.Register("c1", meeting.Identity{UserID: "id-alice", Username: "alice"}, discardOutbox{})
	_, err := m.hub.Join("c1", "standup")
	require.NoError(t, err)

	status, body = doRequest(t, app, "GET", "/api/v1/rooms", "token-alice", "")
	require.Equal(t, http.StatusOK, status)

	var resp RoomListResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "standup", resp.Rooms[0].RoomID)
	assert.Equal(t, 1, resp.Rooms[0].Members)
}

func TestStoreDownHidesInternalError(t *testing.T) {
	m, store := newTestModule(t)
	store.failAll = errStoreDown

	status, body := doRequest(t, m.newApp(), "POST", "/api/v1/meetings", "token-alice", `{"title":"Daily"}`)
	require.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, string(body), "server_error")
	assert.NotContains(t, string(body), errStoreDown.Error())
}

func TestRESTRateLimit(t *testing.T) {
	m, _ := newTestModule(t)
	m.config.RESTLimit = 2
	app := m.newApp()

	for i := 0; i < 2; i++ {
		status, _ := doRequest(t, app, "GET", "/api/v1/rooms", "token-alice", "")
		require.Equal(t, http.StatusOK, status)
	}

	status, body := doRequest(t, app, "GET", "/api/v1/rooms", "token-alice", "")
	require.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body), "rate_limited")

	// Health is outside the limited group.
	status, _ = doRequest(t, app, "GET", "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
}
