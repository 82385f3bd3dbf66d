package api

import (
	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint; authentication happens before the upgrade.
	app.Use("/ws", WebSocketAuthMiddleware(m.auth))
	app.Get("/ws", websocket.New(m.handleWebSocket, websocket.Config{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))

	// REST API v1
	api := app.Group("/api/v1", m.restLimiter(), AuthMiddleware(m.auth))

	api.Get("/rooms", m.listRooms)
	api.Post("/meetings", m.createMeeting)
	// Fixed paths go before /meetings/:roomId.
	api.Post("/meetings/schedule", m.scheduleMeeting)
	api.Get("/meetings/scheduled", m.listScheduled)
	api.Delete("/meetings/scheduled/:roomId", m.cancelScheduled)
	api.Get("/meetings/user/history", m.getHistory)
	api.Get("/meetings/:roomId", m.getMeeting)
	api.Get("/meetings/:roomId/participants", m.getParticipants)
	api.Get("/meetings/:roomId/sessions", m.getSessions)
	api.Post("/meetings/:roomId/end", m.endMeeting)
	api.Get("/ice-servers", m.getICEServers)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
			"rooms":             m.hub.RoomCount(),
		},
	})
}

func (m *APIModule) storeError(c *fiber.Ctx, err error) error {
	status, code := restStatus(err)
	message := err.Error()
	if status == fiber.StatusInternalServerError {
		m.logger.Error("Meeting store call failed", "path", c.Path(), "error", err)
		message = "Meeting store unavailable"
	}
	return c.Status(status).JSON(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms := m.hub.Rooms()
	if rooms == nil {
		rooms = []meeting.RoomSummary{}
	}
	return c.JSON(RoomListResponse{
		Rooms: rooms,
		Total: len(rooms),
	})
}

// createMeeting handles POST /api/v1/meetings.
func (m *APIModule) createMeeting(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	var req CreateMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	resp, err := m.meetings.Create(c.UserContext(), meetings.CreateMeetingRequest{
		RoomID:          req.RoomID,
		Title:           req.Title,
		MaxParticipants: req.MaxParticipants,
		HostID:          identity.UserID,
		HostName:        identity.Username,
	})
	if err != nil {
		return m.storeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// scheduleMeeting handles POST /api/v1/meetings/schedule.
func (m *APIModule) scheduleMeeting(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	var req ScheduleMeetingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	resp, err := m.meetings.Schedule(c.UserContext(), meetings.ScheduleMeetingRequest{
		Title:           req.Title,
		MaxParticipants: req.MaxParticipants,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
		HostID:          identity.UserID,
		HostName:        identity.Username,
	})
	if err != nil {
		return m.storeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// listScheduled handles GET /api/v1/meetings/scheduled.
func (m *APIModule) listScheduled(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	resp, err := m.meetings.Scheduled(c.UserContext(), identity.UserID)
	if err != nil {
		return m.storeError(c, err)
	}
	if resp.Meetings == nil {
		resp.Meetings = []meetings.MeetingResponse{}
	}
	return c.JSON(resp)
}

// cancelScheduled handles DELETE /api/v1/meetings/scheduled/:roomId.
func (m *APIModule) cancelScheduled(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	roomID := c.Params("roomId")
	if err := m.meetings.CancelScheduled(c.UserContext(), roomID, identity.UserID); err != nil {
		return m.storeError(c, err)
	}

	m.logger.Info("Scheduled meeting cancelled via API", "roomID", roomID, "userID", identity.UserID)
	return c.JSON(meetings.CancelScheduledResponse{RoomID: roomID, Cancelled: true})
}

// getHistory handles GET /api/v1/meetings/user/history.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	resp, err := m.meetings.History(c.UserContext(), meetings.HistoryRequest{
		UserID: identity.UserID,
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 10),
	})
	if err != nil {
		return m.storeError(c, err)
	}
	if resp.Meetings == nil {
		resp.Meetings = []meetings.HistoryEntry{}
	}
	return c.JSON(resp)
}

// getMeeting handles GET /api/v1/meetings/:roomId.
func (m *APIModule) getMeeting(c *fiber.Ctx) error {
	roomID := c.Params("roomId")

	resp, err := m.meetings.Get(c.UserContext(), roomID)
	if err != nil {
		return m.storeError(c, err)
	}

	return c.JSON(MeetingDetailResponse{
		MeetingResponse: resp,
		LiveMembers:     m.hub.RoomMemberCount(roomID),
		Lock:            m.hub.LockState(roomID),
	})
}

// getParticipants handles GET /api/v1/meetings/:roomId/participants.
func (m *APIModule) getParticipants(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	participants := m.hub.Members(roomID)
	if participants == nil {
		participants = []meeting.Participant{}
	}

	return c.JSON(ParticipantsResponse{
		RoomID:       roomID,
		Participants: participants,
		Total:        len(participants),
		Lock:         m.hub.LockState(roomID),
	})
}

// getSessions handles GET /api/v1/meetings/:roomId/sessions.
func (m *APIModule) getSessions(c *fiber.Ctx) error {
	resp, err := m.meetings.Sessions(c.UserContext(), c.Params("roomId"))
	if err != nil {
		return m.storeError(c, err)
	}
	return c.JSON(resp)
}

// endMeeting handles POST /api/v1/meetings/:roomId/end.
func (m *APIModule) endMeeting(c *fiber.Ctx) error {
	identity, ok := identityFrom(c)
	if !ok {
		return unauthorized(c, "Identity not found")
	}

	resp, err := m.meetings.End(c.UserContext(), c.Params("roomId"), identity.UserID)
	if err != nil {
		return m.storeError(c, err)
	}

	m.logger.Info("Meeting ended via API", "roomID", resp.RoomID, "userID", identity.UserID)
	return c.JSON(resp)
}

// getICEServers handles GET /api/v1/ice-servers.
func (m *APIModule) getICEServers(c *fiber.Ctx) error {
	identity, _ := identityFrom(c)

	resp, err := m.ice.Servers(c.UserContext(), identity.UserID)
	if err != nil {
		m.logger.Error("Failed to get ICE servers", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "ice_unavailable",
			Message: "ICE servers unavailable",
		})
	}
	return c.JSON(resp)
}
