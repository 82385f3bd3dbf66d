package api

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/example/meeting-relay/modules/meetings"
	"github.com/example/meeting-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const (
	outboxSize = 256
	writeWait  = 10 * time.Second
)

// session is one WebSocket connection. It is the relay Outbox for that
// connection: frames are queued and written by a single writer goroutine.
type session struct {
	id       string
	identity meeting.Identity
	conn     *websocket.Conn
	module   *APIModule
	out      chan []byte
	done     chan struct{}
	closed   sync.Once
	wg       sync.WaitGroup
}

var _ relay.Outbox = (*session)(nil)

func newSession(m *APIModule, conn *websocket.Conn, identity meeting.Identity) *session {
	return &session{
		id:       uuid.New().String(),
		identity: identity,
		conn:     conn,
		module:   m,
		out:      make(chan []byte, outboxSize),
		done:     make(chan struct{}),
	}
}

// Deliver queues a frame without blocking. A full queue drops the frame;
// the caller decides whether that is worth logging.
func (s *session) Deliver(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

func (s *session) writePump() {
	defer s.wg.Done()
	for {
		select {
		case frame := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				s.module.logger.Debug("Write failed", "connectionID", s.id, "error", err)
				return
			}
		case <-s.done:
			return
		}
	}
}

// send queues a frame for this connection only. It works whether or not the
// connection is currently registered.
func (s *session) send(msgType string, payload any) {
	frame, err := relay.EncodeFrame(msgType, payload)
	if err != nil {
		s.module.logger.Error("Failed to encode frame", "type", msgType, "error", err)
		return
	}
	if !s.Deliver(frame) {
		s.module.logger.Warn("Outbox full, dropping reply", "connectionID", s.id, "type", msgType)
	}
}

func (s *session) sendError(code, message string) {
	s.send(relay.TypeError, relay.ErrorResponse{Code: code, Message: message})
}

// reply reports err to the client unless it is one of the silent kinds.
func (s *session) reply(msgType string, err error) {
	code, silent := wireCode(err)
	if silent {
		if errors.Is(err, relay.ErrCrossRoomTarget) {
			s.module.logger.Warn("Dropped cross-room signal", "connectionID", s.id, "type", msgType)
		} else {
			s.module.logger.Debug("Dropped signal for stale target", "connectionID", s.id, "type", msgType)
		}
		return
	}
	message := err.Error()
	if code == codeInternal {
		s.module.logger.Error("Message handling failed", "connectionID", s.id, "type", msgType, "error", err)
		message = "internal error"
	}
	s.sendError(code, message)
}

func (s *session) close() {
	s.closed.Do(func() {
		s.module.hub.Purge(s.id)
		if s.module.limiter != nil {
			if err := s.module.limiter.Reset(context.Background(), s.limitKey()); err != nil {
				s.module.logger.Debug("Failed to reset message limit", "connectionID", s.id, "error", err)
			}
		}
		close(s.done)
	})
	s.wg.Wait()
}

func (s *session) limitKey() string {
	return "ws:" + s.id
}

// allow applies the per-connection message limit. Limiter failures let the
// message through.
func (s *session) allow() bool {
	m := s.module
	if m.limiter == nil || m.config.MessageLimit <= 0 {
		return true
	}
	result, err := m.limiter.Allow(context.Background(), s.limitKey(), m.config.MessageLimit, m.config.MessageWindow)
	if err != nil {
		m.logger.Warn("Message limiter failed, allowing", "connectionID", s.id, "error", err)
		return true
	}
	return result.Allowed
}

// handleWebSocket handles WebSocket connections at /ws.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	identity, ok := c.Locals(UserContextKey).(meeting.Identity)
	if !ok {
		m.logger.Error("WebSocket without identity")
		return
	}

	s := newSession(m, c, identity)
	c.SetReadLimit(m.config.MaxMessageSize)
	m.hub.Register(s.id, identity, s)

	s.wg.Add(1)
	go s.writePump()
	defer s.close()

	m.logger.Info("WebSocket client connected",
		"connectionID", s.id,
		"userID", identity.UserID,
		"username", identity.Username)

	s.send(relay.TypeConnected, relay.ConnectedResponse{
		ConnectionID: s.id,
		UserID:       identity.UserID,
		Username:     identity.Username,
	})

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "connectionID", s.id, "error", err)
			}
			break
		}

		if !s.allow() {
			s.sendError(codeRateLimited, "Rate limit exceeded, please slow down")
			continue
		}

		if !s.dispatchSafely(msgBytes) {
			break
		}
	}

	m.logger.Info("WebSocket client disconnected", "connectionID", s.id, "username", identity.Username)
}

// dispatchSafely handles one message. A panic purges the connection and
// reports false so the read loop ends.
func (s *session) dispatchSafely(msgBytes []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.module.logger.Error("Recovered from panic in message handler",
				"connectionID", s.id,
				"panic", r)
			s.module.hub.Purge(s.id)
			ok = false
		}
	}()
	s.dispatch(msgBytes)
	return true
}

func (s *session) dispatch(msgBytes []byte) {
	var env relay.Envelope
	if err := json.Unmarshal(msgBytes, &env); err != nil || env.Type == "" {
		s.sendError(codeInvalidMessage, "Invalid message format")
		return
	}

	switch env.Type {
	case relay.TypeJoinRoom:
		s.handleJoin(env.Data)
	case relay.TypeLeaveRoom:
		s.handleLeave()
	case relay.TypeOffer, relay.TypeAnswer, relay.TypeICECandidate:
		s.handleSignal(env.Type, env.Data)
	case relay.TypeSendChatMessage:
		s.handleChat(env.Data)
	case relay.TypeAIBotLock:
		s.handleLock()
	case relay.TypeAIBotUnlock:
		s.handleUnlock()
	case relay.TypeAIBotResult:
		s.handleAIResult(env.Data)
	default:
		if !relay.IsRoomEvent(env.Type) {
			s.sendError(codeUnknownType, "Unknown message type: "+env.Type)
			return
		}
		if _, err := s.module.hub.RelayRoomEvent(s.id, env.Type, env.Data); err != nil {
			s.reply(env.Type, err)
		}
	}
}

func (s *session) handleJoin(data json.RawMessage) {
	hub := s.module.hub

	var req relay.JoinRoomRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.reply(relay.TypeJoinRoom, relay.ErrInvalidJoin)
			return
		}
	}
	if err := relay.ValidateRoomID(req.RoomID); err != nil {
		s.reply(relay.TypeJoinRoom, err)
		return
	}

	// A connection that left a room was purged; bring it back.
	if !hub.IsRegistered(s.id) {
		hub.Register(s.id, s.identity, s)
	}

	current, _ := hub.RoomOf(s.id)
	ctx, cancel := context.WithTimeout(context.Background(), s.module.config.AdmitTimeout)
	defer cancel()
	admit, err := s.module.meetings.Admit(ctx, meetings.AdmitRequest{
		RoomID:         req.RoomID,
		UserID:         s.identity.UserID,
		Username:       s.identity.Username,
		CurrentMembers: hub.RoomMemberCount(req.RoomID),
		AlreadyMember:  current == req.RoomID,
	})
	if err != nil {
		if code, _ := wireCode(err); code == codeInternal {
			s.module.logger.Error("Admission check failed", "roomID", req.RoomID, "error", err)
			s.sendError(codeMeetingUnavailable, "Meeting is not available")
			return
		}
		s.reply(relay.TypeJoinRoom, err)
		return
	}

	// The count sent to Admit may be stale by now; the hub re-checks the
	// meeting's capacity under its own lock.
	others, err := hub.JoinWithLimit(s.id, req.RoomID, admit.MaxParticipants)
	if err != nil {
		s.reply(relay.TypeJoinRoom, err)
		return
	}
	if others == nil {
		others = []meeting.Participant{}
	}
	s.send(relay.TypeRoomJoined, relay.RoomJoinedResponse{
		RoomID:       req.RoomID,
		Participants: others,
	})
}

func (s *session) handleLeave() {
	roomID, _ := s.module.hub.Purge(s.id)
	s.send(relay.TypeRoomLeft, relay.RoomLeftResponse{RoomID: roomID})
}

func (s *session) handleSignal(msgType string, data json.RawMessage) {
	sig, err := relay.ParseSignal(relay.SignalType(msgType), data)
	if err == nil {
		err = s.module.hub.Relay(s.id, sig)
	}
	if err != nil {
		s.reply(msgType, err)
	}
}

func (s *session) handleChat(data json.RawMessage) {
	var msg relay.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(codeInvalidMessage, "Invalid chat payload")
		return
	}
	if err := relay.ValidateMessage(msg.Message); err != nil {
		s.reply(relay.TypeSendChatMessage, err)
		return
	}
	if _, _, err := s.module.hub.SendChat(s.id, msg); err != nil {
		s.reply(relay.TypeSendChatMessage, err)
	}
}

func (s *session) handleLock() {
	state, err := s.module.hub.AcquireAILock(s.id)
	if err != nil {
		var contention *relay.LockContentionError
		if errors.As(err, &contention) {
			s.send(relay.TypeAIBotLockRejected, relay.LockRejectedResponse{
				HolderConnectionID: contention.Holder.HolderConnectionID,
				HolderUsername:     contention.Holder.HolderUsername,
				Reason:             contention.Error(),
			})
			return
		}
		s.reply(relay.TypeAIBotLock, err)
		return
	}
	s.send(relay.TypeAIBotLocked, relay.LockNotice{
		HolderConnectionID: state.HolderConnectionID,
		HolderUsername:     state.HolderUsername,
	})
}

func (s *session) handleUnlock() {
	hub := s.module.hub
	var prev meeting.LockState
	if roomID, ok := hub.RoomOf(s.id); ok {
		prev = hub.LockState(roomID)
	}

	if _, err := hub.ReleaseAILock(s.id); err != nil {
		s.reply(relay.TypeAIBotUnlock, err)
		return
	}
	if prev.Held {
		s.send(relay.TypeAIBotUnlocked, relay.LockNotice{
			HolderConnectionID: prev.HolderConnectionID,
			HolderUsername:     prev.HolderUsername,
		})
	}
}

func (s *session) handleAIResult(data json.RawMessage) {
	var req relay.AIResultRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendError(codeInvalidMessage, "Invalid ai-bot-result payload")
		return
	}
	if _, err := s.module.hub.PublishAIResult(s.id, req.Result); err != nil {
		s.reply(relay.TypeAIBotResult, err)
	}
}
