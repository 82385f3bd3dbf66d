package relay

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/meeting-relay/domain/meeting"
	"github.com/go-monolith/mono/pkg/types"
)

// Outbox accepts encoded frames for one connection. Deliver must not block;
// it reports false when the frame was dropped.
type Outbox interface {
	Deliver(frame []byte) bool
}

// Client is a registered connection.
type Client struct {
	ID       string
	Identity meeting.Identity
	RoomID   string
	JoinedAt time.Time
	outbox   Outbox
}

type room struct {
	id      string
	members []string // connection ids in join order
	lock    meeting.LockState
}

// ChangeKind classifies a membership or lock change.
type ChangeKind int

const (
	ChangeJoined ChangeKind = iota + 1
	ChangeLeft
	ChangeLock
)

// Change describes a state transition that happened inside the hub.
// Observers receive changes after the hub lock is released.
type Change struct {
	Kind         ChangeKind
	RoomID       string
	ConnectionID string
	Identity     meeting.Identity
	Disconnected bool
	Lock         meeting.LockState
	At           time.Time
}

// Observer is notified of hub changes.
type Observer func(Change)

// Hub owns the connection registry, the room directory and the per-room
// AI-bot locks. Every mutation happens under one mutex.
type Hub struct {
	clients  map[string]*Client // connectionID -> Client
	rooms    map[string]*room   // roomID -> room
	config   Config
	logger   types.Logger
	observer Observer
	now      func() time.Time
	mu       sync.Mutex
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger, opts ...Option) *Hub {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]*room),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// SetObserver installs the change observer.
func (h *Hub) SetObserver(o Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observer = o
}

// Config returns the hub configuration.
func (h *Hub) Config() Config {
	return h.config
}

// Register records an authenticated connection. Registering an id that is
// already present replaces its identity and outbox and keeps its room.
func (h *Hub) Register(connectionID string, identity meeting.Identity, outbox Outbox) {
	h.mu.Lock()
	if c, ok := h.clients[connectionID]; ok {
		c.Identity = identity
		c.outbox = outbox
	} else {
		h.clients[connectionID] = &Client{
			ID:       connectionID,
			Identity: identity,
			outbox:   outbox,
		}
	}
	h.mu.Unlock()

	h.logger.Debug("Connection registered",
		"connectionID", connectionID,
		"userID", identity.UserID,
		"username", identity.Username)
}

// IsRegistered reports whether the connection is in the registry.
func (h *Hub) IsRegistered(connectionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.clients[connectionID]
	return ok
}

// LookupUsername returns the display name of a registered connection.
func (h *Hub) LookupUsername(connectionID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connectionID]
	if !ok {
		return "", false
	}
	return c.Identity.Username, true
}

// RoomOf returns the room a connection is bound to.
func (h *Hub) RoomOf(connectionID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connectionID]
	if !ok || c.RoomID == "" {
		return "", false
	}
	return c.RoomID, true
}

// BindToRoom binds a connection to a room without announcing it. A binding
// to a different room first departs the old one.
func (h *Hub) BindToRoom(connectionID, roomID string) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}

	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return ErrUnknownConnection
	}
	if c.RoomID == roomID {
		h.mu.Unlock()
		return nil
	}
	if h.fullLocked(roomID, 0) {
		h.mu.Unlock()
		return ErrRoomFull
	}
	changes := h.bindLocked(c, roomID)
	h.mu.Unlock()

	h.notify(changes)
	return nil
}

// Join adds the connection to roomID and returns the other members in join
// order. Existing members receive user-joined. Re-joining the current room
// returns the other members without announcing anything.
func (h *Hub) Join(connectionID, roomID string) ([]meeting.Participant, error) {
	return h.JoinWithLimit(connectionID, roomID, 0)
}

// JoinWithLimit is Join with a per-room capacity on top of MaxRoomSize.
// A limit of zero or less leaves only MaxRoomSize in force.
func (h *Hub) JoinWithLimit(connectionID, roomID string, limit int) ([]meeting.Participant, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return nil, err
	}

	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return nil, ErrUnknownConnection
	}
	if c.RoomID == roomID {
		others := h.othersLocked(h.rooms[roomID], connectionID)
		h.mu.Unlock()
		return others, nil
	}
	if h.fullLocked(roomID, limit) {
		h.mu.Unlock()
		return nil, ErrRoomFull
	}

	changes := h.bindLocked(c, roomID)
	r := h.rooms[roomID]
	username := c.Identity.Username
	others := h.othersLocked(r, connectionID)
	h.broadcastLocked(r, TypeUserJoined, meeting.Participant{
		ConnectionID: connectionID,
		Username:     username,
	}, connectionID)
	changes = append(changes, Change{
		Kind:         ChangeJoined,
		RoomID:       roomID,
		ConnectionID: connectionID,
		Identity:     c.Identity,
		At:           c.JoinedAt,
	})
	h.mu.Unlock()

	h.notify(changes)
	h.logger.Info("Connection joined room",
		"connectionID", connectionID,
		"username", username,
		"roomID", roomID,
		"others", len(others))
	return others, nil
}

// Leave removes the connection from its room and announces user-left to the
// remaining members. It returns the room that was left.
func (h *Hub) Leave(connectionID string) (string, bool) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok || c.RoomID == "" {
		h.mu.Unlock()
		return "", false
	}
	roomID := c.RoomID
	changes := h.departLocked(c, false)
	h.mu.Unlock()

	h.notify(changes)
	h.logger.Info("Connection left room", "connectionID", connectionID, "roomID", roomID)
	return roomID, true
}

// Purge removes every trace of a connection. It returns the room the
// connection was in, if any, and whether anything was removed. A second
// call is a no-op.
func (h *Hub) Purge(connectionID string) (string, bool) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return "", false
	}
	roomID := c.RoomID
	var changes []Change
	if roomID != "" {
		changes = h.departLocked(c, true)
	}
	delete(h.clients, connectionID)
	h.mu.Unlock()

	h.notify(changes)
	h.logger.Debug("Connection purged", "connectionID", connectionID, "roomID", roomID)
	return roomID, true
}

// Broadcast delivers an event to every member of roomID except excludeID and
// returns the number of deliveries. Unknown rooms are a no-op.
func (h *Hub) Broadcast(roomID, msgType string, payload any, excludeID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return 0
	}
	return h.broadcastLocked(r, msgType, payload, excludeID)
}

// Send delivers an event to a single registered connection.
func (h *Hub) Send(connectionID, msgType string, payload any) bool {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to encode frame", "type", msgType, "error", err)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connectionID]
	if !ok {
		return false
	}
	return h.deliverLocked(c, frame)
}

// Members returns the members of roomID in join order.
func (h *Hub) Members(roomID string) []meeting.Participant {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.othersLocked(h.rooms[roomID], "")
}

// RoomMemberCount returns the number of members in a room.
func (h *Hub) RoomMemberCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return len(r.members)
	}
	return 0
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Rooms returns a summary of every live room, ordered by room id.
func (h *Hub) Rooms() []meeting.RoomSummary {
	h.mu.Lock()
	defer h.mu.Unlock()
	summaries := make([]meeting.RoomSummary, 0, len(h.rooms))
	for _, r := range h.rooms {
		summaries = append(summaries, meeting.RoomSummary{
			RoomID:  r.id,
			Members: len(r.members),
			Lock:    r.lock,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RoomID < summaries[j].RoomID
	})
	return summaries
}

func (h *Hub) fullLocked(roomID string, limit int) bool {
	capacity := h.config.MaxRoomSize
	if limit > 0 && (capacity <= 0 || limit < capacity) {
		capacity = limit
	}
	if capacity <= 0 {
		return false
	}
	r, ok := h.rooms[roomID]
	return ok && len(r.members) >= capacity
}

// bindLocked moves c into roomID, departing any previous room.
func (h *Hub) bindLocked(c *Client, roomID string) []Change {
	var changes []Change
	if c.RoomID != "" && c.RoomID != roomID {
		changes = h.departLocked(c, false)
	}

	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{id: roomID}
		h.rooms[roomID] = r
	}
	if !slices.Contains(r.members, c.ID) {
		r.members = append(r.members, c.ID)
	}
	c.RoomID = roomID
	c.JoinedAt = h.now()
	return changes
}

// departLocked removes c from its room, announces user-left, applies the
// lock departure policy and drops the room once it is empty.
func (h *Hub) departLocked(c *Client, disconnected bool) []Change {
	r, ok := h.rooms[c.RoomID]
	roomID := c.RoomID
	c.RoomID = ""
	if !ok {
		return nil
	}

	r.members = slices.DeleteFunc(r.members, func(id string) bool { return id == c.ID })
	now := h.now()
	changes := []Change{{
		Kind:         ChangeLeft,
		RoomID:       roomID,
		ConnectionID: c.ID,
		Identity:     c.Identity,
		Disconnected: disconnected,
		At:           now,
	}}

	h.broadcastLocked(r, TypeUserLeft, meeting.Participant{
		ConnectionID: c.ID,
		Username:     c.Identity.Username,
	}, c.ID)

	if r.lock.Held && r.lock.HolderConnectionID == c.ID {
		if h.config.ReleaseLockOnLeave {
			notice := LockNotice{HolderConnectionID: c.ID, HolderUsername: r.lock.HolderUsername}
			h.logger.Warn("AI lock released on holder departure",
				"connectionID", c.ID,
				"roomID", roomID,
				"disconnected", disconnected)
			r.lock = meeting.LockState{}
			h.broadcastLocked(r, TypeAIBotUnlocked, notice, c.ID)
			changes = append(changes, Change{Kind: ChangeLock, RoomID: roomID, ConnectionID: c.ID, Identity: c.Identity, At: now})
		} else {
			h.logger.Warn("AI lock holder left without releasing",
				"connectionID", c.ID,
				"roomID", roomID)
		}
	}

	if len(r.members) == 0 {
		delete(h.rooms, roomID)
	}
	return changes
}

// othersLocked lists the members of r except excludeID in join order.
func (h *Hub) othersLocked(r *room, excludeID string) []meeting.Participant {
	participants := make([]meeting.Participant, 0)
	if r == nil {
		return participants
	}
	for _, id := range r.members {
		if id == excludeID {
			continue
		}
		if c, ok := h.clients[id]; ok {
			participants = append(participants, meeting.Participant{
				ConnectionID: id,
				Username:     c.Identity.Username,
			})
		}
	}
	return participants
}

func (h *Hub) broadcastLocked(r *room, msgType string, payload any, excludeID string) int {
	frame, err := EncodeFrame(msgType, payload)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "type", msgType, "roomID", r.id, "error", err)
		return 0
	}

	delivered := 0
	for _, id := range r.members {
		if id == excludeID {
			continue
		}
		c, ok := h.clients[id]
		if !ok {
			continue
		}
		if h.deliverLocked(c, frame) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) deliverLocked(c *Client, frame []byte) bool {
	if c.outbox == nil {
		return false
	}
	if !c.outbox.Deliver(frame) {
		h.logger.Warn("Dropped frame for slow connection", "connectionID", c.ID)
		return false
	}
	return true
}

func (h *Hub) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	h.mu.Lock()
	observer := h.observer
	h.mu.Unlock()
	if observer == nil {
		return
	}
	for _, change := range changes {
		observer(change)
	}
}
