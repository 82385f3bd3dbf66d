package relay

import (
	"github.com/example/meeting-relay/domain/meeting"
)

// AcquireAILock takes the AI-bot lock of the caller's room. The first caller
// wins; anyone else gets a LockContentionError naming the holder until the
// lock is released. Acquiring a lock already held by the caller is a no-op.
func (h *Hub) AcquireAILock(connectionID string) (meeting.LockState, error) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return meeting.LockState{}, ErrUnknownConnection
	}
	r, ok := h.rooms[c.RoomID]
	if !ok {
		h.mu.Unlock()
		return meeting.LockState{}, ErrNotInRoom
	}
	if r.lock.Held {
		state := r.lock
		h.mu.Unlock()
		if state.HolderConnectionID == connectionID {
			return state, nil
		}
		return state, &LockContentionError{Holder: state}
	}

	r.lock = meeting.LockState{
		Held:               true,
		HolderConnectionID: connectionID,
		HolderUsername:     c.Identity.Username,
		LockedAt:           h.now(),
	}
	state := r.lock
	h.broadcastLocked(r, TypeAIBotLocked, LockNotice{
		HolderConnectionID: connectionID,
		HolderUsername:     state.HolderUsername,
	}, connectionID)
	changes := []Change{{
		Kind:         ChangeLock,
		RoomID:       r.id,
		ConnectionID: connectionID,
		Identity:     c.Identity,
		Lock:         state,
		At:           state.LockedAt,
	}}
	h.mu.Unlock()

	h.notify(changes)
	h.logger.Info("AI lock acquired", "roomID", changes[0].RoomID, "username", state.HolderUsername)
	return state, nil
}

// ReleaseAILock clears the AI-bot lock of the caller's room. Releasing an
// unheld lock is a no-op. Under ReleaseByHolder a non-holder gets
// ErrNotLockHolder; under ReleaseByAnyMember the release goes through and is
// logged.
func (h *Hub) ReleaseAILock(connectionID string) (meeting.LockState, error) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if !ok {
		h.mu.Unlock()
		return meeting.LockState{}, ErrUnknownConnection
	}
	r, ok := h.rooms[c.RoomID]
	if !ok {
		h.mu.Unlock()
		return meeting.LockState{}, ErrNotInRoom
	}
	if !r.lock.Held {
		h.mu.Unlock()
		return meeting.LockState{}, nil
	}

	prev := r.lock
	if prev.HolderConnectionID != connectionID {
		if h.config.ReleasePolicy == ReleaseByHolder {
			h.mu.Unlock()
			return prev, ErrNotLockHolder
		}
		h.logger.Warn("AI lock released by non-holder",
			"roomID", r.id,
			"holder", prev.HolderUsername,
			"releasedBy", c.Identity.Username)
	}

	r.lock = meeting.LockState{}
	h.broadcastLocked(r, TypeAIBotUnlocked, LockNotice{
		HolderConnectionID: prev.HolderConnectionID,
		HolderUsername:     prev.HolderUsername,
	}, connectionID)
	changes := []Change{{
		Kind:         ChangeLock,
		RoomID:       r.id,
		ConnectionID: connectionID,
		Identity:     c.Identity,
		At:           h.now(),
	}}
	h.mu.Unlock()

	h.notify(changes)
	h.logger.Info("AI lock released", "roomID", changes[0].RoomID, "holder", prev.HolderUsername)
	return meeting.LockState{}, nil
}

// LockState returns the AI-bot lock of a room.
func (h *Hub) LockState(roomID string) meeting.LockState {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[roomID]; ok {
		return r.lock
	}
	return meeting.LockState{}
}
