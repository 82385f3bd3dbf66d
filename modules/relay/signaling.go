package relay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SignalType is one of the WebRTC negotiation messages.
type SignalType string

const (
	SignalOffer        SignalType = TypeOffer
	SignalAnswer       SignalType = TypeAnswer
	SignalICECandidate SignalType = TypeICECandidate
)

// PayloadField returns the body field carrying the opaque payload.
func (t SignalType) PayloadField() (string, bool) {
	switch t {
	case SignalOffer:
		return "offer", true
	case SignalAnswer:
		return "answer", true
	case SignalICECandidate:
		return "candidate", true
	default:
		return "", false
	}
}

// Signal is an addressed negotiation message. Payload is never interpreted.
type Signal struct {
	Type    SignalType
	To      string
	Payload json.RawMessage
}

// ParseSignal decodes the body of an inbound offer, answer or ice-candidate.
func ParseSignal(t SignalType, data json.RawMessage) (Signal, error) {
	field, ok := t.PayloadField()
	if !ok {
		return Signal{}, fmt.Errorf("%w: unknown type %q", ErrMalformedSignal, t)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil || body == nil {
		return Signal{}, fmt.Errorf("%w: body must be an object", ErrMalformedSignal)
	}

	sig := Signal{Type: t, Payload: body[field]}
	if raw, ok := body["to"]; ok {
		if err := json.Unmarshal(raw, &sig.To); err != nil {
			return Signal{}, fmt.Errorf("%w: target must be a string", ErrMalformedSignal)
		}
	}
	return sig, nil
}

// Relay forwards a negotiation message from one connection to exactly one
// other connection in the same room. The forwarded frame carries the
// sender's id and username next to the untouched payload.
func (h *Hub) Relay(fromID string, sig Signal) error {
	field, ok := sig.Type.PayloadField()
	if !ok {
		return fmt.Errorf("%w: unknown type %q", ErrMalformedSignal, sig.Type)
	}
	if strings.TrimSpace(sig.To) == "" {
		return fmt.Errorf("%w: missing target", ErrMalformedSignal)
	}
	if !isJSONObject(sig.Payload) {
		return fmt.Errorf("%w: %s must be an object", ErrMalformedSignal, field)
	}
	if sig.To == fromID {
		return fmt.Errorf("%w: target is the sender", ErrMalformedSignal)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	from, ok := h.clients[fromID]
	if !ok {
		return ErrUnknownConnection
	}
	target, ok := h.clients[sig.To]
	if !ok {
		return ErrStaleTarget
	}
	if from.RoomID == "" || from.RoomID != target.RoomID {
		return ErrCrossRoomTarget
	}

	frame, err := EncodeFrame(string(sig.Type), map[string]any{
		"from":     fromID,
		"username": from.Identity.Username,
		field:      sig.Payload,
	})
	if err != nil {
		return err
	}
	h.deliverLocked(target, frame)
	return nil
}
