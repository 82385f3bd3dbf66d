package iceservers

import (
	"time"

	"github.com/pion/webrtc/v4"
)

// ServiceName is the request-reply service for the ICE server list.
const ServiceName = "ice-servers"

// ICEServersRequest is the request for the ICE server list.
type ICEServersRequest struct {
	UserID string `json:"userId,omitempty"`
}

// ICEServersResponse is the list handed to clients for RTCPeerConnection.
// TTLSeconds and ExpiresAt are set only when TURN credentials are included.
type ICEServersResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
	TTLSeconds int                `json:"ttl,omitempty"`
	ExpiresAt  *time.Time         `json:"expiresAt,omitempty"`
	Error      string             `json:"error,omitempty"`
}
