// Package realtime implements the authenticated WebSocket relay: handshake
// gateway, room membership registry and broadcast/room-scoped fan-out.
package realtime

import (
	"encoding/json"
	"errors"
)

// Client and server event names.
const (
	EventJoinRoom  = "join-room"
	EventLeaveRoom = "leave-room"
	EventMessage   = "message"
	EventAuthError = "auth-error"
	EventError     = "error"
)

// TargetBroadcast addresses every authenticated connection except the
// sender. The original web client sends an empty target for the same thing.
const TargetBroadcast = "broadcast"

// Handshake and protocol error reasons.
const (
	ReasonTokenRequired    = "token_required"
	ReasonTokenInvalid     = "token_invalid"
	ReasonTokenExpired     = "token_expired"
	ReasonNotAuthenticated = "not_authenticated"
	ReasonBadFrame         = "bad_frame"
)

var (
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrInvalidRoom      = errors.New("invalid room name")
)

// Frame is the single wire envelope for both directions.
// Inbound: {event:"join-room",room} | {event:"leave-room",room} |
// {event:"message",target,payload}. Outbound: {event:"message",room?,from,
// payload} | {event:"auth-error",error} | {event:"error",error}.
type Frame struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Target  string          `json:"target,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}
