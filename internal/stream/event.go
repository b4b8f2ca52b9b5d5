// Package stream runs per-connection polling sessions that push token
// updates over server-sent events or websockets.
package stream

import "token-companion/internal/domain"

// EventType is the kind of a stream event.
type EventType string

// Event types.
const (
	EventConnected EventType = "connected"
	EventUpdate    EventType = "update"
	EventError     EventType = "error"
	EventKeepalive EventType = "keepalive"
)

// Event is one frame sent to a client.
type Event struct {
	Type    EventType           `json:"type"`
	Token   string              `json:"token"`
	Data    *domain.TokenUpdate `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
}
