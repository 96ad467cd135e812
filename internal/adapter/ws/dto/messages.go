// Package dto defines the realtime wire messages.
package dto

import (
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
)

// Client message types.
const (
	TypeJoinRequestRoom      = "join-request-room"
	TypeDriverLocationUpdate = "driver-location-update"
)

// Server message types.
const (
	TypeConnected       = "connected"
	TypeError           = "error"
	TypeAck             = "ack"
	TypeStatusUpdated   = "status-updated"
	TypeDriverAssigned  = "driver-assigned"
	TypeNewAssignment   = "new-assignment"
	TypeLocationUpdated = "location-updated"
)

// Connected is the first message after a successful handshake.
type Connected struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// Error is the structured failure payload, also used before closing an
// unauthenticated connection.
type Error struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	UserMessage string `json:"userMessage"`
}

// Ack answers a client-initiated message.
type Ack struct {
	Type        string `json:"type"`
	Of          string `json:"of"`
	RequestID   string `json:"requestId,omitempty"`
	Success     bool   `json:"success"`
	Code        string `json:"code,omitempty"`
	Message     string `json:"message,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
}

// StatusUpdated is broadcast to a request room on every status transition.
type StatusUpdated struct {
	Type      string            `json:"type"`
	RequestID string            `json:"requestId"`
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// DriverAssigned is broadcast to a request room when a driver is bound.
type DriverAssigned struct {
	Type      string                `json:"type"`
	RequestID string                `json:"requestId"`
	DriverID  string                `json:"driverId"`
	Driver    models.DriverSnapshot `json:"driver"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewAssignment is pushed into the driver's personal room so the driver
// learns about the assignment before joining the request room.
type NewAssignment struct {
	Type      string    `json:"type"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdated carries a live tracking point to a request room.
type LocationUpdated struct {
	Type      string    `json:"type"`
	RequestID string    `json:"requestId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}
