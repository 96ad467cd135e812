package models

import (
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Event is implemented by every dispatch domain event. Events are emitted by
// the dispatch service after the mutation has been committed; handlers are
// fire-and-forget.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// DriverAssignedEvent fires when a driver is bound to a request.
type DriverAssignedEvent struct {
	RequestID  uuid.UUID
	DriverID   uuid.UUID
	OwnerID    uuid.UUID
	Driver     DriverSnapshot
	AssignedBy string
	At         time.Time
}

func (e DriverAssignedEvent) EventType() string     { return "request.driver_assigned" }
func (e DriverAssignedEvent) OccurredAt() time.Time { return e.At }

// StatusChangedEvent fires on every accepted status transition.
type StatusChangedEvent struct {
	RequestID uuid.UUID
	OwnerID   uuid.UUID
	DriverID  *uuid.UUID
	OldStatus types.RequestStatus
	NewStatus types.RequestStatus
	ChangedBy string
	At        time.Time
}

func (e StatusChangedEvent) EventType() string     { return "request.status_changed" }
func (e StatusChangedEvent) OccurredAt() time.Time { return e.At }

// LocationUpdatedEvent fires when a driver position was accepted for a request.
type LocationUpdatedEvent struct {
	RequestID uuid.UUID
	Location  DriverPosition
	At        time.Time
}

func (e LocationUpdatedEvent) EventType() string     { return "request.location_updated" }
func (e LocationUpdatedEvent) OccurredAt() time.Time { return e.At }
