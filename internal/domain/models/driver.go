package models

import (
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Driver is a read-only projection of the external driver registry.
type Driver struct {
	ID              uuid.UUID
	Name            string
	IsAvailable     bool
	IsBanned        bool
	Gender          types.Gender
	CurrentLocation *Location
	UpdatedAt       time.Time
}

// HasLocation reports whether the registry knows where the driver is.
func (d *Driver) HasLocation() bool {
	return d.CurrentLocation != nil
}

// Eligible reports whether the driver satisfies the request's eligibility
// filter. Filters match against the driver's gender attribute; an unknown
// filter value matches nothing, which keeps restricted requests restricted.
func (d *Driver) Eligible(filter string) bool {
	if filter == "" {
		return true
	}
	return string(d.Gender) == filter
}

// DriverSnapshot is the wire representation pushed to request rooms when a
// driver is assigned.
type DriverSnapshot struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location *Location `json:"location,omitempty"`
}

// Snapshot builds the broadcast payload for the driver.
func (d *Driver) Snapshot() DriverSnapshot {
	return DriverSnapshot{
		ID:       d.ID,
		Name:     d.Name,
		Location: d.CurrentLocation,
	}
}
