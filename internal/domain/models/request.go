package models

import (
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// MaxRoutePoints bounds the route history ring; the oldest point is evicted
// first once the cap is reached.
const MaxRoutePoints = 100

// MetadataKeyEligibilityFilter is the metadata key restricting which drivers
// may take the request, e.g. "FEMALE".
const MetadataKeyEligibilityFilter = "eligibilityFilter"

type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

// StatusChange is an append-only entry of the request audit trail.
type StatusChange struct {
	Status    types.RequestStatus `json:"status"`
	Timestamp time.Time           `json:"timestamp"`
	Note      string              `json:"note,omitempty"`
	ChangedBy string              `json:"changed_by,omitempty"`
}

// RoutePoint is a single received driver position, ordered by arrival.
type RoutePoint struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ReceivedAt time.Time `json:"received_at"`
}

// DriverPosition is the latest known driver location for a request.
type DriverPosition struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request is a trip-style request moving from draft to completion.
// It is mutated only through the dispatch service.
type Request struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string

	Origin      *Location
	Destination *Location

	// Metadata is a flexible bag; the dispatch core only interprets
	// MetadataKeyEligibilityFilter.
	Metadata map[string]string

	Status   types.RequestStatus
	DriverID *uuid.UUID

	AssignedAt  *time.Time
	PickedUpAt  *time.Time
	CompletedAt *time.Time

	StatusHistory      []StatusChange
	CancellationReason *string

	EstimatedPrice *float64
	ActualPrice    *float64

	DriverLocation *DriverPosition
	RouteHistory   []RoutePoint

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EligibilityFilter returns the driver restriction from metadata, if any.
func (r *Request) EligibilityFilter() (string, bool) {
	if r.Metadata == nil {
		return "", false
	}
	v, ok := r.Metadata[MetadataKeyEligibilityFilter]
	return v, ok && v != ""
}

// AppendStatus appends an entry to the audit trail.
func (r *Request) AppendStatus(status types.RequestStatus, note, changedBy string, at time.Time) {
	r.StatusHistory = append(r.StatusHistory, StatusChange{
		Status:    status,
		Timestamp: at,
		Note:      note,
		ChangedBy: changedBy,
	})
}

// AppendRoutePoint records a received driver position and trims the ring to
// the most recent MaxRoutePoints entries.
func (r *Request) AppendRoutePoint(lat, lng float64, at time.Time) {
	r.RouteHistory = append(r.RouteHistory, RoutePoint{Lat: lat, Lng: lng, ReceivedAt: at})
	if n := len(r.RouteHistory); n > MaxRoutePoints {
		r.RouteHistory = r.RouteHistory[n-MaxRoutePoints:]
	}
}

// HasCoordinates reports whether both origin and destination carry coordinates.
func (r *Request) HasCoordinates() bool {
	return r.Origin != nil && r.Destination != nil
}
