// Package dispatch is the single writer of trip request state. Every mutation
// goes through it: load, mutate, save inside one transaction, then emit the
// resulting domain events.
package dispatch

import (
	"context"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Dispatch is the full mutation and read surface for trip requests.
type Dispatch interface {
	Create(ctx context.Context, params CreateParams) (*models.Request, error)
	Assign(ctx context.Context, requestID, driverID uuid.UUID, note, assignedBy string) (*models.Request, error)
	AcceptByDriver(ctx context.Context, requestID, driverID uuid.UUID) (*models.Request, error)
	AssignAuto(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	UpdateStatus(ctx context.Context, requestID uuid.UUID, newStatus types.RequestStatus, note, updatedBy string) (*models.Request, error)
	Cancel(ctx context.Context, requestID uuid.UUID, reason, cancelledBy string) (*models.Request, error)
	UpdateDriverLocation(ctx context.Context, requestID uuid.UUID, lat, lng float64) (*models.DriverPosition, error)
	RecalculateFare(ctx context.Context, requestID uuid.UUID) (*models.Request, fare.Quote, error)

	Get(ctx context.Context, requestID uuid.UUID) (*models.Request, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Request, error)

	QuoteFee(ctx context.Context, origin, destination models.Location) (fare.Quote, error)
	Pricing(ctx context.Context) (fare.PricingConfig, error)
	SetPricing(ctx context.Context, cfg fare.PricingConfig) error
}

// RequestRepo persists requests as single documents. Mutations are
// last-write-wins; callers serialize per-request writes through Dispatch.
type RequestRepo interface {
	Create(ctx context.Context, req *models.Request) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Request, error)
	Update(ctx context.Context, req *models.Request) error
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Request, error)
}

// DriverRegistry is the read-only view of the external driver pool.
type DriverRegistry interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
}

// DriverMatcher picks the best candidate driver for a request.
type DriverMatcher interface {
	Match(ctx context.Context, req *models.Request) (*models.Driver, error)
}

// SettingsStore holds the externally editable pricing config.
type SettingsStore interface {
	Pricing(ctx context.Context) (fare.PricingConfig, error)
	SetPricing(ctx context.Context, cfg fare.PricingConfig) error
}

// GeoWriter keeps the driver geo-index in sync with location updates.
// Best-effort; failures are logged and never fail the operation.
type GeoWriter interface {
	UpdateDriverPosition(ctx context.Context, driverID uuid.UUID, lat, lng float64) error
}

// Publisher fans domain events out to realtime and notification consumers.
type Publisher interface {
	Publish(ctx context.Context, e models.Event)
}
