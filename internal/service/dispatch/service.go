package dispatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/internal/service/lifecycle"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/metrics"
	"github.com/olzhas-a/dispatch-core/pkg/trm"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

const serviceName = "dispatch"

// SystemActor marks mutations performed by the service itself, e.g. auto-assignment.
const SystemActor = "system"

type Service struct {
	repo     RequestRepo
	drivers  DriverRegistry
	matcher  DriverMatcher
	settings SettingsStore
	geo      GeoWriter
	bus      Publisher
	trm      trm.TxManager
	l        logger.Logger
}

func New(
	repo RequestRepo,
	drivers DriverRegistry,
	m DriverMatcher,
	settings SettingsStore,
	geo GeoWriter,
	bus Publisher,
	txm trm.TxManager,
	l logger.Logger,
) *Service {
	return &Service{
		repo:     repo,
		drivers:  drivers,
		matcher:  m,
		settings: settings,
		geo:      geo,
		bus:      bus,
		trm:      txm,
		l:        l,
	}
}

// CreateParams is the payload for a new trip request. Status defaults to
// DRAFT; only DRAFT and PENDING are accepted at creation.
type CreateParams struct {
	OwnerID     uuid.UUID
	Title       string
	Description string
	Origin      *models.Location
	Destination *models.Location
	Metadata    map[string]string
	Status      types.RequestStatus
}

func (s *Service) Create(ctx context.Context, params CreateParams) (_ *models.Request, err error) {
	ctx = wrap.WithAction(ctx, "create_request")
	defer func() { metrics.RecordDispatchOperation(serviceName, "create", err) }()

	if params.OwnerID.IsNil() {
		return nil, wrap.Error(ctx, types.NewValidation("owner id is required"))
	}
	if strings.TrimSpace(params.Title) == "" {
		return nil, wrap.Error(ctx, types.NewValidation("title is required"))
	}

	status := params.Status
	if status == "" {
		status = types.StatusDraft
	}
	if status != types.StatusDraft && status != types.StatusPending {
		return nil, wrap.Error(ctx, types.NewValidation(fmt.Sprintf("a request cannot be created with status %s", status)))
	}
	if err := validateLocation(params.Origin); err != nil {
		return nil, wrap.Error(ctx, err)
	}
	if err := validateLocation(params.Destination); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	now := time.Now().UTC()
	req := &models.Request{
		ID:          uuid.New(),
		OwnerID:     params.OwnerID,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Origin:      params.Origin,
		Destination: params.Destination,
		Metadata:    params.Metadata,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	req.AppendStatus(status, "request created", params.OwnerID.String(), now)

	if req.HasCoordinates() {
		quote := fare.Calculate(*req.Origin, *req.Destination, s.pricingOrDefault(ctx))
		req.EstimatedPrice = &quote.EstimatedPrice
	}

	ctx = wrap.WithTripID(ctx, req.ID.String())
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, req)
	})
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("create request: %w", err))
	}

	s.l.Info(ctx, "trip request created", "status", string(req.Status))
	return req, nil
}

func (s *Service) Assign(ctx context.Context, requestID, driverID uuid.UUID, note, assignedBy string) (*models.Request, error) {
	ctx = wrap.WithAction(ctx, "assign_driver")
	return s.assign(ctx, requestID, driverID, note, assignedBy, nil)
}

// assign holds the shared assignment path for Assign, AcceptByDriver and
// AssignAuto. extraCheck runs inside the transaction after both the request
// and the driver were loaded.
func (s *Service) assign(
	ctx context.Context,
	requestID, driverID uuid.UUID,
	note, assignedBy string,
	extraCheck func(req *models.Request, d *models.Driver) error,
) (_ *models.Request, err error) {
	defer func() { metrics.RecordDispatchOperation(serviceName, "assign", err) }()
	ctx = wrap.WithTripID(ctx, requestID.String())
	ctx = wrap.WithDriverID(ctx, driverID.String())

	var (
		req    *models.Request
		driver *models.Driver
	)
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		req, err = s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != types.StatusPending && req.Status != types.StatusConfirmed {
			return types.NewPrecondition(fmt.Sprintf(
				"only a %s or %s request can be assigned (current: %s)",
				types.StatusPending, types.StatusConfirmed, req.Status,
			))
		}

		driver, err = s.drivers.FindByID(ctx, driverID)
		if err != nil {
			return err
		}
		if driver.IsBanned {
			return types.ErrDriverBanned
		}
		if !driver.IsAvailable {
			return types.ErrDriverNotAvailable
		}
		if extraCheck != nil {
			if err := extraCheck(req, driver); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		req.DriverID = &driver.ID
		req.Status = types.StatusConfirmed
		req.AssignedAt = &now
		req.UpdatedAt = now
		req.AppendStatus(types.StatusConfirmed, note, assignedBy, now)

		return s.repo.Update(ctx, req)
	})
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.bus.Publish(ctx, models.DriverAssignedEvent{
		RequestID:  req.ID,
		DriverID:   driver.ID,
		OwnerID:    req.OwnerID,
		Driver:     driver.Snapshot(),
		AssignedBy: assignedBy,
		At:         *req.AssignedAt,
	})

	s.l.Info(ctx, "driver assigned", "assigned_by", assignedBy)
	return req, nil
}

func (s *Service) AcceptByDriver(ctx context.Context, requestID, driverID uuid.UUID) (*models.Request, error) {
	ctx = wrap.WithAction(ctx, "accept_by_driver")

	return s.assign(ctx, requestID, driverID, "accepted by driver", driverID.String(),
		func(req *models.Request, d *models.Driver) error {
			if req.Status != types.StatusPending {
				return types.NewPrecondition(fmt.Sprintf(
					"only a %s request can be accepted by a driver (current: %s)",
					types.StatusPending, req.Status,
				))
			}
			if filter, ok := req.EligibilityFilter(); ok && !d.Eligible(filter) {
				return notEligibleError(filter)
			}
			return nil
		})
}

func (s *Service) AssignAuto(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	ctx = wrap.WithAction(ctx, "assign_auto")
	ctx = wrap.WithTripID(ctx, requestID.String())

	req, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}

	driver, err := s.matcher.Match(ctx, req)
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	return s.assign(ctx, requestID, driver.ID, "auto-assigned", SystemActor, nil)
}

func (s *Service) UpdateStatus(ctx context.Context, requestID uuid.UUID, newStatus types.RequestStatus, note, updatedBy string) (_ *models.Request, err error) {
	ctx = wrap.WithAction(ctx, "update_status")
	ctx = wrap.WithTripID(ctx, requestID.String())
	defer func() { metrics.RecordDispatchOperation(serviceName, "update_status", err) }()

	var (
		req *models.Request
		old types.RequestStatus
	)
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		req, err = s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		old = req.Status

		if err := lifecycle.ValidateTransition(req.Status, newStatus); err != nil {
			return err
		}

		now := time.Now().UTC()
		if newStatus == types.StatusInProgress && req.PickedUpAt == nil {
			req.PickedUpAt = &now
		}
		if newStatus == types.StatusCompleted && req.CompletedAt == nil {
			req.CompletedAt = &now
		}
		req.Status = newStatus
		req.UpdatedAt = now
		req.AppendStatus(newStatus, note, updatedBy, now)

		return s.repo.Update(ctx, req)
	})
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.bus.Publish(ctx, models.StatusChangedEvent{
		RequestID: req.ID,
		OwnerID:   req.OwnerID,
		DriverID:  req.DriverID,
		OldStatus: old,
		NewStatus: newStatus,
		ChangedBy: updatedBy,
		At:        req.UpdatedAt,
	})

	s.l.Info(ctx, "request status updated", "from", string(old), "to", string(newStatus))
	return req, nil
}

func (s *Service) Cancel(ctx context.Context, requestID uuid.UUID, reason, cancelledBy string) (_ *models.Request, err error) {
	ctx = wrap.WithAction(ctx, "cancel_request")
	ctx = wrap.WithTripID(ctx, requestID.String())
	defer func() { metrics.RecordDispatchOperation(serviceName, "cancel", err) }()

	var (
		req *models.Request
		old types.RequestStatus
	)
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		req, err = s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		old = req.Status

		switch req.Status {
		case types.StatusCompleted:
			return types.ErrCancelCompleted
		case types.StatusCancelled:
			return types.ErrAlreadyCancelled
		}

		now := time.Now().UTC()
		req.Status = types.StatusCancelled
		req.CancellationReason = &reason
		req.UpdatedAt = now
		req.AppendStatus(types.StatusCancelled, reason, cancelledBy, now)

		return s.repo.Update(ctx, req)
	})
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	s.bus.Publish(ctx, models.StatusChangedEvent{
		RequestID: req.ID,
		OwnerID:   req.OwnerID,
		DriverID:  req.DriverID,
		OldStatus: old,
		NewStatus: types.StatusCancelled,
		ChangedBy: cancelledBy,
		At:        req.UpdatedAt,
	})

	s.l.Info(ctx, "request cancelled", "reason", reason)
	return req, nil
}

func (s *Service) UpdateDriverLocation(ctx context.Context, requestID uuid.UUID, lat, lng float64) (_ *models.DriverPosition, err error) {
	ctx = wrap.WithAction(ctx, "update_driver_location")
	ctx = wrap.WithTripID(ctx, requestID.String())
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.DriverLocationUpdatesTotal.WithLabelValues(serviceName, status).Inc()
	}()

	if err := validateCoordinates(lat, lng); err != nil {
		return nil, wrap.Error(ctx, err)
	}

	var req *models.Request
	pos := models.DriverPosition{Lat: lat, Lng: lng, UpdatedAt: time.Now().UTC()}

	err = s.trm.Do(ctx, func(ctx context.Context) error {
		req, err = s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		req.DriverLocation = &pos
		req.AppendRoutePoint(pos.Lat, pos.Lng, pos.UpdatedAt)
		req.UpdatedAt = pos.UpdatedAt
		return s.repo.Update(ctx, req)
	})
	if err != nil {
		return nil, wrap.Error(ctx, err)
	}

	if s.geo != nil && req.DriverID != nil {
		if geoErr := s.geo.UpdateDriverPosition(ctx, *req.DriverID, lat, lng); geoErr != nil {
			s.l.Warn(ctx, "geo-index update failed", "error", geoErr.Error())
		}
	}

	s.bus.Publish(ctx, models.LocationUpdatedEvent{
		RequestID: req.ID,
		Location:  pos,
		At:        pos.UpdatedAt,
	})

	return &pos, nil
}

func (s *Service) RecalculateFare(ctx context.Context, requestID uuid.UUID) (_ *models.Request, _ fare.Quote, err error) {
	ctx = wrap.WithAction(ctx, "recalculate_fare")
	ctx = wrap.WithTripID(ctx, requestID.String())
	defer func() { metrics.RecordDispatchOperation(serviceName, "recalculate_fare", err) }()

	var (
		req   *models.Request
		quote fare.Quote
	)
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		req, err = s.repo.GetByID(ctx, requestID)
		if err != nil {
			return err
		}
		if !req.HasCoordinates() {
			return types.NewValidation("request needs both origin and destination coordinates")
		}

		quote = fare.Calculate(*req.Origin, *req.Destination, s.pricingOrDefault(ctx))
		req.EstimatedPrice = &quote.EstimatedPrice
		req.UpdatedAt = time.Now().UTC()
		return s.repo.Update(ctx, req)
	})
	if err != nil {
		return nil, fare.Quote{}, wrap.Error(ctx, err)
	}

	return req, quote, nil
}

func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*models.Request, error) {
	req, err := s.repo.GetByID(ctx, requestID)
	if err != nil {
		return nil, wrap.Error(wrap.WithTripID(ctx, requestID.String()), err)
	}
	return req, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Request, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, wrap.Error(wrap.WithUserID(ctx, ownerID.String()), err)
	}
	return list, nil
}

func (s *Service) QuoteFee(ctx context.Context, origin, destination models.Location) (fare.Quote, error) {
	if err := validateCoordinates(origin.Lat, origin.Lng); err != nil {
		return fare.Quote{}, wrap.Error(ctx, err)
	}
	if err := validateCoordinates(destination.Lat, destination.Lng); err != nil {
		return fare.Quote{}, wrap.Error(ctx, err)
	}
	return fare.Calculate(origin, destination, s.pricingOrDefault(ctx)), nil
}

func (s *Service) Pricing(ctx context.Context) (fare.PricingConfig, error) {
	cfg, err := s.settings.Pricing(ctx)
	if err != nil {
		return fare.PricingConfig{}, wrap.Error(ctx, err)
	}
	return cfg, nil
}

func (s *Service) SetPricing(ctx context.Context, cfg fare.PricingConfig) error {
	ctx = wrap.WithAction(ctx, "set_pricing")
	if cfg.BaseFee < 0 || cfg.PerKmRate < 0 {
		return wrap.Error(ctx, types.NewValidation("pricing values must not be negative"))
	}
	if err := s.settings.SetPricing(ctx, cfg); err != nil {
		return wrap.Error(ctx, err)
	}
	s.l.Info(ctx, "pricing updated", "base_fee", cfg.BaseFee, "per_km_rate", cfg.PerKmRate)
	return nil
}

// pricingOrDefault reads the tariff from the settings store, falling back to
// the built-in defaults when the store is unreachable. Fee math must not take
// a request down with it.
func (s *Service) pricingOrDefault(ctx context.Context) fare.PricingConfig {
	cfg, err := s.settings.Pricing(ctx)
	if err != nil {
		s.l.Warn(ctx, "pricing settings unavailable, using defaults", "error", err.Error())
		return fare.DefaultPricing()
	}
	return cfg
}

func notEligibleError(filter string) *types.DomainError {
	e := types.NewPrecondition(fmt.Sprintf("this request requires a %s driver", strings.ToLower(filter)))
	e.Message = types.ErrDriverNotEligible.Message
	return e
}

func validateLocation(loc *models.Location) error {
	if loc == nil {
		return nil
	}
	return validateCoordinates(loc.Lat, loc.Lng)
}

func validateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return types.NewValidation(fmt.Sprintf("invalid coordinates (%v, %v)", lat, lng))
	}
	return nil
}
