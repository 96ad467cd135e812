// Package dto carries the HTTP request and response shapes.
package dto

import (
	"time"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

type LocationReq struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

func (l *LocationReq) ToModel() *models.Location {
	if l == nil {
		return nil
	}
	return &models.Location{Lat: l.Lat, Lng: l.Lng, Address: l.Address}
}

type CreateRequestReq struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Origin      *LocationReq      `json:"origin,omitempty"`
	Destination *LocationReq      `json:"destination,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      string            `json:"status,omitempty"`
}

func (r *CreateRequestReq) ToParams(ownerID uuid.UUID) dispatch.CreateParams {
	return dispatch.CreateParams{
		OwnerID:     ownerID,
		Title:       r.Title,
		Description: r.Description,
		Origin:      r.Origin.ToModel(),
		Destination: r.Destination.ToModel(),
		Metadata:    r.Metadata,
		Status:      types.RequestStatus(r.Status),
	}
}

type AssignReq struct {
	DriverID string `json:"driver_id"`
	Note     string `json:"note,omitempty"`
}

type UpdateStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

type CancelReq struct {
	Reason string `json:"reason"`
}

type QuoteFeeReq struct {
	Origin      LocationReq `json:"origin"`
	Destination LocationReq `json:"destination"`
}

type PricingReq struct {
	BaseFee   *float64 `json:"base_fee"`
	PerKmRate *float64 `json:"per_km_rate"`
}

// RequestResp is the full request representation returned by reads and
// mutations alike.
type RequestResp struct {
	ID                 uuid.UUID              `json:"id"`
	OwnerID            uuid.UUID              `json:"owner_id"`
	Title              string                 `json:"title"`
	Description        string                 `json:"description,omitempty"`
	Origin             *models.Location       `json:"origin,omitempty"`
	Destination        *models.Location       `json:"destination,omitempty"`
	Metadata           map[string]string      `json:"metadata,omitempty"`
	Status             types.RequestStatus    `json:"status"`
	DriverID           *uuid.UUID             `json:"driver_id,omitempty"`
	AssignedAt         *time.Time             `json:"assigned_at,omitempty"`
	PickedUpAt         *time.Time             `json:"picked_up_at,omitempty"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
	StatusHistory      []models.StatusChange  `json:"status_history"`
	CancellationReason *string                `json:"cancellation_reason,omitempty"`
	EstimatedPrice     *float64               `json:"estimated_price,omitempty"`
	ActualPrice        *float64               `json:"actual_price,omitempty"`
	DriverLocation     *models.DriverPosition `json:"driver_location,omitempty"`
	RouteHistory       []models.RoutePoint    `json:"route_history,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

func FromRequest(req *models.Request) RequestResp {
	return RequestResp{
		ID:                 req.ID,
		OwnerID:            req.OwnerID,
		Title:              req.Title,
		Description:        req.Description,
		Origin:             req.Origin,
		Destination:        req.Destination,
		Metadata:           req.Metadata,
		Status:             req.Status,
		DriverID:           req.DriverID,
		AssignedAt:         req.AssignedAt,
		PickedUpAt:         req.PickedUpAt,
		CompletedAt:        req.CompletedAt,
		StatusHistory:      req.StatusHistory,
		CancellationReason: req.CancellationReason,
		EstimatedPrice:     req.EstimatedPrice,
		ActualPrice:        req.ActualPrice,
		DriverLocation:     req.DriverLocation,
		RouteHistory:       req.RouteHistory,
		CreatedAt:          req.CreatedAt,
		UpdatedAt:          req.UpdatedAt,
	}
}
