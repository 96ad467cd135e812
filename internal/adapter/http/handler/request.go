package handler

import (
	"net/http"

	"github.com/olzhas-a/dispatch-core/internal/adapter/http/handler/dto"
	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Request exposes the synchronous dispatch API.
type Request struct {
	service dispatch.Dispatch
	l       logger.Logger
}

func NewRequest(service dispatch.Dispatch, l logger.Logger) *Request {
	return &Request{
		service: service,
		l:       l,
	}
}

// Create godoc
// @Summary      Create a trip request
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRequestReq true "New request"
// @Success      201  {object}  dto.RequestResp
// @Failure      422  {object}  map[string]any
// @Router       /requests [post]
func (h *Request) Create(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_request")
	identity := models.IdentityFromContext(ctx)

	var req dto.CreateRequestReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	created, err := h.service.Create(ctx, req.ToParams(identity.UserID))
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to create trip request", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, envelope{"request": dto.FromRequest(created)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "trip request created", "request_id", created.ID.String())
}

// Get godoc
// @Summary      Get a trip request
// @Tags         Requests
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Success      200  {object}  dto.RequestResp
// @Failure      404  {object}  map[string]any
// @Router       /requests/{request_id} [get]
func (h *Request) Get(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_request")
	identity := models.IdentityFromContext(ctx)

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	req, err := h.service.Get(ctx, requestID)
	if err != nil {
		domainErrorResponse(w, err)
		return
	}

	if !canAccessRequest(identity, req) {
		domainErrorResponse(w, types.ErrRoomAccessDenied)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(req)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// List godoc
// @Summary      List the caller's trip requests
// @Tags         Requests
// @Produce      json
// @Success      200  {array}  dto.RequestResp
// @Router       /requests [get]
func (h *Request) List(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "list_requests")
	identity := models.IdentityFromContext(ctx)

	reqs, err := h.service.ListByOwner(ctx, identity.UserID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to list trip requests", err)
		domainErrorResponse(w, err)
		return
	}

	out := make([]dto.RequestResp, 0, len(reqs))
	for i := range reqs {
		out = append(out, dto.FromRequest(&reqs[i]))
	}

	if err := writeJSON(w, http.StatusOK, envelope{"requests": out}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// Assign godoc
// @Summary      Assign a driver to a request
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Param        request body dto.AssignReq true "Assignment"
// @Success      200  {object}  dto.RequestResp
// @Failure      409  {object}  map[string]any
// @Router       /requests/{request_id}/assign [post]
func (h *Request) Assign(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "assign_driver")
	identity := models.IdentityFromContext(ctx)

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	var req dto.AssignReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		badRequestResponse(w, "invalid driver uuid format")
		return
	}

	updated, err := h.service.Assign(ctx, requestID, driverID, req.Note, identity.UserID.String())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to assign driver", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(updated)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver assigned", "request_id", requestID.String(), "driver_id", driverID.String())
}

// Accept godoc
// @Summary      Driver accepts a pending request
// @Tags         Requests
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Success      200  {object}  dto.RequestResp
// @Failure      409  {object}  map[string]any
// @Router       /requests/{request_id}/accept [post]
func (h *Request) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_request")
	identity := models.IdentityFromContext(ctx)

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	if !identity.IsDriver() {
		domainErrorResponse(w, types.NewUnauthorized("only driver accounts can accept requests"))
		return
	}

	updated, err := h.service.AcceptByDriver(ctx, requestID, *identity.DriverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to accept request", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(updated)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "request accepted by driver", "request_id", requestID.String())
}

// AssignAuto godoc
// @Summary      Auto-assign the nearest eligible driver
// @Tags         Requests
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Success      200  {object}  dto.RequestResp
// @Failure      404  {object}  map[string]any
// @Router       /requests/{request_id}/assign-auto [post]
func (h *Request) AssignAuto(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "assign_auto")

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	updated, err := h.service.AssignAuto(ctx, requestID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to auto-assign driver", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(updated)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// UpdateStatus godoc
// @Summary      Transition a request to a new status
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Param        request body dto.UpdateStatusReq true "Target status"
// @Success      200  {object}  dto.RequestResp
// @Failure      409  {object}  map[string]any
// @Router       /requests/{request_id}/status [post]
func (h *Request) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "update_status")
	identity := models.IdentityFromContext(ctx)

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	var req dto.UpdateStatusReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	updated, err := h.service.UpdateStatus(ctx, requestID, types.RequestStatus(req.Status), req.Note, identity.UserID.String())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to update request status", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(updated)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// Cancel godoc
// @Summary      Cancel a request
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Param        request body dto.CancelReq true "Cancellation reason"
// @Success      200  {object}  dto.RequestResp
// @Failure      409  {object}  map[string]any
// @Router       /requests/{request_id}/cancel [post]
func (h *Request) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_request")
	identity := models.IdentityFromContext(ctx)

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	var req dto.CancelReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	if !identity.Role.IsAdmin() {
		existing, err := h.service.Get(ctx, requestID)
		if err != nil {
			domainErrorResponse(w, err)
			return
		}
		if existing.OwnerID != identity.UserID {
			domainErrorResponse(w, types.NewUnauthorized("only the request owner can cancel it"))
			return
		}
	}

	updated, err := h.service.Cancel(ctx, requestID, req.Reason, identity.UserID.String())
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel request", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"request": dto.FromRequest(updated)}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "request cancelled", "request_id", requestID.String())
}

// RecalculateFare godoc
// @Summary      Recompute the estimate with the current tariff
// @Tags         Requests
// @Produce      json
// @Param        request_id path string true "Request ID"
// @Success      200  {object}  map[string]any
// @Failure      422  {object}  map[string]any
// @Router       /requests/{request_id}/recalculate-fare [post]
func (h *Request) RecalculateFare(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "recalculate_fare")

	requestID, ok := h.pathRequestID(w, r)
	if !ok {
		return
	}

	updated, quote, err := h.service.RecalculateFare(ctx, requestID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to recalculate fare", err)
		domainErrorResponse(w, err)
		return
	}

	response := envelope{
		"request": dto.FromRequest(updated),
		"quote":   quote,
	}
	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// QuoteFee godoc
// @Summary      Quote a fee for a pair of coordinates
// @Tags         Fees
// @Accept       json
// @Produce      json
// @Param        request body dto.QuoteFeeReq true "Coordinates"
// @Success      200  {object}  map[string]any
// @Router       /fees/quote [post]
func (h *Request) QuoteFee(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "quote_fee")

	var req dto.QuoteFeeReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	quote, err := h.service.QuoteFee(ctx, *req.Origin.ToModel(), *req.Destination.ToModel())
	if err != nil {
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"quote": quote}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

func (h *Request) pathRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	requestID, err := uuid.Parse(r.PathValue("request_id"))
	if err != nil {
		badRequestResponse(w, "invalid request uuid format")
		return uuid.Nil, false
	}
	return requestID, true
}

// canAccessRequest mirrors the realtime room rule: owner, assigned driver or admin.
func canAccessRequest(identity *models.Identity, req *models.Request) bool {
	if identity.Role.IsAdmin() {
		return true
	}
	if identity.UserID == req.OwnerID {
		return true
	}
	return identity.IsDriver() && req.DriverID != nil && *identity.DriverID == *req.DriverID
}
