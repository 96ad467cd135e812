package handler

import (
	"net/http"

	"github.com/olzhas-a/dispatch-core/internal/adapter/http/handler/dto"
	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
)

// Settings manages the pricing tariff.
type Settings struct {
	service dispatch.Dispatch
	l       logger.Logger
}

func NewSettings(service dispatch.Dispatch, l logger.Logger) *Settings {
	return &Settings{
		service: service,
		l:       l,
	}
}

// GetPricing godoc
// @Summary      Current pricing tariff
// @Tags         Settings
// @Produce      json
// @Success      200  {object}  fare.PricingConfig
// @Router       /admin/settings/pricing [get]
func (h *Settings) GetPricing(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_pricing")

	cfg, err := h.service.Pricing(ctx)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to load pricing config", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"pricing": cfg}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
	}
}

// PutPricing godoc
// @Summary      Replace the pricing tariff
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request body dto.PricingReq true "New tariff"
// @Success      200  {object}  fare.PricingConfig
// @Failure      422  {object}  map[string]any
// @Router       /admin/settings/pricing [put]
func (h *Settings) PutPricing(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "put_pricing")

	var req dto.PricingReq
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		badRequestResponse(w, err.Error())
		return
	}

	// Omitted fields keep their defaults so a partial update is not
	// silently interpreted as "set to zero".
	cfg := fare.DefaultPricing()
	if req.BaseFee != nil {
		cfg.BaseFee = *req.BaseFee
	}
	if req.PerKmRate != nil {
		cfg.PerKmRate = *req.PerKmRate
	}

	if err := h.service.SetPricing(ctx, cfg); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to store pricing config", err)
		domainErrorResponse(w, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"pricing": cfg}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "pricing config updated", "base_fee", cfg.BaseFee, "per_km_rate", cfg.PerKmRate)
}
