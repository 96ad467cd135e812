// Package matcher selects the nearest eligible driver for a trip request.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// searchRadiusKm bounds the geo-index fast path; the full registry scan has
// no radius limit.
const searchRadiusKm = 25.0

// Registry is the external driver registry contract: a filtered scan of
// drivers that are available, not banned and have a known location.
type Registry interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	ListCandidates(ctx context.Context) ([]models.Driver, error)
}

// GeoIndex narrows the candidate pool by proximity before the registry is
// consulted. It is an accelerator only; an empty result falls back to the
// full scan.
type GeoIndex interface {
	Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]uuid.UUID, error)
}

type Matcher struct {
	registry Registry
	geo      GeoIndex
	l        logger.Logger
}

// New returns a matcher. geo may be nil; the matcher then always scans the
// full registry.
func New(registry Registry, geo GeoIndex, l logger.Logger) *Matcher {
	return &Matcher{
		registry: registry,
		geo:      geo,
		l:        l,
	}
}

// Match returns the nearest driver for the request origin that satisfies the
// request's eligibility filter. It never mutates anything; the caller owns
// the subsequent assignment.
//
// Returns ErrNoDriversAvailable when the candidate pool is empty before the
// eligibility filter, and ErrNoEligibleDrivers when candidates exist but none
// pass the filter so the UI can message the difference.
func (m *Matcher) Match(ctx context.Context, req *models.Request) (*models.Driver, error) {
	ctx = wrap.WithAction(ctx, "match_driver")

	if req.Origin == nil {
		return nil, wrap.Error(ctx, types.ErrOriginMissing)
	}

	candidates, err := m.candidates(ctx, req.Origin)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to load driver candidates: %w", err))
	}
	if len(candidates) == 0 {
		return nil, wrap.Error(ctx, types.ErrNoDriversAvailable)
	}

	filter, restricted := req.EligibilityFilter()

	var best *models.Driver
	var bestDist float64
	for i := range candidates {
		d := &candidates[i]
		if !d.IsAvailable || d.IsBanned || !d.HasLocation() {
			continue
		}
		if restricted && !d.Eligible(filter) {
			continue
		}

		dist := fare.DistanceMeters(*req.Origin, *d.CurrentLocation)
		// equidistant candidates resolve to the lowest driver ID so the
		// choice stays stable across runs
		if best == nil || dist < bestDist || (dist == bestDist && d.ID.String() < best.ID.String()) {
			best = d
			bestDist = dist
		}
	}

	if best == nil {
		if restricted {
			return nil, wrap.Error(ctx, eligibilityError(filter))
		}
		return nil, wrap.Error(ctx, types.ErrNoDriversAvailable)
	}

	m.l.Debug(ctx, "matched driver",
		"driver_id", best.ID,
		"distance_m", bestDist,
		"pool_size", len(candidates),
	)

	return best, nil
}

// candidates loads the driver pool, preferring the geo index when it knows
// drivers near the origin.
func (m *Matcher) candidates(ctx context.Context, origin *models.Location) ([]models.Driver, error) {
	if m.geo != nil {
		ids, err := m.geo.Nearby(ctx, origin.Lat, origin.Lng, searchRadiusKm)
		if err != nil {
			m.l.Warn(ctx, "geo index lookup failed, falling back to registry scan", "error", err.Error())
		} else if len(ids) > 0 {
			drivers := make([]models.Driver, 0, len(ids))
			for _, id := range ids {
				d, err := m.registry.FindByID(ctx, id)
				if err != nil {
					continue // index may be stale, skip unknown drivers
				}
				drivers = append(drivers, *d)
			}
			if len(drivers) > 0 {
				return drivers, nil
			}
		}
	}

	return m.registry.ListCandidates(ctx)
}

// eligibilityError builds the domain-specific rejection for a restricted
// request, e.g. "this request requires a female driver".
func eligibilityError(filter string) *types.DomainError {
	e := types.NewNotFound(fmt.Sprintf("no eligible drivers available: this request requires a %s driver", strings.ToLower(filter)))
	e.Message = types.ErrNoEligibleDrivers.Message
	return e
}
