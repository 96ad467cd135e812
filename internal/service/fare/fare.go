// Package fare computes distance-based price estimates for trip requests.
package fare

import (
	"math"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
)

const (
	earthRadiusM = 6371000.0

	// Defaults applied when the settings store carries no pricing config.
	DefaultBaseFee   = 250.0
	DefaultPerKmRate = 120.0
)

// PricingConfig is the externally configurable tariff.
type PricingConfig struct {
	BaseFee   float64 `json:"base_fee"`
	PerKmRate float64 `json:"per_km_rate"`
}

// DefaultPricing returns the fallback tariff.
func DefaultPricing() PricingConfig {
	return PricingConfig{BaseFee: DefaultBaseFee, PerKmRate: DefaultPerKmRate}
}

// Breakdown itemizes the estimate for auditability.
type Breakdown struct {
	BaseFee     float64 `json:"base_fee"`
	DistanceFee float64 `json:"distance_fee"`
}

// Quote is the result of a fee calculation.
type Quote struct {
	DistanceKm     float64   `json:"distance_km"`
	EstimatedPrice float64   `json:"estimated_price"`
	Breakdown      Breakdown `json:"breakdown"`
}

// DistanceMeters computes the haversine distance between two points.
func DistanceMeters(from, to models.Location) float64 {
	lat1Rad := from.Lat * math.Pi / 180
	lat2Rad := to.Lat * math.Pi / 180
	dLat := (to.Lat - from.Lat) * math.Pi / 180
	dLng := (to.Lng - from.Lng) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Calculate produces a deterministic quote for the given coordinates and
// tariff. Distance is rounded to 2 decimals in km before pricing so that the
// displayed distance and the priced distance always agree.
func Calculate(origin, destination models.Location, cfg PricingConfig) Quote {
	if cfg.BaseFee == 0 && cfg.PerKmRate == 0 {
		cfg = DefaultPricing()
	}

	distanceKm := math.Round(DistanceMeters(origin, destination)/1000*100) / 100
	distanceFee := math.Round(distanceKm * cfg.PerKmRate)
	estimated := math.Round(cfg.BaseFee + distanceFee)

	return Quote{
		DistanceKm:     distanceKm,
		EstimatedPrice: estimated,
		Breakdown: Breakdown{
			BaseFee:     cfg.BaseFee,
			DistanceFee: distanceFee,
		},
	}
}
