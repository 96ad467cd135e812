package fare

import (
	"math"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
)

// one degree of latitude is ~111.19 km on the haversine sphere
const oneDegreeLatKm = 111.19

func TestDistanceMeters_KnownVector(t *testing.T) {
	from := models.Location{Lat: 0, Lng: 0}
	to := models.Location{Lat: 1, Lng: 0}

	got := DistanceMeters(from, to) / 1000
	if math.Abs(got-oneDegreeLatKm) > 0.1 {
		t.Fatalf("expected ~%.2f km, got %.2f km", oneDegreeLatKm, got)
	}
}

func TestDistanceMeters_ZeroForSamePoint(t *testing.T) {
	p := models.Location{Lat: 43.238949, Lng: 76.889709}
	if d := DistanceMeters(p, p); d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestCalculate_TenKilometers(t *testing.T) {
	// 10.00 km north of the origin: 10/111.19 degrees of latitude
	origin := models.Location{Lat: 0, Lng: 0}
	destination := models.Location{Lat: 10.0 / (earthRadiusM / 1000 * math.Pi / 180), Lng: 0}

	quote := Calculate(origin, destination, PricingConfig{BaseFee: 250, PerKmRate: 120})

	if quote.DistanceKm != 10.00 {
		t.Fatalf("expected distance 10.00 km, got %.2f", quote.DistanceKm)
	}
	if quote.Breakdown.DistanceFee != 1200 {
		t.Errorf("expected distance fee 1200, got %.0f", quote.Breakdown.DistanceFee)
	}
	if quote.EstimatedPrice != 1450 {
		t.Errorf("expected estimated price 1450, got %.0f", quote.EstimatedPrice)
	}
	if quote.Breakdown.BaseFee != 250 {
		t.Errorf("expected base fee 250, got %.0f", quote.Breakdown.BaseFee)
	}
}

func TestCalculate_UsesDefaultsWhenUnset(t *testing.T) {
	origin := models.Location{Lat: 0, Lng: 0}
	destination := models.Location{Lat: 0.01, Lng: 0}

	quote := Calculate(origin, destination, PricingConfig{})

	if quote.Breakdown.BaseFee != DefaultBaseFee {
		t.Fatalf("expected default base fee %v, got %v", DefaultBaseFee, quote.Breakdown.BaseFee)
	}
}

func TestCalculate_Deterministic(t *testing.T) {
	origin := models.Location{Lat: 43.25, Lng: 76.95}
	destination := models.Location{Lat: 43.22, Lng: 76.85}
	cfg := PricingConfig{BaseFee: 300, PerKmRate: 100}

	a := Calculate(origin, destination, cfg)
	b := Calculate(origin, destination, cfg)

	if a != b {
		t.Fatalf("quote must be deterministic: %+v vs %+v", a, b)
	}
}
