// Package rediscache provides Redis-backed accelerators: the driver
// geo-index feeding the matcher and a short-TTL pricing cache. Everything
// here is best-effort; Postgres stays the source of truth.
package rediscache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

const driverGeoKey = "drivers:locations"

// GeoIndex keeps the latest driver positions in a Redis geo set so the
// matcher can narrow its candidate pool without a full registry scan.
type GeoIndex struct {
	client *redis.Client
}

func NewGeoIndex(client *redis.Client) *GeoIndex {
	return &GeoIndex{client: client}
}

// UpdateDriverPosition upserts the driver into the geo set.
func (g *GeoIndex) UpdateDriverPosition(ctx context.Context, driverID uuid.UUID, lat, lng float64) error {
	err := g.client.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      driverID.String(),
		Longitude: lng,
		Latitude:  lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geo index: GeoAdd: %w", err)
	}
	return nil
}

// Nearby returns driver IDs within radiusKm of the point, closest first.
// Entries that fail to parse are skipped; the index may hold stale junk.
func (g *GeoIndex) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]uuid.UUID, error) {
	results, err := g.client.GeoRadius(ctx, driverGeoKey, lng, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("geo index: GeoRadius: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.Name)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// Remove drops a driver from the geo set.
func (g *GeoIndex) Remove(ctx context.Context, driverID uuid.UUID) error {
	if err := g.client.ZRem(ctx, driverGeoKey, driverID.String()).Err(); err != nil {
		return fmt.Errorf("geo index: ZRem: %w", err)
	}
	return nil
}
