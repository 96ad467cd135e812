package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/metrics"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// DriverRegistry is a read-only view over the drivers table, which is owned
// and mutated by the driver management service.
type DriverRegistry struct {
	db *pgxpool.Pool
}

func NewDriverRegistry(db *pgxpool.Pool) *DriverRegistry {
	return &DriverRegistry{db: db}
}

func (r *DriverRegistry) FindByID(ctx context.Context, id uuid.UUID) (_ *models.Driver, err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "drivers.find", err, time.Since(start))
	}(time.Now())

	query := `
		SELECT id, name, is_available, is_banned, gender, location, updated_at
		FROM drivers
		WHERE id = $1;`

	var d models.Driver
	err = TxorDB(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.IsAvailable, &d.IsBanned, &d.Gender, &d.CurrentLocation, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrDriverNotFound
		}
		return nil, fmt.Errorf("driver registry: FindByID: %w", err)
	}

	return &d, nil
}

// ListCandidates returns drivers that could take a request right now.
// Eligibility filtering is the matcher's job.
func (r *DriverRegistry) ListCandidates(ctx context.Context) (_ []models.Driver, err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "drivers.candidates", err, time.Since(start))
	}(time.Now())

	query := `
		SELECT id, name, is_available, is_banned, gender, location, updated_at
		FROM drivers
		WHERE is_available = true AND is_banned = false AND location IS NOT NULL;`

	rows, err := TxorDB(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("driver registry: ListCandidates: %w", err)
	}
	defer rows.Close()

	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.IsAvailable, &d.IsBanned, &d.Gender, &d.CurrentLocation, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("driver registry: ListCandidates scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver registry: ListCandidates rows: %w", err)
	}

	return out, nil
}
