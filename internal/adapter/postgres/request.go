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

const serviceName = "dispatch"

// RequestRepo stores each trip request as a single row. History, metadata and
// route data live in jsonb columns, so every mutation is a whole-document
// load-mutate-save.
type RequestRepo struct {
	db *pgxpool.Pool
}

func NewRequestRepo(db *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{db: db}
}

const requestColumns = `
	id, owner_id, title, description,
	origin, destination, metadata,
	status, driver_id,
	assigned_at, picked_up_at, completed_at,
	status_history, cancellation_reason,
	estimated_price, actual_price,
	driver_location, route_history,
	created_at, updated_at`

func (r *RequestRepo) Create(ctx context.Context, req *models.Request) (err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "trip_requests.create", err, time.Since(start))
	}(time.Now())

	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO trip_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20);`

	_, err = q.Exec(ctx, query,
		req.ID, req.OwnerID, req.Title, req.Description,
		req.Origin, req.Destination, req.Metadata,
		req.Status, req.DriverID,
		req.AssignedAt, req.PickedUpAt, req.CompletedAt,
		req.StatusHistory, req.CancellationReason,
		req.EstimatedPrice, req.ActualPrice,
		req.DriverLocation, req.RouteHistory,
		req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("request repo: Create: %w", err)
	}

	return nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id uuid.UUID) (_ *models.Request, err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "trip_requests.get", err, time.Since(start))
	}(time.Now())

	q := TxorDB(ctx, r.db)

	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE id = $1;`

	req, err := scanRequest(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRequestNotFound
		}
		return nil, fmt.Errorf("request repo: GetByID: %w", err)
	}

	return req, nil
}

func (r *RequestRepo) Update(ctx context.Context, req *models.Request) (err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "trip_requests.update", err, time.Since(start))
	}(time.Now())

	q := TxorDB(ctx, r.db)

	query := `
		UPDATE trip_requests
		SET
			title = $2,
			description = $3,
			origin = $4,
			destination = $5,
			metadata = $6,
			status = $7,
			driver_id = $8,
			assigned_at = $9,
			picked_up_at = $10,
			completed_at = $11,
			status_history = $12,
			cancellation_reason = $13,
			estimated_price = $14,
			actual_price = $15,
			driver_location = $16,
			route_history = $17,
			updated_at = $18
		WHERE id = $1;`

	cmdTag, err := q.Exec(ctx, query,
		req.ID,
		req.Title, req.Description,
		req.Origin, req.Destination, req.Metadata,
		req.Status, req.DriverID,
		req.AssignedAt, req.PickedUpAt, req.CompletedAt,
		req.StatusHistory, req.CancellationReason,
		req.EstimatedPrice, req.ActualPrice,
		req.DriverLocation, req.RouteHistory,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("request repo: Update: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return types.ErrRequestNotFound
	}

	return nil
}

func (r *RequestRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) (_ []models.Request, err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "trip_requests.list_by_owner", err, time.Since(start))
	}(time.Now())

	q := TxorDB(ctx, r.db)

	query := `SELECT ` + requestColumns + ` FROM trip_requests WHERE owner_id = $1 ORDER BY created_at DESC;`

	rows, err := q.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("request repo: ListByOwner: %w", err)
	}
	defer rows.Close()

	var out []models.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("request repo: ListByOwner scan: %w", err)
		}
		out = append(out, *req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("request repo: ListByOwner rows: %w", err)
	}

	return out, nil
}

func scanRequest(row pgx.Row) (*models.Request, error) {
	var req models.Request
	err := row.Scan(
		&req.ID, &req.OwnerID, &req.Title, &req.Description,
		&req.Origin, &req.Destination, &req.Metadata,
		&req.Status, &req.DriverID,
		&req.AssignedAt, &req.PickedUpAt, &req.CompletedAt,
		&req.StatusHistory, &req.CancellationReason,
		&req.EstimatedPrice, &req.ActualPrice,
		&req.DriverLocation, &req.RouteHistory,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
