package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/metrics"
)

// pricing_settings is a single-row table; id = 1 always.
const pricingSettingsID = 1

// SettingsRepo holds the externally editable pricing config. An empty table
// means the built-in defaults apply.
type SettingsRepo struct {
	db *pgxpool.Pool
}

func NewSettingsRepo(db *pgxpool.Pool) *SettingsRepo {
	return &SettingsRepo{db: db}
}

func (r *SettingsRepo) Pricing(ctx context.Context) (_ fare.PricingConfig, err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "pricing_settings.get", err, time.Since(start))
	}(time.Now())

	query := `SELECT base_fee, per_km_rate FROM pricing_settings WHERE id = $1;`

	var cfg fare.PricingConfig
	err = TxorDB(ctx, r.db).QueryRow(ctx, query, pricingSettingsID).Scan(&cfg.BaseFee, &cfg.PerKmRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fare.DefaultPricing(), nil
		}
		return fare.PricingConfig{}, fmt.Errorf("settings repo: Pricing: %w", err)
	}

	return cfg, nil
}

func (r *SettingsRepo) SetPricing(ctx context.Context, cfg fare.PricingConfig) (err error) {
	defer func(start time.Time) {
		metrics.RecordDatabaseQuery(serviceName, "pricing_settings.set", err, time.Since(start))
	}(time.Now())

	query := `
		INSERT INTO pricing_settings (id, base_fee, per_km_rate, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET base_fee = EXCLUDED.base_fee, per_km_rate = EXCLUDED.per_km_rate, updated_at = now();`

	if _, err = TxorDB(ctx, r.db).Exec(ctx, query, pricingSettingsID, cfg.BaseFee, cfg.PerKmRate); err != nil {
		return fmt.Errorf("settings repo: SetPricing: %w", err)
	}

	return nil
}
