package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olzhas-a/dispatch-core/internal/service/dispatch"
	"github.com/olzhas-a/dispatch-core/internal/service/fare"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
)

const (
	pricingCacheKey = "settings:pricing"
	pricingCacheTTL = 30 * time.Second
)

// SettingsCache fronts the Postgres settings store with a short-TTL Redis
// cache. Fee math reads the tariff on every request; the tariff changes
// rarely. Cache misses and failures fall through to the store.
type SettingsCache struct {
	client *redis.Client
	store  dispatch.SettingsStore
	l      logger.Logger
}

func NewSettingsCache(client *redis.Client, store dispatch.SettingsStore, l logger.Logger) *SettingsCache {
	return &SettingsCache{client: client, store: store, l: l}
}

func (c *SettingsCache) Pricing(ctx context.Context) (fare.PricingConfig, error) {
	raw, err := c.client.Get(ctx, pricingCacheKey).Bytes()
	if err == nil {
		var cfg fare.PricingConfig
		if err := json.Unmarshal(raw, &cfg); err == nil {
			return cfg, nil
		}
		// poisoned entry, fall through and overwrite
	}

	cfg, err := c.store.Pricing(ctx)
	if err != nil {
		return fare.PricingConfig{}, err
	}

	if raw, err := json.Marshal(cfg); err == nil {
		if err := c.client.Set(ctx, pricingCacheKey, raw, pricingCacheTTL).Err(); err != nil {
			c.l.Warn(ctx, "pricing cache write failed", "error", err.Error())
		}
	}

	return cfg, nil
}

func (c *SettingsCache) SetPricing(ctx context.Context, cfg fare.PricingConfig) error {
	if err := c.store.SetPricing(ctx, cfg); err != nil {
		return err
	}
	// invalidate so the next read sees the new tariff immediately
	if err := c.client.Del(ctx, pricingCacheKey).Err(); err != nil {
		c.l.Warn(ctx, "pricing cache invalidation failed", "error", err.Error())
	}
	return nil
}
