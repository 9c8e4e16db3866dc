package traveltime

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// hotTier is the subset of RedisTier the orchestration loop needs;
// narrowed to an interface so tests can substitute a fake without a
// live Redis connection.
type hotTier interface {
	Get(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time) (int64, bool, error)
	Set(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time, seconds int64) error
}

// persistedTier is the subset of PostgresTier the orchestration loop
// needs.
type persistedTier interface {
	Get(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time) (int64, bool, error)
	Upsert(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time, seconds int64) error
}

// TieredCache implements Cache over a Redis hot tier, a Postgres
// persisted tier, and an external Provider fallback, in that order.
// A resolution from the provider is written back to both tiers before
// being returned, so subsequent lookups for the same pair (within this
// run or a later one) are served without another provider call.
type TieredCache struct {
	hot       hotTier
	persisted persistedTier
	provider  Provider
	logger    *zap.Logger
}

// NewTieredCache wires the two storage tiers and the provider fallback.
func NewTieredCache(hot *RedisTier, persisted *PostgresTier, provider Provider, logger *zap.Logger) *TieredCache {
	return &TieredCache{hot: hot, persisted: persisted, provider: provider, logger: logger}
}

// BulkLookup resolves every pair, self-pairs aside, through the tier
// chain. Pairs that miss every tier are batched into a single provider
// call. A pair the provider cannot resolve is reported as
// PenaltySeconds rather than failing the whole batch.
func (c *TieredCache) BulkLookup(ctx context.Context, pairs []Pair, mode Mode, departureTime *time.Time) ([]int64, error) {
	results := make([]int64, len(pairs))
	var misses []int
	var missPairs []Pair

	for i, pair := range pairs {
		if pair.Origin.Rounded() == pair.Destination.Rounded() {
			results[i] = 0
			continue
		}
		if seconds, ok, err := c.hot.Get(ctx, pair, mode, departureTime); err == nil && ok {
			results[i] = seconds
			continue
		}
		if seconds, ok, err := c.persisted.Get(ctx, pair, mode, departureTime); err == nil && ok {
			results[i] = seconds
			_ = c.hot.Set(ctx, pair, mode, departureTime, seconds)
			continue
		}
		misses = append(misses, i)
		missPairs = append(missPairs, pair)
	}

	if len(missPairs) == 0 {
		return results, nil
	}

	resolved, err := c.provider.BulkResolve(ctx, missPairs, mode, departureTime)
	if err != nil {
		c.logger.Warn("travel time provider call failed, applying penalty to all misses",
			zap.Int("miss_count", len(missPairs)), zap.Error(err))
		for _, idx := range misses {
			results[idx] = PenaltySeconds
		}
		return results, nil
	}

	for j, idx := range misses {
		pair := missPairs[j]
		if j >= len(resolved) || !resolved[j].Ok {
			results[idx] = PenaltySeconds
			c.logger.Warn("travel time provider could not resolve pair, applying penalty",
				zap.Float64("origin_lat", pair.Origin.Lat), zap.Float64("origin_lng", pair.Origin.Lng),
				zap.Float64("dest_lat", pair.Destination.Lat), zap.Float64("dest_lng", pair.Destination.Lng))
			continue
		}
		results[idx] = resolved[j].Seconds
		_ = c.persisted.Upsert(ctx, pair, mode, departureTime, resolved[j].Seconds)
		_ = c.hot.Set(ctx, pair, mode, departureTime, resolved[j].Seconds)
	}

	return results, nil
}

func newTieredCacheWithTiers(hot hotTier, persisted persistedTier, provider Provider, logger *zap.Logger) *TieredCache {
	return &TieredCache{hot: hot, persisted: persisted, provider: provider, logger: logger}
}

var _ Cache = (*TieredCache)(nil)
