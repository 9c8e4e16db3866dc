package traveltime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the hot cache tier: a single GET/SET round trip per
// pair, keyed on rounded coordinates, mode and (for predictive lookups)
// the departure bucket.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier wraps an existing client.
func NewRedisTier(client *redis.Client) *RedisTier {
	return &RedisTier{client: client}
}

func cacheKey(pair Pair, mode Mode, departureTime *time.Time) string {
	origin := pair.Origin.Rounded()
	dest := pair.Destination.Rounded()
	base := fmt.Sprintf("tt:%s:%.6f,%.6f:%.6f,%.6f",
		mode, origin.Lat, origin.Lng, dest.Lat, dest.Lng)
	if mode == ModePredictive && departureTime != nil {
		// Bucket predictive lookups by day-of-week and hour-of-day in
		// UTC, so nearby departure times share a cache entry.
		base += fmt.Sprintf(":%d:%02d", int(departureTime.Weekday()), departureTime.Hour())
	}
	return base
}

// Get returns the cached seconds for pair, or (0, false) on a miss.
func (t *RedisTier) Get(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time) (int64, bool, error) {
	val, err := t.client.Get(ctx, cacheKey(pair, mode, departureTime)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("redis tier get failed: %w", err)
	}
	seconds, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis tier returned malformed value: %w", err)
	}
	return seconds, true, nil
}

// Set populates the hot tier with the appropriate TTL for mode.
func (t *RedisTier) Set(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time, seconds int64) error {
	ttl := RealTimeTTL
	if mode == ModePredictive {
		ttl = PredictiveTTL
	}
	key := cacheKey(pair, mode, departureTime)
	if err := t.client.Set(ctx, key, strconv.FormatInt(seconds, 10), ttl).Err(); err != nil {
		return fmt.Errorf("redis tier set failed: %w", err)
	}
	return nil
}
