package traveltime

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresTier is the persisted cache tier, backing entries that
// survive process restarts and are shared across concurrent runs.
type PostgresTier struct {
	db *sql.DB
}

// NewPostgresTier wraps an existing connection.
func NewPostgresTier(db *sql.DB) *PostgresTier {
	return &PostgresTier{db: db}
}

// Get returns the persisted seconds for pair if present and not
// expired for mode's TTL.
func (t *PostgresTier) Get(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time) (int64, bool, error) {
	origin := pair.Origin.Rounded()
	dest := pair.Destination.Rounded()
	bucket := departureBucket(mode, departureTime)

	var seconds int64
	var computedAt time.Time
	query := `
		SELECT seconds, computed_at
		FROM travel_time_cache
		WHERE origin_lat = $1 AND origin_lng = $2
		  AND dest_lat = $3 AND dest_lng = $4
		  AND mode = $5 AND departure_bucket = $6
	`
	err := t.db.QueryRowContext(ctx, query, origin.Lat, origin.Lng, dest.Lat, dest.Lng, string(mode), bucket).
		Scan(&seconds, &computedAt)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres tier get failed: %w", err)
	}

	ttl := RealTimeTTL
	if mode == ModePredictive {
		ttl = PredictiveTTL
	}
	if time.Since(computedAt) > ttl {
		return 0, false, nil
	}
	return seconds, true, nil
}

// Upsert persists a resolved lookup.
func (t *PostgresTier) Upsert(ctx context.Context, pair Pair, mode Mode, departureTime *time.Time, seconds int64) error {
	origin := pair.Origin.Rounded()
	dest := pair.Destination.Rounded()
	bucket := departureBucket(mode, departureTime)

	query := `
		INSERT INTO travel_time_cache
			(origin_lat, origin_lng, dest_lat, dest_lng, mode, departure_bucket, seconds, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (origin_lat, origin_lng, dest_lat, dest_lng, mode, departure_bucket)
		DO UPDATE SET seconds = EXCLUDED.seconds, computed_at = EXCLUDED.computed_at
	`
	_, err := t.db.ExecContext(ctx, query, origin.Lat, origin.Lng, dest.Lat, dest.Lng, string(mode), bucket, seconds, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres tier upsert failed: %w", err)
	}
	return nil
}

func departureBucket(mode Mode, departureTime *time.Time) string {
	if mode != ModePredictive || departureTime == nil {
		return ""
	}
	return fmt.Sprintf("%d:%02d", int(departureTime.Weekday()), departureTime.Hour())
}
