// Package traveltime implements the two-tier travel-time cache that
// fronts the external distance-matrix provider: a hot Redis tier for
// low-latency repeated lookups within a run, backed by a persisted
// Postgres table so entries survive across runs and processes.
package traveltime

import (
	"context"
	"time"
)

// Mode selects which travel-time regime a lookup uses. REAL_TIME is
// used when the planning date is today; PREDICTIVE is used for future
// days, bucketed by hour-of-day and day-of-week in UTC.
type Mode string

const (
	ModeRealTime  Mode = "REAL_TIME"
	ModePredictive Mode = "PREDICTIVE"
)

// TTL durations per mode, per spec.
const (
	RealTimeTTL  = 20 * time.Minute
	PredictiveTTL = 24 * time.Hour
)

// PenaltySeconds is reported for a pair the provider could not
// resolve, so the optimizer naturally avoids routing through it rather
// than aborting the pass.
const PenaltySeconds = 999_999

// Coordinate is a (lat, lng) pair. Round to exactly 6 decimals before
// using it as part of a cache key — never key on the raw float.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Rounded returns c with both components rounded to 6 decimal places.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{Lat: roundTo6(c.Lat), Lng: roundTo6(c.Lng)}
}

func roundTo6(v float64) float64 {
	const scale = 1e6
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}

// Pair is one origin/destination lookup request.
type Pair struct {
	Origin      Coordinate
	Destination Coordinate
}

// Cache is the contract consumed by the payload assembler: given the
// full list of location pairs for a run, resolve travel time in
// seconds for each, using the appropriate mode. Self-pairs (origin ==
// destination after rounding) resolve to 0 without touching either
// tier. Implementations never return a per-pair error — an
// unresolvable pair is represented by PenaltySeconds so the optimizer
// can route around it; only a catastrophic lookup failure (e.g. the
// persisted tier is unreachable) returns a non-nil error.
type Cache interface {
	BulkLookup(ctx context.Context, pairs []Pair, mode Mode, departureTime *time.Time) ([]int64, error)
}
