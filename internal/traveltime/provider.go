package traveltime

import (
	"context"
	"time"
)

// Provider is the external distance-matrix service. A single call may
// resolve many pairs at once; implementations should batch to the
// provider's own limits internally if it caps request size.
type Provider interface {
	BulkResolve(ctx context.Context, pairs []Pair, mode Mode, departureTime *time.Time) ([]ProviderResult, error)
}

// ProviderResult is one pair's resolution. Ok is false when the
// provider could not route between origin and destination (e.g. no
// road path); Seconds is meaningless in that case.
type ProviderResult struct {
	Seconds int64
	Ok      bool
}
