package traveltime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheKey_RoundsCoordinates(t *testing.T) {
	pair := Pair{
		Origin:      Coordinate{Lat: 53.5461123, Lng: -113.4938456},
		Destination: Coordinate{Lat: 53.5001, Lng: -113.5},
	}
	key := cacheKey(pair, ModeRealTime, nil)
	assert.Contains(t, key, "53.546112")
	assert.NotContains(t, key, "53.5461123")
}

func TestCacheKey_PredictiveBucketsByHourAndWeekday(t *testing.T) {
	pair := Pair{Origin: Coordinate{Lat: 1, Lng: 1}, Destination: Coordinate{Lat: 2, Lng: 2}}
	departure := time.Date(2026, 8, 3, 14, 30, 0, 0, time.UTC) // Monday
	keyA := cacheKey(pair, ModePredictive, &departure)

	departureSameBucket := time.Date(2026, 8, 3, 14, 59, 0, 0, time.UTC)
	keyB := cacheKey(pair, ModePredictive, &departureSameBucket)

	assert.Equal(t, keyA, keyB)

	departureDifferentHour := time.Date(2026, 8, 3, 15, 1, 0, 0, time.UTC)
	keyC := cacheKey(pair, ModePredictive, &departureDifferentHour)
	assert.NotEqual(t, keyA, keyC)
}

func TestRounded_HandlesNegativeCoordinates(t *testing.T) {
	c := Coordinate{Lat: -53.123456789, Lng: -113.987654321}.Rounded()
	assert.InDelta(t, -53.123457, c.Lat, 1e-6)
	assert.InDelta(t, -113.987654, c.Lng, 1e-6)
}

type fakeProvider struct {
	results []ProviderResult
	err     error
	called  []Pair
}

func (f *fakeProvider) BulkResolve(_ context.Context, pairs []Pair, _ Mode, _ *time.Time) ([]ProviderResult, error) {
	f.called = append(f.called, pairs...)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestTieredCache_SelfPairsResolveToZeroWithoutProviderCall(t *testing.T) {
	provider := &fakeProvider{}
	cache := buildCacheForTest(t, provider)

	loc := Coordinate{Lat: 53.5, Lng: -113.5}
	seconds, err := cache.BulkLookup(context.Background(), []Pair{{Origin: loc, Destination: loc}}, ModeRealTime, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, seconds)
	assert.Empty(t, provider.called)
}

func TestTieredCache_ProviderMissAppliesPenalty(t *testing.T) {
	provider := &fakeProvider{results: []ProviderResult{{Ok: false}}}
	cache := buildCacheForTest(t, provider)

	pairs := []Pair{{Origin: Coordinate{Lat: 1, Lng: 1}, Destination: Coordinate{Lat: 5, Lng: 5}}}
	seconds, err := cache.BulkLookup(context.Background(), pairs, ModeRealTime, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{PenaltySeconds}, seconds)
}

func TestTieredCache_ProviderErrorAppliesPenaltyToAllMisses(t *testing.T) {
	provider := &fakeProvider{err: assertError{}}
	cache := buildCacheForTest(t, provider)

	pairs := []Pair{
		{Origin: Coordinate{Lat: 1, Lng: 1}, Destination: Coordinate{Lat: 5, Lng: 5}},
		{Origin: Coordinate{Lat: 2, Lng: 2}, Destination: Coordinate{Lat: 6, Lng: 6}},
	}
	seconds, err := cache.BulkLookup(context.Background(), pairs, ModeRealTime, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{PenaltySeconds, PenaltySeconds}, seconds)
}

type assertError struct{}

func (assertError) Error() string { return "provider unavailable" }

// alwaysMissTier is a hotTier/persistedTier stand-in that never has an
// entry, so BulkLookup always falls through to the provider.
type alwaysMissTier struct{}

func (alwaysMissTier) Get(context.Context, Pair, Mode, *time.Time) (int64, bool, error) {
	return 0, false, nil
}
func (alwaysMissTier) Set(context.Context, Pair, Mode, *time.Time, int64) error    { return nil }
func (alwaysMissTier) Upsert(context.Context, Pair, Mode, *time.Time, int64) error { return nil }

func buildCacheForTest(t *testing.T, provider Provider) *TieredCache {
	t.Helper()
	return newTieredCacheWithTiers(alwaysMissTier{}, alwaysMissTier{}, provider, zap.NewNop())
}
