// Package externalsvc holds the HTTP clients for services this module
// depends on but does not own: the distance-matrix provider, the route
// optimizer, and device GPS feeds.
package externalsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/fieldops/replanner/internal/traveltime"
)

// DistanceMatrixClient calls an external distance-matrix API over HTTP.
type DistanceMatrixClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewDistanceMatrixClient constructs a client against baseURL, authenticating
// with apiKey.
func NewDistanceMatrixClient(httpClient *http.Client, baseURL, apiKey string) *DistanceMatrixClient {
	return &DistanceMatrixClient{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

type distanceMatrixRequest struct {
	Pairs         []distanceMatrixPair `json:"pairs"`
	Mode          string               `json:"mode"`
	DepartureTime *time.Time           `json:"departure_time,omitempty"`
}

type distanceMatrixPair struct {
	OriginLat float64 `json:"origin_lat"`
	OriginLng float64 `json:"origin_lng"`
	DestLat   float64 `json:"dest_lat"`
	DestLng   float64 `json:"dest_lng"`
}

type distanceMatrixResponseEntry struct {
	Seconds   int64 `json:"seconds"`
	Resolvable bool  `json:"resolvable"`
}

// BulkResolve implements traveltime.Provider.
func (c *DistanceMatrixClient) BulkResolve(ctx context.Context, pairs []traveltime.Pair, mode traveltime.Mode, departureTime *time.Time) ([]traveltime.ProviderResult, error) {
	reqBody := distanceMatrixRequest{Mode: string(mode), DepartureTime: departureTime}
	for _, p := range pairs {
		reqBody.Pairs = append(reqBody.Pairs, distanceMatrixPair{
			OriginLat: p.Origin.Lat, OriginLng: p.Origin.Lng,
			DestLat: p.Destination.Lat, DestLng: p.Destination.Lng,
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal distance matrix request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/distance-matrix", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build distance matrix request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("distance matrix request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("distance matrix provider returned status %d", resp.StatusCode)
	}

	var entries []distanceMatrixResponseEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode distance matrix response: %w", err)
	}

	results := make([]traveltime.ProviderResult, len(entries))
	for i, e := range entries {
		results[i] = traveltime.ProviderResult{Seconds: e.Seconds, Ok: e.Resolvable}
	}
	return results, nil
}

var _ traveltime.Provider = (*DistanceMatrixClient)(nil)
