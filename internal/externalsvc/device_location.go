package externalsvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DeviceLocationClient fetches the last reported GPS position for a
// van's onboard device.
type DeviceLocationClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewDeviceLocationClient constructs a client against baseURL.
func NewDeviceLocationClient(httpClient *http.Client, baseURL, apiKey string) *DeviceLocationClient {
	return &DeviceLocationClient{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// Location is a device's last reported position.
type Location struct {
	Lat         float64
	Lng         float64
	ObservedAt  time.Time
}

type deviceLocationResponse struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	ObservedAt time.Time `json:"observed_at"`
}

// Fetch retrieves the current location for deviceID. A device with no
// recent fix returns (nil, nil) rather than an error — callers fall
// back to the technician's home address.
func (c *DeviceLocationClient) Fetch(ctx context.Context, deviceID string) (*Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/devices/"+deviceID+"/location", nil)
	if err != nil {
		return nil, fmt.Errorf("build device location request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device location request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("device location service returned status %d", resp.StatusCode)
	}

	var parsed deviceLocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode device location response: %w", err)
	}

	return &Location{Lat: parsed.Lat, Lng: parsed.Lng, ObservedAt: parsed.ObservedAt}, nil
}
