package externalsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/payload"
)

// OptimizerClient submits an assembled payload to the external route
// optimizer and returns its routing decision.
type OptimizerClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewOptimizerClient constructs a client against baseURL.
func NewOptimizerClient(httpClient *http.Client, baseURL, apiKey string) *OptimizerClient {
	return &OptimizerClient{httpClient: httpClient, baseURL: baseURL, apiKey: apiKey}
}

// RouteStop is one item placed onto one technician's route.
type RouteStop struct {
	ItemID           string
	TechnicianID     entity.TechnicianID
	ScheduledStart   time.Time
}

// OptimizeResult is the optimizer's full response for one pass.
type OptimizeResult struct {
	Stops      []RouteStop
	Unresolved []UnresolvedItem
}

// UnresolvedItem is an item the optimizer could not place, with the
// constraint that blocked it.
type UnresolvedItem struct {
	ItemID string
	Reason entity.FailureReason
}

type optimizeRequestItem struct {
	ItemID                string     `json:"item_id"`
	LocationIndex         int        `json:"location_index"`
	DurationSeconds       int        `json:"duration_seconds"`
	Priority              int        `json:"priority"`
	EligibleTechnicianIDs []string   `json:"eligible_technician_ids"`
	EarliestStartTime     *time.Time `json:"earliest_start_time,omitempty"`
	IsFixedTime           bool       `json:"is_fixed_time"`
	FixedTime             *time.Time `json:"fixed_time,omitempty"`
}

type optimizeRequestTechnician struct {
	TechnicianID       string    `json:"technician_id"`
	StartLocationIndex int       `json:"start_location_index"`
	ShiftStart         time.Time `json:"shift_start"`
	ShiftEnd           time.Time `json:"shift_end"`
}

type optimizeRequestLocation struct {
	Index int     `json:"index"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
}

type optimizeRequest struct {
	Locations        []optimizeRequestLocation   `json:"locations"`
	Technicians      []optimizeRequestTechnician `json:"technicians"`
	Items            []optimizeRequestItem       `json:"items"`
	TravelTimeMatrix [][]int64                   `json:"travel_time_matrix"`
}

type optimizeResponseStop struct {
	ItemID         string    `json:"item_id"`
	TechnicianID   string    `json:"technician_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
}

type optimizeResponseUnresolved struct {
	ItemID string `json:"item_id"`
	Reason string `json:"reason"`
}

type optimizeResponse struct {
	Stops      []optimizeResponseStop       `json:"stops"`
	Unresolved []optimizeResponseUnresolved `json:"unresolved"`
}

// Optimize submits p and parses the optimizer's routing decision.
func (c *OptimizerClient) Optimize(ctx context.Context, p *payload.Payload) (*OptimizeResult, error) {
	reqBody := optimizeRequest{TravelTimeMatrix: p.TravelTimeMatrix}
	for _, loc := range p.Locations {
		reqBody.Locations = append(reqBody.Locations, optimizeRequestLocation{Index: loc.Index, Lat: loc.Lat, Lng: loc.Lng})
	}
	for _, tech := range p.Technicians {
		reqBody.Technicians = append(reqBody.Technicians, optimizeRequestTechnician{
			TechnicianID: tech.TechnicianID.String(), StartLocationIndex: tech.StartLocationIndex,
			ShiftStart: tech.ShiftStart, ShiftEnd: tech.ShiftEnd,
		})
	}
	for _, item := range p.Items {
		eligible := make([]string, len(item.EligibleTechnicianIDs))
		for i, id := range item.EligibleTechnicianIDs {
			eligible[i] = id.String()
		}
		reqBody.Items = append(reqBody.Items, optimizeRequestItem{
			ItemID: item.ItemID, LocationIndex: item.LocationIndex, DurationSeconds: item.DurationSeconds,
			Priority: item.Priority, EligibleTechnicianIDs: eligible,
			EarliestStartTime: item.EarliestStartTime, IsFixedTime: item.IsFixedTime, FixedTime: item.FixedTime,
		})
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal optimize request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/optimize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build optimize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("optimize request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("optimizer returned status %d", resp.StatusCode)
	}

	var parsed optimizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode optimize response: %w", err)
	}

	result := &OptimizeResult{}
	for _, stop := range parsed.Stops {
		techID, err := uuid.Parse(stop.TechnicianID)
		if err != nil {
			return nil, fmt.Errorf("optimizer returned malformed technician id: %w", err)
		}
		result.Stops = append(result.Stops, RouteStop{
			ItemID: stop.ItemID, TechnicianID: techID, ScheduledStart: stop.ScheduledStart,
		})
	}
	for _, u := range parsed.Unresolved {
		result.Unresolved = append(result.Unresolved, UnresolvedItem{ItemID: u.ItemID, Reason: entity.FailureReason(u.Reason)})
	}

	return result, nil
}
