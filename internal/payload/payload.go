// Package payload assembles the optimizer request: the location
// index, travel-time matrix, technician shift windows and
// schedulable-item list for one planning pass.
package payload

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fieldops/replanner/internal/availability"
	"github.com/fieldops/replanner/internal/entity"
	"github.com/fieldops/replanner/internal/timeutil"
	"github.com/fieldops/replanner/internal/traveltime"
)

// Location is one row of the optimizer's location index. Index 0 is
// always the depot.
type Location struct {
	Index int
	Lat   float64
	Lng   float64
}

// TechnicianShift describes one technician's working envelope and
// starting location for the pass.
type TechnicianShift struct {
	TechnicianID       entity.TechnicianID
	StartLocationIndex int
	ShiftStart         time.Time
	ShiftEnd           time.Time
	Unavailabilities   []entity.AvailabilityGap
}

// Item is one schedulable unit offered to the optimizer.
type Item struct {
	ItemID                string
	LocationIndex         int
	DurationSeconds       int
	Priority              int
	EligibleTechnicianIDs []entity.TechnicianID
	EarliestStartTime     *time.Time
	IsFixedTime           bool
	FixedTime             *time.Time
}

// Payload is the complete, self-contained optimizer request for one pass.
type Payload struct {
	PlanningDate     time.Time
	Locations        []Location
	Technicians      []TechnicianShift
	Items            []Item
	TravelTimeMatrix [][]int64
}

// AddressLookup resolves the coordinates backing an item or a
// technician's location, already joined by the caller from the address
// and order/van tables.
type AddressLookup interface {
	CoordinatesForAddress(addressID entity.AddressID) (lat, lng float64, ok bool)
}

// Assemble builds the optimizer payload for one technician/item set on
// planningDate. lockedJobs narrows availability only when planningDate
// falls on the same UTC calendar date as now; for any other date it is
// ignored.
func Assemble(
	ctx context.Context,
	planningDate time.Time,
	now time.Time,
	technicians []*entity.Technician,
	items []entity.SchedulableItem,
	addresses AddressLookup,
	earliestStartByItem map[string]*time.Time,
	lockedJobs []*entity.Job,
	depot traveltime.Coordinate,
	predictiveHourUTC int,
	cache traveltime.Cache,
	loc *time.Location,
) (*Payload, error) {
	isToday := timeutil.SameUTCDate(planningDate, now)

	locationIndex := newLocationIndexBuilder(depot)

	itemLocations := make(map[string]int, len(items))
	for _, item := range items {
		lat, lng, ok := addresses.CoordinatesForAddress(item.AddressID)
		if !ok {
			return nil, fmt.Errorf("no coordinates for item %s address %s", item.ID, item.AddressID)
		}
		itemLocations[item.ID] = locationIndex.indexFor(lat, lng)
	}

	fixedIntervalsByTech := fixedTimeIntervalsByTechnician(items)

	shifts := make([]TechnicianShift, 0, len(technicians))
	for _, tech := range technicians {
		windows, err := availability.CalculateWindowsForTechnician(tech, planningDate, planningDate, loc)
		if err != nil {
			return nil, fmt.Errorf("calculate availability for technician %s: %w", tech.ID, err)
		}
		dateLabel := timeutil.DateLabel(planningDate)
		dayWindows := windows[dateLabel]

		if isToday {
			techLocked := lockedJobsFor(lockedJobs, tech.ID)
			dayWindows = availability.ApplyLockedJobsToWindows(dayWindows, techLocked, dateLabel, now, isToday)
		}

		start, end, ok := availability.ShiftEnvelope(dayWindows)
		if !ok {
			// No window at all on the target date: give the technician a
			// zero-width midday shift rather than dropping them from the
			// payload, so an item's EligibleTechnicianIDs never dangles on
			// a technician absent from Payload.Technicians.
			midday := time.Date(planningDate.Year(), planningDate.Month(), planningDate.Day(), 12, 0, 0, 0, time.UTC)
			start, end = midday, midday
		}

		gaps := availability.FindAvailabilityGaps(tech.ID, dayWindows, start, end)
		gaps = excludeCoincidentFixedTimeGaps(gaps, fixedIntervalsByTech[tech.ID])

		lat, lng := startLocationFor(tech, isToday)
		shifts = append(shifts, TechnicianShift{
			TechnicianID:       tech.ID,
			StartLocationIndex: locationIndex.indexForTechnicianStart(lat, lng),
			ShiftStart:         start,
			ShiftEnd:           end,
			Unavailabilities:   gaps,
		})
	}

	locations := locationIndex.build()

	payloadItems := make([]Item, 0, len(items))
	for _, item := range items {
		payloadItem := Item{
			ItemID:                item.ID,
			LocationIndex:         itemLocations[item.ID],
			DurationSeconds:       item.DurationMinutes * 60,
			Priority:              item.Priority,
			EligibleTechnicianIDs: item.EligibleTechnicianIDs,
			EarliestStartTime:     earliestStartByItem[item.ID],
		}
		if fixedJob := fixedTimeJobOf(item); fixedJob != nil {
			payloadItem.IsFixedTime = true
			payloadItem.FixedTime = fixedJob.FixedScheduleTime
		}
		payloadItems = append(payloadItems, payloadItem)
	}

	matrix, err := buildTravelTimeMatrix(ctx, locations, isToday, planningDate, predictiveHourUTC, cache)
	if err != nil {
		return nil, err
	}

	return &Payload{
		PlanningDate:     planningDate,
		Locations:        locations,
		Technicians:      shifts,
		Items:            payloadItems,
		TravelTimeMatrix: matrix,
	}, nil
}

func fixedTimeJobOf(item entity.SchedulableItem) *entity.Job {
	for _, job := range item.Jobs {
		if job.Status == entity.JobStatusFixedTime {
			return job
		}
	}
	return nil
}

type timeInterval struct {
	start, end time.Time
}

// fixedTimeIntervalsByTechnician indexes every fixed-time item offered
// this pass by the technicians eligible to take it, so the gap an
// item's own fixed constraint already carries isn't emitted a second
// time as an unavailability.
func fixedTimeIntervalsByTechnician(items []entity.SchedulableItem) map[entity.TechnicianID][]timeInterval {
	out := make(map[entity.TechnicianID][]timeInterval)
	for _, item := range items {
		job := fixedTimeJobOf(item)
		if job == nil || job.FixedScheduleTime == nil {
			continue
		}
		interval := timeInterval{
			start: *job.FixedScheduleTime,
			end:   job.FixedScheduleTime.Add(time.Duration(job.DurationMinutes) * time.Minute),
		}
		for _, techID := range item.EligibleTechnicianIDs {
			out[techID] = append(out[techID], interval)
		}
	}
	return out
}

// excludeCoincidentFixedTimeGaps drops any gap whose bounds exactly
// match a fixed-time job's own interval for this technician.
func excludeCoincidentFixedTimeGaps(gaps []entity.AvailabilityGap, fixed []timeInterval) []entity.AvailabilityGap {
	if len(fixed) == 0 {
		return gaps
	}
	out := gaps[:0]
	for _, g := range gaps {
		coincident := false
		for _, f := range fixed {
			if g.Start.Equal(f.start) && g.End.Equal(f.end) {
				coincident = true
				break
			}
		}
		if !coincident {
			out = append(out, g)
		}
	}
	return out
}

func lockedJobsFor(jobs []*entity.Job, techID entity.TechnicianID) []*entity.Job {
	var out []*entity.Job
	for _, job := range jobs {
		if job.AssignedTechnicianID != nil && *job.AssignedTechnicianID == techID {
			out = append(out, job)
		}
	}
	return out
}

// startLocationFor picks a technician's position at the start of the
// pass: their current GPS location if it's today and one is on file,
// otherwise their home address.
func startLocationFor(tech *entity.Technician, isToday bool) (lat, lng float64) {
	if isToday && tech.CurrentLat != nil && tech.CurrentLng != nil {
		return *tech.CurrentLat, *tech.CurrentLng
	}
	return tech.HomeLat, tech.HomeLng
}

func buildTravelTimeMatrix(ctx context.Context, locations []Location, isToday bool, planningDate time.Time, predictiveHourUTC int, cache traveltime.Cache) ([][]int64, error) {
	n := len(locations)
	pairs := make([]traveltime.Pair, 0, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			pairs = append(pairs, traveltime.Pair{
				Origin:      traveltime.Coordinate{Lat: locations[i].Lat, Lng: locations[i].Lng},
				Destination: traveltime.Coordinate{Lat: locations[j].Lat, Lng: locations[j].Lng},
			})
		}
	}

	mode := traveltime.ModeRealTime
	var departure *time.Time
	if !isToday {
		mode = traveltime.ModePredictive
		d := time.Date(planningDate.Year(), planningDate.Month(), planningDate.Day(), predictiveHourUTC, 0, 0, 0, time.UTC)
		departure = &d
	}

	resolved, err := cache.BulkLookup(ctx, pairs, mode, departure)
	if err != nil {
		return nil, fmt.Errorf("resolve travel time matrix: %w", err)
	}

	matrix := make([][]int64, n)
	for i := 0; i < n; i++ {
		matrix[i] = resolved[i*n : (i+1)*n]
	}
	return matrix, nil
}

// locationIndexBuilder deduplicates locations by rounded coordinate,
// always reserving index 0 for the depot.
type locationIndexBuilder struct {
	indexByKey map[string]int
	locations  []Location
}

func newLocationIndexBuilder(depot traveltime.Coordinate) *locationIndexBuilder {
	b := &locationIndexBuilder{indexByKey: make(map[string]int)}
	b.indexFor(depot.Lat, depot.Lng)
	return b
}

func (b *locationIndexBuilder) indexFor(lat, lng float64) int {
	rounded := traveltime.Coordinate{Lat: lat, Lng: lng}.Rounded()
	key := fmt.Sprintf("%.6f,%.6f", rounded.Lat, rounded.Lng)
	if idx, ok := b.indexByKey[key]; ok {
		return idx
	}
	idx := len(b.locations)
	b.indexByKey[key] = idx
	b.locations = append(b.locations, Location{Index: idx, Lat: rounded.Lat, Lng: rounded.Lng})
	return idx
}

// indexForTechnicianStart behaves like indexFor, except a coordinate
// that exactly coincides with an already-indexed location (always an
// item's address, since every technician start is resolved after all
// items) is perturbed by +0.00001 latitude so the technician gets its
// own distinct index rather than silently sharing the item's.
func (b *locationIndexBuilder) indexForTechnicianStart(lat, lng float64) int {
	rounded := traveltime.Coordinate{Lat: lat, Lng: lng}.Rounded()
	key := fmt.Sprintf("%.6f,%.6f", rounded.Lat, rounded.Lng)
	if _, exists := b.indexByKey[key]; exists {
		rounded.Lat += 0.00001
		key = fmt.Sprintf("%.6f,%.6f", rounded.Lat, rounded.Lng)
	}
	if idx, ok := b.indexByKey[key]; ok {
		return idx
	}
	idx := len(b.locations)
	b.indexByKey[key] = idx
	b.locations = append(b.locations, Location{Index: idx, Lat: rounded.Lat, Lng: rounded.Lng})
	return idx
}

func (b *locationIndexBuilder) build() []Location {
	sort.Slice(b.locations, func(i, j int) bool { return b.locations[i].Index < b.locations[j].Index })
	return b.locations
}
