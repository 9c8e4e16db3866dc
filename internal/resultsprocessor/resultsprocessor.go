// Package resultsprocessor turns an optimizer's routing decision back
// into job-level updates, fanning a bundle stop out to each of its
// constituent jobs.
package resultsprocessor

import (
	"time"

	"github.com/fieldops/replanner/internal/entity"
)

// ScheduledJobUpdate is the outcome to apply to one job.
type ScheduledJobUpdate struct {
	JobID              entity.JobID
	TechnicianID       entity.TechnicianID
	ScheduledStartTime time.Time
}

// RouteStop mirrors externalsvc.RouteStop without importing it, so
// this package stays free of the HTTP client's types.
type RouteStop struct {
	ItemID         string
	TechnicianID   entity.TechnicianID
	ScheduledStart time.Time
}

// UnresolvedItem mirrors externalsvc.UnresolvedItem.
type UnresolvedItem struct {
	ItemID string
	Reason entity.FailureReason
}

// Result is the fully expanded, job-level view of one pass's optimizer
// response.
type Result struct {
	Updates    []ScheduledJobUpdate
	Unresolved []UnresolvedItem
	Ignored    []string // item ids in the response that matched no known item
}

// Process expands each route stop into one update per constituent job
// (a bundle stop becomes one update per job in the bundle, all sharing
// the stop's technician and start time — only the optimizer's travel
// and sequencing decisions operate at the bundle granularity; the
// persisted schedule is always per-job) and passes unresolved items
// through unchanged. itemsByID indexes every item offered to this
// pass, keyed by its SchedulableItem.ID; a stop or unresolved entry
// whose item id is not in itemsByID is dropped into Ignored rather
// than applied, since it refers to an item this pass never sent.
func Process(stops []RouteStop, unresolved []UnresolvedItem, itemsByID map[string]entity.SchedulableItem) Result {
	result := Result{}

	for _, stop := range stops {
		item, ok := itemsByID[stop.ItemID]
		if !ok {
			result.Ignored = append(result.Ignored, stop.ItemID)
			continue
		}
		for _, job := range item.Jobs {
			result.Updates = append(result.Updates, ScheduledJobUpdate{
				JobID:              job.ID,
				TechnicianID:       stop.TechnicianID,
				ScheduledStartTime: stop.ScheduledStart,
			})
		}
	}

	for _, u := range unresolved {
		if _, ok := itemsByID[u.ItemID]; !ok {
			result.Ignored = append(result.Ignored, u.ItemID)
			continue
		}
		result.Unresolved = append(result.Unresolved, u)
	}

	return result
}
